package voiceRepository

import (
	"context"
	"database/sql"
	"time"

	"PersonalAssistant/internal/entity"
	contextPkg "PersonalAssistant/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type VoiceCommandDB struct {
	ID         sql.NullString `db:"id"`
	SessionID  sql.NullString `db:"session_id"`
	Mode       sql.NullString `db:"mode"`
	Transcript sql.NullString `db:"transcript"`
	Outcome    sql.NullString `db:"outcome"`
	Message    sql.NullString `db:"message"`
	TaskID     sql.NullString `db:"task_id"`
	DraftID    sql.NullString `db:"draft_id"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r *voiceRepository) CreateVoiceCommand(ctx context.Context, cmd entity.VoiceCommand) error {
	requestID := contextPkg.GetRequestID(ctx)

	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	argsKV := map[string]interface{}{
		"id":         cmd.ID,
		"session_id": cmd.SessionID,
		"mode":       string(cmd.Mode),
		"transcript": cmd.Transcript,
		"outcome":    cmd.Outcome,
		"message":    cmd.Message,
		"task_id":    cmd.TaskID,
		"draft_id":   cmd.DraftID,
		"created_at": createdAt,
	}

	query, args, err := sqlx.Named(queryCreateVoiceCommand, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateVoiceCommand")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating voice command")
		return err
	}

	return nil
}

// ListVoiceCommands returns a page of history, newest first, and the total
// number of stored commands.
func (r *voiceRepository) ListVoiceCommands(ctx context.Context, limit, offset int) ([]entity.VoiceCommand, int, error) {
	requestID := contextPkg.GetRequestID(ctx)

	var total int
	if err := r.q.QueryRowxContext(ctx, r.q.Rebind(queryCountVoiceCommands)).Scan(&total); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CountVoiceCommands execution err")
		return nil, 0, err
	}

	query, args, err := sqlx.Named(queryListVoiceCommands, map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListVoiceCommands named query preparation err")
		return nil, 0, err
	}
	query = r.q.Rebind(query)

	var rows []VoiceCommandDB
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListVoiceCommands execution err")
		return nil, 0, err
	}

	commands := make([]entity.VoiceCommand, 0, len(rows))
	for _, row := range rows {
		commands = append(commands, makeVoiceCommand(row))
	}

	return commands, total, nil
}

func makeVoiceCommand(row VoiceCommandDB) entity.VoiceCommand {
	return entity.VoiceCommand{
		ID:         row.ID.String,
		SessionID:  row.SessionID.String,
		Mode:       entity.VoiceMode(row.Mode.String),
		Transcript: row.Transcript.String,
		Outcome:    row.Outcome.String,
		Message:    row.Message.String,
		TaskID:     row.TaskID.String,
		DraftID:    row.DraftID.String,
		CreatedAt:  row.CreatedAt,
	}
}
