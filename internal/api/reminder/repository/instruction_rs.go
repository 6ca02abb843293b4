package reminderRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"PersonalAssistant/internal/api/reminder"
	"PersonalAssistant/internal/entity"
	contextPkg "PersonalAssistant/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type InstructionDB struct {
	ID             sql.NullString `db:"id"`
	OwnerKey       sql.NullString `db:"owner_key"`
	NotificationID sql.NullString `db:"notification_id"`
	Kind           sql.NullString `db:"kind"`
	Frequency      sql.NullString `db:"frequency"`
	DeliverAt      time.Time      `db:"deliver_at"`
	Title          sql.NullString `db:"title"`
	Body           sql.NullString `db:"body"`
	Category       sql.NullString `db:"category"`
	Priority       sql.NullString `db:"priority"`
	Suppressible   sql.NullBool   `db:"suppressible"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r *instructionRepository) CreateInstruction(c context.Context, instruction entity.ReminderInstruction) error {
	requestID := contextPkg.GetRequestID(c)

	createdAt := instruction.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	argsKV := map[string]interface{}{
		"id":              instruction.ID,
		"owner_key":       instruction.OwnerKey,
		"notification_id": instruction.NotificationID,
		"kind":            string(instruction.Kind),
		"frequency":       string(instruction.Frequency),
		"deliver_at":      instruction.DeliverAt.UTC(),
		"title":           instruction.Title,
		"body":            instruction.Body,
		"category":        string(instruction.Category),
		"priority":        string(instruction.Priority),
		"suppressible":    instruction.Suppressible,
		"created_at":      createdAt.UTC(),
	}

	query, args, err := sqlx.Named(queryCreateInstruction, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateInstruction")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"owner_key":  instruction.OwnerKey,
			"error":      err.Error(),
		}).Error("Database error when creating reminder instruction")
		return err
	}

	return nil
}

func (r *instructionRepository) GetInstructionByOwner(c context.Context, ownerKey string) (entity.ReminderInstruction, error) {
	requestID := contextPkg.GetRequestID(c)
	var row InstructionDB

	query, args, err := sqlx.Named(queryGetInstructionByOwner, map[string]interface{}{"owner_key": ownerKey})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetInstructionByOwner named query preparation err")
		return entity.ReminderInstruction{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ReminderInstruction{}, reminder.ErrInstructionAbsent
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetInstructionByOwner execution err")
		return entity.ReminderInstruction{}, err
	}

	return makeInstruction(row), nil
}

func (r *instructionRepository) ListInstructions(c context.Context) ([]entity.ReminderInstruction, error) {
	var rows []InstructionDB

	if err := r.q.SelectContext(c, &rows, r.q.Rebind(queryListInstructions)); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(c),
			"error":      err.Error(),
		}).Error("ListInstructions execution err")
		return nil, err
	}

	result := make([]entity.ReminderInstruction, 0, len(rows))
	for _, row := range rows {
		result = append(result, makeInstruction(row))
	}
	return result, nil
}

func (r *instructionRepository) UpdateNotificationID(c context.Context, ownerKey string, notificationID string) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"owner_key":       ownerKey,
		"notification_id": notificationID,
	}

	query, args, err := sqlx.Named(queryUpdateNotificationID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdateNotificationID named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdateNotificationID execution err")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return reminder.ErrInstructionAbsent
	}

	return nil
}

func (r *instructionRepository) DeleteInstructionByOwner(c context.Context, ownerKey string) error {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryDeleteInstructionByOwner, map[string]interface{}{"owner_key": ownerKey})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteInstructionByOwner named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteInstructionByOwner execution err")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return reminder.ErrInstructionAbsent
	}

	return nil
}

func makeInstruction(row InstructionDB) entity.ReminderInstruction {
	return entity.ReminderInstruction{
		ID:             row.ID.String,
		OwnerKey:       row.OwnerKey.String,
		NotificationID: row.NotificationID.String,
		Kind:           entity.InstructionKind(row.Kind.String),
		Frequency:      entity.Frequency(row.Frequency.String),
		DeliverAt:      row.DeliverAt,
		Title:          row.Title.String,
		Body:           row.Body.String,
		Category:       entity.NotificationCategory(row.Category.String),
		Priority:       entity.NotificationPriority(row.Priority.String),
		Suppressible:   row.Suppressible.Bool,
		CreatedAt:      row.CreatedAt,
	}
}
