package taskRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"PersonalAssistant/internal/api/task"
	"PersonalAssistant/internal/entity"
	contextPkg "PersonalAssistant/pkg/context"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type PendingDraftDB struct {
	ID         sql.NullString `db:"id"`
	Draft      sql.NullString `db:"draft"`
	Transcript sql.NullString `db:"transcript"`
	LastError  sql.NullString `db:"last_error"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r *draftRepository) CreateDraft(c context.Context, draft entity.PendingDraft) error {
	requestID := contextPkg.GetRequestID(c)

	body, err := json.Marshal(draft.Draft)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to marshal draft")
		return err
	}

	now := time.Now()
	argsKV := map[string]interface{}{
		"id":         draft.ID,
		"draft":      string(body),
		"transcript": draft.Transcript,
		"last_error": draft.LastError,
		"created_at": now,
		"updated_at": now,
	}

	query, args, err := sqlx.Named(queryCreateDraft, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateDraft")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating draft")
		return err
	}

	return nil
}

func (r *draftRepository) GetDraftByID(c context.Context, id string) (entity.PendingDraft, error) {
	requestID := contextPkg.GetRequestID(c)
	var row PendingDraftDB

	query, args, err := sqlx.Named(queryGetDraftByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetDraftByID named query preparation err")
		return entity.PendingDraft{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"draft_id":   id,
			}).Warn("GetDraftByID no rows found")
			return entity.PendingDraft{}, task.ErrDraftNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetDraftByID execution err")
		return entity.PendingDraft{}, err
	}

	return r.makePendingDraft(row)
}

func (r *draftRepository) ListDrafts(c context.Context) ([]entity.PendingDraft, error) {
	requestID := contextPkg.GetRequestID(c)
	var rows []PendingDraftDB

	if err := r.q.SelectContext(c, &rows, r.q.Rebind(queryListDrafts)); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListDrafts execution err")
		return nil, err
	}

	result := make([]entity.PendingDraft, 0, len(rows))
	for _, row := range rows {
		draft, err := r.makePendingDraft(row)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"draft_id":   row.ID.String,
				"error":      err.Error(),
			}).Warn("Skipping unreadable draft")
			continue
		}
		result = append(result, draft)
	}

	return result, nil
}

func (r *draftRepository) UpdateDraftError(c context.Context, id string, lastError string) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":         id,
		"last_error": lastError,
		"updated_at": time.Now(),
	}

	query, args, err := sqlx.Named(queryUpdateDraftError, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdateDraftError named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdateDraftError execution err")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return task.ErrDraftNotFound
	}

	return nil
}

func (r *draftRepository) DeleteDraft(c context.Context, id string) error {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryDeleteDraft, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteDraft named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteDraft execution err")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return task.ErrDraftNotFound
	}

	return nil
}

func (r *draftRepository) makePendingDraft(row PendingDraftDB) (entity.PendingDraft, error) {
	draft := entity.PendingDraft{
		ID:         row.ID.String,
		Transcript: row.Transcript.String,
		LastError:  row.LastError.String,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.Draft.Valid && row.Draft.String != "" {
		if err := json.Unmarshal([]byte(row.Draft.String), &draft.Draft); err != nil {
			return entity.PendingDraft{}, err
		}
	}
	return draft, nil
}
