package taskService

import (
	"context"
	"strings"
	"time"

	"PersonalAssistant/internal/api/task"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	contextPkg "PersonalAssistant/pkg/context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BuildPayload expands a draft into the full task body.
func BuildPayload(draft entity.ExtractedTaskDraft, createdBy entity.CreatedBy) entity.TaskPayload {
	payload := entity.TaskPayload{
		Title:       strings.TrimSpace(draft.Title),
		Description: draft.Description,
		Priority:    draft.Priority,
		Status:      entity.TaskStatusPending,
		DueDate:     draft.DueDate,
		Reminders:   []time.Time{},
		Tags:        []string{},
		Images:      []string{},
		Category:    draft.Category,
		Subtasks:    []entity.Subtask{},
		CreatedBy:   createdBy,
	}
	if !payload.Priority.Valid() {
		payload.Priority = entity.PriorityMedium
	}
	if len(draft.Tags) > 0 {
		payload.Tags = append(payload.Tags, draft.Tags...)
	}
	if name := strings.TrimSpace(draft.LocationName); name != "" {
		payload.Location = &entity.Location{Name: name}
	}
	return payload
}

// Commit persists draft. On success a reminder is always requested; a
// scheduling failure is reported but never undoes the commit. On failure the
// draft is retained locally and a *task.CommitError is returned.
func (s *taskService) Commit(ctx context.Context, draft entity.ExtractedTaskDraft, createdBy entity.CreatedBy, opts ...task.CommitOption) (entity.PersistedTask, error) {
	requestID := contextPkg.GetRequestID(ctx)
	options := task.ApplyCommitOptions(opts...)

	persisted, err := s.backend.CreateTask(ctx, BuildPayload(draft, createdBy))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"title":      draft.Title,
			"error":      err.Error(),
		}).Error("Failed to persist task")

		commitErr := &task.CommitError{Draft: draft, DraftID: s.keepDraft(ctx, draft, options.Transcript, err), Cause: err}
		s.emit(voice.Event{
			Type:    voice.EventTaskCommitFailed,
			Kind:    voice.KindPersistence,
			Message: commitErr.UserMessage(),
			Data:    map[string]any{"draft_id": commitErr.DraftID, "title": draft.Title},
		})
		return entity.PersistedTask{}, commitErr
	}

	s.afterPersist(ctx, persisted)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"task_id":    persisted.ID,
		"created_by": createdBy,
	}).Info("Task committed")
	s.emit(voice.Event{
		Type: voice.EventTaskCommitted,
		Data: map[string]any{"task_id": persisted.ID, "title": persisted.Title},
	})

	return persisted, nil
}

func (s *taskService) afterPersist(ctx context.Context, persisted entity.PersistedTask) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.cache != nil {
		if err := s.cache.SetTask(ctx, persisted); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"task_id":    persisted.ID,
				"error":      err.Error(),
			}).Warn("Failed to cache task")
		}
	}

	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Schedule(ctx, persisted); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"task_id":    persisted.ID,
			"error":      err.Error(),
		}).Error("Failed to schedule reminder")
		s.emit(voice.Event{
			Type:    voice.EventReminderFailed,
			Message: voice.UserMessage(err),
			Data:    map[string]any{"task_id": persisted.ID},
		})
	}
}

// keepDraft stores a failed draft and returns its id. Storage failures are
// logged and yield an empty id.
func (s *taskService) keepDraft(ctx context.Context, draft entity.ExtractedTaskDraft, transcript string, cause error) string {
	requestID := contextPkg.GetRequestID(ctx)
	if s.repo == nil {
		return ""
	}

	id := uuid.NewString()
	if s.utils != nil {
		var err error
		if id, err = s.utils.NewULIDFromTimestamp(time.Now()); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Failed to generate draft id")
			return ""
		}
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return ""
	}

	if err := repo.Drafts.CreateDraft(ctx, entity.PendingDraft{
		ID:         id,
		Draft:      draft,
		Transcript: transcript,
		LastError:  cause.Error(),
	}); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to keep draft")
		return ""
	}

	return id
}

func (s *taskService) PendingDrafts(ctx context.Context) ([]entity.PendingDraft, error) {
	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	return repo.Drafts.ListDrafts(ctx)
}

// SaveDraft retries a retained draft, optionally with user edits. The draft
// is removed once it is persisted.
func (s *taskService) SaveDraft(ctx context.Context, draftID string, edited *entity.ExtractedTaskDraft) (entity.PersistedTask, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return entity.PersistedTask{}, err
	}

	pending, err := repo.Drafts.GetDraftByID(ctx, draftID)
	if err != nil {
		return entity.PersistedTask{}, err
	}

	draft := pending.Draft
	if edited != nil {
		draft = *edited
	}
	draft.Title = strings.TrimSpace(draft.Title)
	if s.utils != nil {
		draft.Tags = s.utils.NormalizeTags(draft.Tags)
	}
	if !draft.Priority.Valid() {
		draft.Priority = entity.PriorityMedium
	}
	if err := s.validator.Struct(draft); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"draft_id":   draftID,
			"error":      err.Error(),
		}).Warn("Invalid draft")
		return entity.PersistedTask{}, task.ErrInvalidDraft
	}

	persisted, err := s.backend.CreateTask(ctx, BuildPayload(draft, entity.CreatedByUser))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"draft_id":   draftID,
			"error":      err.Error(),
		}).Error("Failed to persist draft")
		if uerr := repo.Drafts.UpdateDraftError(ctx, draftID, err.Error()); uerr != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      uerr.Error(),
			}).Warn("Failed to record draft error")
		}
		return entity.PersistedTask{}, &task.CommitError{Draft: draft, DraftID: draftID, Cause: err}
	}

	if err := repo.Drafts.DeleteDraft(ctx, draftID); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"draft_id":   draftID,
			"error":      err.Error(),
		}).Warn("Failed to remove saved draft")
	}

	s.afterPersist(ctx, persisted)
	s.emit(voice.Event{
		Type: voice.EventTaskCommitted,
		Data: map[string]any{"task_id": persisted.ID, "title": persisted.Title, "draft_id": draftID},
	})

	return persisted, nil
}

func (s *taskService) Complete(ctx context.Context, taskID string) (entity.PersistedTask, error) {
	if strings.TrimSpace(taskID) == "" {
		return entity.PersistedTask{}, task.ErrInvalidTaskID
	}

	updated, err := s.backend.UpdateTask(ctx, taskID, map[string]any{"status": entity.TaskStatusCompleted})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"task_id":    taskID,
			"error":      err.Error(),
		}).Error("Failed to complete task")
		return entity.PersistedTask{}, err
	}

	s.cancelReminder(ctx, taskID)
	s.cacheTask(ctx, updated)
	return updated, nil
}

func (s *taskService) Delete(ctx context.Context, taskID string) error {
	if strings.TrimSpace(taskID) == "" {
		return task.ErrInvalidTaskID
	}

	if err := s.backend.DeleteTask(ctx, taskID); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"task_id":    taskID,
			"error":      err.Error(),
		}).Error("Failed to delete task")
		return err
	}

	s.cancelReminder(ctx, taskID)
	if s.cache != nil {
		if err := s.cache.DeleteTask(ctx, taskID); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"task_id":    taskID,
				"error":      err.Error(),
			}).Warn("Failed to evict cached task")
		}
	}
	return nil
}

// ChangeDueDate updates the due date and replaces the task's reminder.
func (s *taskService) ChangeDueDate(ctx context.Context, taskID string, due *time.Time) (entity.PersistedTask, error) {
	if strings.TrimSpace(taskID) == "" {
		return entity.PersistedTask{}, task.ErrInvalidTaskID
	}

	var dueValue any
	if due != nil {
		dueValue = due.UTC()
	}
	updated, err := s.backend.UpdateTask(ctx, taskID, map[string]any{"dueDate": dueValue})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"task_id":    taskID,
			"error":      err.Error(),
		}).Error("Failed to change due date")
		return entity.PersistedTask{}, err
	}

	if s.scheduler != nil {
		if err := s.scheduler.Reschedule(ctx, updated); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"task_id":    taskID,
				"error":      err.Error(),
			}).Error("Failed to reschedule reminder")
			s.emit(voice.Event{
				Type:    voice.EventReminderFailed,
				Message: voice.UserMessage(err),
				Data:    map[string]any{"task_id": taskID},
			})
		}
	}
	s.cacheTask(ctx, updated)
	return updated, nil
}

func (s *taskService) cancelReminder(ctx context.Context, taskID string) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Cancel(ctx, taskID); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"task_id":    taskID,
			"error":      err.Error(),
		}).Warn("Failed to cancel reminder")
	}
}

func (s *taskService) cacheTask(ctx context.Context, t entity.PersistedTask) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetTask(ctx, t); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"task_id":    t.ID,
			"error":      err.Error(),
		}).Warn("Failed to cache task")
	}
}
