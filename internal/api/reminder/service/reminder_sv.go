package reminderService

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PersonalAssistant/internal/api/reminder"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	contextPkg "PersonalAssistant/pkg/context"

	"github.com/sirupsen/logrus"
)

func (s *reminderService) IsQuietHours(at time.Time) bool {
	return IsQuietHours(at.In(s.config.Location), s.config.QuietHours)
}

func (s *reminderService) QuietHours() QuietHours {
	return s.config.QuietHours
}

// BuildTaskRequest derives the notification for t delivered at deliverAt.
func (s *reminderService) BuildTaskRequest(t entity.PersistedTask, deliverAt time.Time) entity.NotificationRequest {
	category := CategoryFor(t, s.classifier)
	due := *t.DueDate

	body := Countdown(deliverAt, due)
	if t.Location != nil && strings.TrimSpace(t.Location.Name) != "" {
		body += " at " + strings.TrimSpace(t.Location.Name)
	}

	return entity.NotificationRequest{
		Title: fmt.Sprintf("%s: %s", titlePrefixes[category], t.Title),
		Body:  body,
		Data: map[string]string{
			"task_id":  t.ID,
			"due_date": due.UTC().Format(time.RFC3339),
		},
		CategoryID:    category,
		Actions:       ActionsFor(category),
		Priority:      PriorityFor(t.Priority),
		ScheduledTime: &deliverAt,
		Suppressible:  t.Priority != entity.PriorityHigh && s.IsQuietHours(deliverAt),
	}
}

// Schedule registers the reminder for t. Tasks without a future due date get
// none. A delivery time already in the past is moved to now.
func (s *reminderService) Schedule(ctx context.Context, t entity.PersistedTask) error {
	if t.DueDate == nil {
		return nil
	}

	now := s.now()
	if !t.DueDate.After(now) {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"task_id":    t.ID,
			"due_date":   t.DueDate,
		}).Info("Due date already passed, no reminder scheduled")
		return nil
	}

	deliverAt := t.DueDate.Add(-s.config.LeadTimes.For(t.Priority))
	if deliverAt.Before(now) {
		deliverAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replace(ctx, taskOwnerKey(t.ID), entity.InstructionKindOneShot, s.BuildTaskRequest(t, deliverAt))
}

// Reschedule drops any instruction for t and schedules it again.
func (s *reminderService) Reschedule(ctx context.Context, t entity.PersistedTask) error {
	s.mu.Lock()
	err := s.remove(ctx, taskOwnerKey(t.ID))
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.Schedule(ctx, t)
}

func (s *reminderService) Cancel(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remove(ctx, taskOwnerKey(taskID))
}

func (s *reminderService) ScheduleRecurring(ctx context.Context, r entity.RecurringReminder) error {
	if err := s.validator.Struct(r); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"key":        r.Key,
			"error":      err.Error(),
		}).Warn("Invalid recurring reminder")
		return reminder.ErrInvalidRecurring
	}

	category := r.Category
	if category == "" {
		category = entity.NotificationCategoryBriefing
	}
	deliverAt := nextRecurring(r, s.now().In(s.config.Location))

	req := entity.NotificationRequest{
		Title:         r.Title,
		Body:          r.Body,
		Data:          map[string]string{"key": r.Key},
		CategoryID:    category,
		Actions:       ActionsFor(category),
		Priority:      entity.NotificationPriorityDefault,
		ScheduledTime: &deliverAt,
		Frequency:     r.Frequency,
		Suppressible:  s.IsQuietHours(deliverAt),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replace(ctx, recurringOwnerKey(r.Key), entity.InstructionKindRecurring, req)
}

func (s *reminderService) CancelRecurring(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remove(ctx, recurringOwnerKey(key))
}

func (s *reminderService) Instruction(ctx context.Context, taskID string) (entity.ReminderInstruction, error) {
	repo, err := s.repo.NewClient(false)
	if err != nil {
		return entity.ReminderInstruction{}, err
	}
	return repo.Instructions.GetInstructionByOwner(ctx, taskOwnerKey(taskID))
}

// Restore re-registers indexed instructions with the notification center
// after a restart. Missed one-shot instructions are dropped.
func (s *reminderService) Restore(ctx context.Context) error {
	requestID := contextPkg.GetRequestID(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return err
	}
	instructions, err := repo.Instructions.ListInstructions(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	for _, in := range instructions {
		deliverAt := in.DeliverAt
		if in.Kind == entity.InstructionKindRecurring {
			deliverAt = rollForward(deliverAt.In(s.config.Location), in.Frequency, now)
		} else if deliverAt.Before(now) {
			if err := repo.Instructions.DeleteInstructionByOwner(ctx, in.OwnerKey); err != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"owner_key":  in.OwnerKey,
					"error":      err.Error(),
				}).Warn("Failed to drop missed reminder")
			}
			continue
		}

		id, err := s.center.Schedule(ctx, entity.NotificationRequest{
			Title:         in.Title,
			Body:          in.Body,
			Data:          map[string]string{"owner_key": in.OwnerKey},
			CategoryID:    in.Category,
			Actions:       ActionsFor(in.Category),
			Priority:      in.Priority,
			ScheduledTime: &deliverAt,
			Frequency:     in.Frequency,
			Suppressible:  in.Suppressible,
		})
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"owner_key":  in.OwnerKey,
				"error":      err.Error(),
			}).Error("Failed to restore reminder")
			continue
		}
		if err := repo.Instructions.UpdateNotificationID(ctx, in.OwnerKey, id); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"owner_key":  in.OwnerKey,
				"error":      err.Error(),
			}).Error("Failed to update restored reminder")
		}
	}

	return nil
}

// replace is cancel-then-create for ownerKey. Caller holds s.mu.
func (s *reminderService) replace(ctx context.Context, ownerKey string, kind entity.InstructionKind, req entity.NotificationRequest) error {
	requestID := contextPkg.GetRequestID(ctx)

	if err := s.remove(ctx, ownerKey); err != nil {
		return err
	}

	notificationID, err := s.center.Schedule(ctx, req)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"owner_key":  ownerKey,
			"error":      err.Error(),
		}).Error("Failed to schedule notification")
		return fmt.Errorf("%w: %w", reminder.ErrScheduling, err)
	}

	id, err := s.utils.NewULIDFromTimestamp(s.now())
	if err != nil {
		s.rollbackNotification(ctx, notificationID)
		return fmt.Errorf("%w: %w", reminder.ErrScheduling, err)
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.rollbackNotification(ctx, notificationID)
		return fmt.Errorf("%w: %w", reminder.ErrScheduling, err)
	}

	instruction := entity.ReminderInstruction{
		ID:             id,
		OwnerKey:       ownerKey,
		NotificationID: notificationID,
		Kind:           kind,
		Frequency:      req.Frequency,
		DeliverAt:      *req.ScheduledTime,
		Title:          req.Title,
		Body:           req.Body,
		Category:       req.CategoryID,
		Priority:       req.Priority,
		Suppressible:   req.Suppressible,
		CreatedAt:      s.now(),
	}
	if err := repo.Instructions.CreateInstruction(ctx, instruction); err != nil {
		s.rollbackNotification(ctx, notificationID)
		return fmt.Errorf("%w: %w", reminder.ErrScheduling, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id":   requestID,
		"owner_key":    ownerKey,
		"deliver_at":   instruction.DeliverAt,
		"category":     instruction.Category,
		"suppressible": instruction.Suppressible,
	}).Info("Reminder scheduled")
	s.emit(voice.Event{
		Type: voice.EventReminderScheduled,
		Data: map[string]any{
			"owner_key":    ownerKey,
			"title":        instruction.Title,
			"deliver_at":   instruction.DeliverAt,
			"suppressible": instruction.Suppressible,
		},
	})

	return nil
}

// remove cancels and forgets the instruction for ownerKey, if any. Caller
// holds s.mu.
func (s *reminderService) remove(ctx context.Context, ownerKey string) error {
	repo, err := s.repo.NewClient(false)
	if err != nil {
		return fmt.Errorf("%w: %w", reminder.ErrScheduling, err)
	}

	existing, err := repo.Instructions.GetInstructionByOwner(ctx, ownerKey)
	if errors.Is(err, reminder.ErrInstructionAbsent) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", reminder.ErrScheduling, err)
	}

	if err := s.center.Cancel(ctx, existing.NotificationID); err != nil {
		// already fired or lost on restart; the index entry still goes
		s.log.WithFields(logrus.Fields{
			"request_id":      contextPkg.GetRequestID(ctx),
			"owner_key":       ownerKey,
			"notification_id": existing.NotificationID,
			"error":           err.Error(),
		}).Debug("Notification not pending")
	}

	if err := repo.Instructions.DeleteInstructionByOwner(ctx, ownerKey); err != nil && !errors.Is(err, reminder.ErrInstructionAbsent) {
		return fmt.Errorf("%w: %w", reminder.ErrScheduling, err)
	}
	return nil
}

func (s *reminderService) rollbackNotification(ctx context.Context, id string) {
	if err := s.center.Cancel(ctx, id); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id":      contextPkg.GetRequestID(ctx),
			"notification_id": id,
			"error":           err.Error(),
		}).Warn("Failed to roll back notification")
	}
}
