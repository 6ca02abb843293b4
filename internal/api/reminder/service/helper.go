package reminderService

import (
	"fmt"
	"strings"
	"time"

	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/nlp"
)

const (
	ActionComplete = "complete"
	ActionExtend   = "extend"
	ActionJoin     = "join"
	ActionSnooze   = "snooze"
)

// IsQuietHours reports whether the hour of at falls in [q.Start, q.End).
func IsQuietHours(at time.Time, q QuietHours) bool {
	if q.Start == q.End {
		return false
	}
	h := at.Hour()
	if q.Start < q.End {
		return h >= q.Start && h < q.End
	}
	return h >= q.Start || h < q.End
}

// Countdown describes the time left between delivery and due.
func Countdown(delivery, due time.Time) string {
	left := due.Sub(delivery)
	switch {
	case left < time.Hour:
		return "Due in less than 1 hour"
	case left < 24*time.Hour:
		return "Due in " + plural(int(left/time.Hour), "hour")
	default:
		return "Due in " + plural(int(left/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func (l LeadTimes) For(p entity.Priority) time.Duration {
	switch p {
	case entity.PriorityHigh:
		return l.High
	case entity.PriorityLow:
		return l.Low
	default:
		return l.Medium
	}
}

var notificationCategories = map[entity.TaskCategory]entity.NotificationCategory{
	entity.TaskCategoryMeeting:   entity.NotificationCategoryMeeting,
	entity.TaskCategoryEmail:     entity.NotificationCategoryEmail,
	entity.TaskCategoryTask:      entity.NotificationCategoryTask,
	entity.TaskCategoryBriefing:  entity.NotificationCategoryBriefing,
	entity.TaskCategoryFinancial: entity.NotificationCategoryFinancial,
	entity.TaskCategoryTeam:      entity.NotificationCategoryTeam,
}

// CategoryFor maps the task category, falling back to keyword
// classification of the title and description.
func CategoryFor(t entity.PersistedTask, classifier nlp.IClassifier) entity.NotificationCategory {
	if c, ok := notificationCategories[t.Category]; ok {
		return c
	}
	if classifier != nil {
		res := classifier.Classify(strings.TrimSpace(t.Title + " " + t.Description))
		if res != nil {
			if c, ok := notificationCategories[entity.TaskCategory(res.Category)]; ok {
				return c
			}
		}
	}
	return entity.NotificationCategoryTask
}

func ActionsFor(c entity.NotificationCategory) []entity.NotificationAction {
	if c == entity.NotificationCategoryMeeting {
		return []entity.NotificationAction{
			{ID: ActionJoin, Title: "Join Now"},
			{ID: ActionSnooze, Title: "Snooze 5min"},
		}
	}
	return []entity.NotificationAction{
		{ID: ActionComplete, Title: "Complete"},
		{ID: ActionExtend, Title: "Extend"},
	}
}

func PriorityFor(p entity.Priority) entity.NotificationPriority {
	switch p {
	case entity.PriorityHigh:
		return entity.NotificationPriorityHigh
	case entity.PriorityLow:
		return entity.NotificationPriorityLow
	default:
		return entity.NotificationPriorityDefault
	}
}

var titlePrefixes = map[entity.NotificationCategory]string{
	entity.NotificationCategoryMeeting:   "Meeting",
	entity.NotificationCategoryEmail:     "Email",
	entity.NotificationCategoryTask:      "Task Reminder",
	entity.NotificationCategoryBriefing:  "Briefing",
	entity.NotificationCategoryFinancial: "Payment",
	entity.NotificationCategoryTeam:      "Team",
}

func taskOwnerKey(taskID string) string {
	return "task:" + taskID
}

func recurringOwnerKey(key string) string {
	return "recurring:" + key
}

// nextRecurring returns the first occurrence of r strictly after now.
func nextRecurring(r entity.RecurringReminder, now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), r.Hour, r.Minute, 0, 0, now.Location())

	if r.Frequency == entity.FrequencyWeekly {
		next = next.AddDate(0, 0, (int(r.Weekday)-int(next.Weekday())+7)%7)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	}

	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// rollForward advances a recurring delivery until it is after now.
func rollForward(at time.Time, f entity.Frequency, now time.Time) time.Time {
	step := 1
	if f == entity.FrequencyWeekly {
		step = 7
	}
	for !at.After(now) {
		at = at.AddDate(0, 0, step)
	}
	return at
}
