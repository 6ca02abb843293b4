package entity

import "time"

type InstructionKind string

const (
	InstructionKindOneShot   InstructionKind = "one_shot"
	InstructionKindRecurring InstructionKind = "recurring"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

type NotificationCategory string

const (
	NotificationCategoryMeeting   NotificationCategory = "MEETING_REMINDER"
	NotificationCategoryEmail     NotificationCategory = "EMAIL_ALERT"
	NotificationCategoryTask      NotificationCategory = "TASK_DEADLINE"
	NotificationCategoryBriefing  NotificationCategory = "DAILY_BRIEFING"
	NotificationCategoryFinancial NotificationCategory = "FINANCIAL_ALERT"
	NotificationCategoryTeam      NotificationCategory = "TEAM_UPDATE"
)

type NotificationPriority string

const (
	NotificationPriorityHigh    NotificationPriority = "high"
	NotificationPriorityDefault NotificationPriority = "default"
	NotificationPriorityLow     NotificationPriority = "low"
)

type NotificationAction struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NotificationRequest is what the platform notification collaborator accepts.
type NotificationRequest struct {
	Title         string               `json:"title"`
	Body          string               `json:"body"`
	Data          map[string]string    `json:"data,omitempty"`
	CategoryID    NotificationCategory `json:"categoryId"`
	Actions       []NotificationAction `json:"actions,omitempty"`
	Priority      NotificationPriority `json:"priority"`
	ScheduledTime *time.Time           `json:"scheduledTime,omitempty"`
	Frequency     Frequency            `json:"frequency,omitempty"`
	Suppressible  bool                 `json:"suppressible"`
}

type ReminderInstruction struct {
	ID             string               `json:"id" db:"id"`
	OwnerKey       string               `json:"owner_key" db:"owner_key"`
	NotificationID string               `json:"notification_id" db:"notification_id"`
	Kind           InstructionKind      `json:"kind" db:"kind"`
	Frequency      Frequency            `json:"frequency,omitempty" db:"frequency"`
	DeliverAt      time.Time            `json:"deliver_at" db:"deliver_at"`
	Title          string               `json:"title" db:"title"`
	Body           string               `json:"body" db:"body"`
	Category       NotificationCategory `json:"category" db:"category"`
	Priority       NotificationPriority `json:"priority" db:"priority"`
	Suppressible   bool                 `json:"suppressible" db:"suppressible"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
}

type RecurringReminder struct {
	Key       string               `json:"key" validate:"required"`
	Title     string               `json:"title" validate:"required"`
	Body      string               `json:"body"`
	Category  NotificationCategory `json:"category"`
	Frequency Frequency            `json:"frequency" validate:"oneof=daily weekly"`
	Hour      int                  `json:"hour" validate:"min=0,max=23"`
	Minute    int                  `json:"minute" validate:"min=0,max=59"`
	Weekday   time.Weekday         `json:"weekday"`
}
