package entity

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type TaskCategory string

const (
	TaskCategoryMeeting   TaskCategory = "meeting"
	TaskCategoryEmail     TaskCategory = "email"
	TaskCategoryTask      TaskCategory = "task"
	TaskCategoryBriefing  TaskCategory = "briefing"
	TaskCategoryFinancial TaskCategory = "financial"
	TaskCategoryTeam      TaskCategory = "team"
)

func (c TaskCategory) Valid() bool {
	switch c {
	case TaskCategoryMeeting, TaskCategoryEmail, TaskCategoryTask,
		TaskCategoryBriefing, TaskCategoryFinancial, TaskCategoryTeam:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

type CreatedBy string

const (
	CreatedByVoice CreatedBy = "voice"
	CreatedByUser  CreatedBy = "user"
)

type ExtractedTaskDraft struct {
	Title        string       `json:"title" validate:"required"`
	Description  string       `json:"description,omitempty"`
	Priority     Priority     `json:"priority" validate:"oneof=low medium high"`
	Category     TaskCategory `json:"category,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	LocationName string       `json:"location,omitempty"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
}

// TaskPayload is the full body accepted by the task persistence backend.
type TaskPayload struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Priority    Priority     `json:"priority"`
	Status      TaskStatus   `json:"status"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	Reminders   []time.Time  `json:"reminders"`
	Tags        []string     `json:"tags"`
	Images      []string     `json:"images"`
	Location    *Location    `json:"location,omitempty"`
	Category    TaskCategory `json:"category,omitempty"`
	Subtasks    []Subtask    `json:"subtasks"`
	Recurrence  *Recurrence  `json:"recurrence,omitempty"`
	CreatedBy   CreatedBy    `json:"createdBy"`
}

type Location struct {
	Name string `json:"name"`
}

type Subtask struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type Recurrence struct {
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval"`
}

type PersistedTask struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Priority    Priority     `json:"priority"`
	Status      TaskStatus   `json:"status"`
	Category    TaskCategory `json:"category,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Location    *Location    `json:"location,omitempty"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	CreatedBy   CreatedBy    `json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// PendingDraft is a dictated draft whose commit failed and awaits manual save.
type PendingDraft struct {
	ID         string             `json:"id" db:"id"`
	Draft      ExtractedTaskDraft `json:"draft" db:"-"`
	Transcript string             `json:"transcript" db:"transcript"`
	LastError  string             `json:"last_error" db:"last_error"`
	CreatedAt  time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" db:"updated_at"`
}

type PrivacySettings struct {
	StoreRecordings     bool `json:"storeRecordings"`
	ShareTranscripts    bool `json:"shareTranscripts"`
	RemoteNotifications bool `json:"remoteNotifications"`
}
