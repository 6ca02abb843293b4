package task

import (
	"time"

	"PersonalAssistant/internal/entity"
)

type CommitOption func(*CommitOptions)

type CommitOptions struct {
	Transcript string
}

// WithTranscript keeps the source utterance alongside a retained draft.
func WithTranscript(text string) CommitOption {
	return func(o *CommitOptions) {
		o.Transcript = text
	}
}

func ApplyCommitOptions(opts ...CommitOption) CommitOptions {
	var o CommitOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type SaveDraftRequest struct {
	Draft *entity.ExtractedTaskDraft `json:"draft"`
}

type ChangeDueDateRequest struct {
	DueDate *time.Time `json:"due_date"`
}

type TaskResponse struct {
	Task    entity.PersistedTask `json:"task"`
	Message string               `json:"message,omitempty"`
}
