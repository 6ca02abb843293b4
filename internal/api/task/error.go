package task

import (
	"errors"
	"fmt"
	"net/http"

	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/response"
)

var (
	ErrPersistence   = response.NewError(http.StatusBadGateway, "couldn't save the task, it was kept as a draft")
	ErrDraftNotKept  = response.NewError(http.StatusBadGateway, "couldn't save the task, please try again")
	ErrDraftNotFound = response.NewError(http.StatusNotFound, "draft not found")
	ErrTaskNotFound  = response.NewError(http.StatusNotFound, "task not found")
	ErrInvalidDraft  = response.NewError(http.StatusUnprocessableEntity, "the task needs a title")
	ErrInvalidTaskID = response.NewError(http.StatusBadRequest, "invalid task id")
)

// CommitError is returned when a draft could not be persisted. The draft is
// retained under DraftID for manual completion.
type CommitError struct {
	Draft   entity.ExtractedTaskDraft
	DraftID string
	Cause   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit task %q: %v", e.Draft.Title, e.Cause)
}

func (e *CommitError) Unwrap() []error {
	return []error{ErrPersistence, e.Cause}
}

// UserMessage tells the user whether the draft survived the failure.
func (e *CommitError) UserMessage() string {
	if e.DraftID == "" {
		return ErrDraftNotKept.Error()
	}
	return ErrPersistence.Error()
}

// PendingDraftID extracts the retained draft id from err, if any.
func PendingDraftID(err error) string {
	var commitErr *CommitError
	if errors.As(err, &commitErr) {
		return commitErr.DraftID
	}
	return ""
}
