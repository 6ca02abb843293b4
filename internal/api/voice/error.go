package voice

import (
	"errors"
	"net/http"

	"PersonalAssistant/pkg/response"
)

// Taxonomy of terminal voice failures. Messages are user facing.
var (
	ErrConfiguration    = response.NewError(http.StatusUnprocessableEntity, "voice assistant is not set up correctly")
	ErrPermissionDenied = response.NewError(http.StatusForbidden, "microphone permission is required")
	ErrConnection       = response.NewError(http.StatusServiceUnavailable, "can't reach the server, check your connection")
	ErrAuthExpired      = response.NewError(http.StatusUnauthorized, "please sign in again")
	ErrTimeout          = response.NewError(http.StatusGatewayTimeout, "that took too long, please try again")
	ErrEmptyResult      = response.NewError(http.StatusUnprocessableEntity, "didn't catch that, try again")
	ErrExtractionFailed = response.NewError(http.StatusUnprocessableEntity, "couldn't work out a task from that, try rephrasing")
)

// Session and resource errors.
var (
	ErrRecordingInProgress = response.NewError(http.StatusConflict, "a recording is already in progress")
	ErrMicrophoneBusy      = response.NewError(http.StatusConflict, "microphone is in use")
	ErrConversationActive  = response.NewError(http.StatusConflict, "already in a conversation")
	ErrNotInitialized      = response.NewError(http.StatusPreconditionFailed, "wake word listener is not initialized")
	ErrAlreadyListening    = response.NewError(http.StatusConflict, "wake word listener is already running")
	ErrAudioHandleConsumed = response.NewError(http.StatusGone, "recording was already processed")
	ErrRecordingFailed     = response.NewError(http.StatusInternalServerError, "recording failed, try again")
	ErrShutdown            = response.NewError(http.StatusServiceUnavailable, "voice service is shutting down")
	ErrNoConversation      = response.NewError(http.StatusNotFound, "no active conversation")
	ErrRecordingNotOwned   = response.NewError(http.StatusConflict, "that recording belongs to another session")
)

type FailureKind string

const (
	KindConfiguration    FailureKind = "CONFIGURATION_ERROR"
	KindPermissionDenied FailureKind = "PERMISSION_DENIED"
	KindConnection       FailureKind = "CONNECTION_ERROR"
	KindAuthExpired      FailureKind = "AUTH_EXPIRED"
	KindTimeout          FailureKind = "TIMEOUT"
	KindEmptyResult      FailureKind = "EMPTY_RESULT"
	KindExtractionFailed FailureKind = "EXTRACTION_FAILED"
	KindPersistence      FailureKind = "PERSISTENCE_FAILED"
	KindUnknown          FailureKind = "UNKNOWN"
)

var kinds = []struct {
	kind FailureKind
	err  error
}{
	{KindConfiguration, ErrConfiguration},
	{KindPermissionDenied, ErrPermissionDenied},
	{KindConnection, ErrConnection},
	{KindAuthExpired, ErrAuthExpired},
	{KindTimeout, ErrTimeout},
	{KindEmptyResult, ErrEmptyResult},
	{KindExtractionFailed, ErrExtractionFailed},
}

// KindOf maps err onto the failure taxonomy.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// UserMessage returns the human readable text for the first taxonomy or
// response error found in err's chain.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var described interface{ UserMessage() string }
	if errors.As(err, &described) {
		return described.UserMessage()
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	var respErr *response.Error
	if errors.As(err, &respErr) {
		return respErr.Err.Error()
	}
	return "something went wrong, try again"
}
