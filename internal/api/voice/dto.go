package voice

import (
	"time"

	"PersonalAssistant/internal/entity"
)

type Capability string

const (
	CapabilityMicrophone    Capability = "microphone"
	CapabilityWakeWord      Capability = "wake_word"
	CapabilityNotifications Capability = "notifications"
)

type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	OutputDir   string
}

// CaptureResult describes what the platform recorder wrote to storage.
type CaptureResult struct {
	Path     string
	Bytes    int64
	Duration time.Duration
}

type AudioPayload struct {
	SessionID  string
	Path       string
	Duration   time.Duration
	RecordedAt time.Time
}

type EngineEvent struct {
	Detection *entity.WakeWordDetection
	Err       error
}

type EventType string

const (
	EventRecordingState    EventType = "recording_state"
	EventRecordingTimeout  EventType = "recording_timeout"
	EventWakeWordState     EventType = "wake_word_state"
	EventWakeWordDetected  EventType = "wake_word_detected"
	EventWakeWordError     EventType = "wake_word_error"
	EventConversationState EventType = "conversation_state"
	EventConversationError EventType = "conversation_error"
	EventPipelineStage     EventType = "pipeline_stage"
	EventPipelineFailed    EventType = "pipeline_failed"
	EventTaskCommitted     EventType = "task_committed"
	EventTaskCommitFailed  EventType = "task_commit_failed"
	EventReminderScheduled EventType = "reminder_scheduled"
	EventReminderFailed    EventType = "reminder_failed"
	EventNotification      EventType = "notification"
)

// Event is pushed to the rendering layer.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	State     string         `json:"state,omitempty"`
	Kind      FailureKind    `json:"kind,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}

type StartRecordingRequest struct {
	Caller string `json:"caller" validate:"required,max=64"`
}

type StartConversationRequest struct {
	AssistantName string `json:"assistant_name" validate:"omitempty,max=40"`
	Caller        string `json:"caller" validate:"required,max=64"`
}

type StartWakeWordRequest struct {
	AssistantName string `json:"assistant_name" validate:"omitempty,max=40"`
}

type PipelineResponse struct {
	Success    bool                       `json:"success"`
	Transcript string                     `json:"transcript,omitempty"`
	Task       *entity.PersistedTask      `json:"task,omitempty"`
	Draft      *entity.ExtractedTaskDraft `json:"draft,omitempty"`
	DraftID    string                     `json:"draft_id,omitempty"`
	Kind       FailureKind                `json:"kind,omitempty"`
	Message    string                     `json:"message,omitempty"`
}

type StatusResponse struct {
	Recording    entity.VoiceSession         `json:"recording"`
	WakeWord     entity.WakeWordState        `json:"wake_word"`
	Conversation *entity.ConversationSession `json:"conversation,omitempty"`
}

type HistoryQuery struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

type HistoryResponse struct {
	Commands []entity.VoiceCommand `json:"commands"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	Limit    int                   `json:"limit"`
}
