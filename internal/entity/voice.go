package entity

import (
	"errors"
	"sync/atomic"
	"time"
)

var ErrAudioHandleConsumed = errors.New("audio handle already consumed")

type VoiceMode string

const (
	VoiceModeWakeTriggered VoiceMode = "wake-triggered"
	VoiceModeManual        VoiceMode = "manual"
)

type RecordingState string

const (
	RecordingStateIdle      RecordingState = "idle"
	RecordingStateRecording RecordingState = "recording"
	RecordingStateStopping  RecordingState = "stopping"
	RecordingStateFinished  RecordingState = "finished"
	RecordingStateFailed    RecordingState = "failed"
)

type VoiceSession struct {
	ID        string         `json:"id"`
	StartedAt time.Time      `json:"started_at"`
	Mode      VoiceMode      `json:"mode"`
	State     RecordingState `json:"state"`
	Caller    string         `json:"caller"`
}

// AudioHandle points at one finished capture. It can be consumed once.
type AudioHandle struct {
	Path       string        `json:"path"`
	Duration   time.Duration `json:"duration"`
	RecordedAt time.Time     `json:"recorded_at"`
	SessionID  string        `json:"session_id"`

	consumed atomic.Bool
}

func NewAudioHandle(sessionID, path string, duration time.Duration, recordedAt time.Time) *AudioHandle {
	return &AudioHandle{
		Path:       path,
		Duration:   duration,
		RecordedAt: recordedAt,
		SessionID:  sessionID,
	}
}

// Consume marks the handle as used and returns its storage location.
func (h *AudioHandle) Consume() (string, error) {
	if h == nil {
		return "", ErrAudioHandleConsumed
	}
	if !h.consumed.CompareAndSwap(false, true) {
		return "", ErrAudioHandleConsumed
	}
	return h.Path, nil
}

func (h *AudioHandle) Consumed() bool {
	return h != nil && h.consumed.Load()
}

type Transcript struct {
	Text       string    `json:"text"`
	RecordedAt time.Time `json:"recorded_at"`
}

type WakeWordState string

const (
	WakeWordStateUninitialized WakeWordState = "uninitialized"
	WakeWordStateReady         WakeWordState = "ready"
	WakeWordStateListening     WakeWordState = "listening"
	WakeWordStatePaused        WakeWordState = "paused"
)

type WakeWordDetection struct {
	Phrase     string    `json:"phrase"`
	Confidence float64   `json:"confidence"`
	DetectedAt time.Time `json:"detected_at"`
}

type ConversationState string

const (
	ConversationStateIdle      ConversationState = "idle"
	ConversationStateListening ConversationState = "listening"
	ConversationStateActive    ConversationState = "active"
	ConversationStateEnding    ConversationState = "ending"
)

type ConversationSession struct {
	ID                string            `json:"id"`
	AssistantName     string            `json:"assistant_name"`
	Caller            string            `json:"caller"`
	Mode              VoiceMode         `json:"mode"`
	State             ConversationState `json:"state"`
	WakeWordWasActive bool              `json:"wake_word_was_active"`
	StartedAt         time.Time         `json:"started_at"`
}

// VoiceCommand is the history row of one processed utterance.
type VoiceCommand struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	Mode       VoiceMode `json:"mode" db:"mode"`
	Transcript string    `json:"transcript" db:"transcript"`
	Outcome    string    `json:"outcome" db:"outcome"`
	Message    string    `json:"message" db:"message"`
	TaskID     string    `json:"task_id,omitempty" db:"task_id"`
	DraftID    string    `json:"draft_id,omitempty" db:"draft_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
