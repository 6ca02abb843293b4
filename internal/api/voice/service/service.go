package voiceService

import (
	"context"
	"time"

	"PersonalAssistant/internal/api/task"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
)

// PermissionProvider asks the platform for a capability grant.
type PermissionProvider interface {
	Request(ctx context.Context, capability voice.Capability) (bool, error)
}

// AudioCapture opens platform recordings.
type AudioCapture interface {
	Start(ctx context.Context, cfg voice.AudioConfig) (CaptureSession, error)
}

type CaptureSession interface {
	Stop() (voice.CaptureResult, error)
}

// WakeWordEngine is the low power hotword detector. Start must return once
// the engine is armed and then deliver events on out until ctx is cancelled.
type WakeWordEngine interface {
	Available() bool
	Start(ctx context.Context, phrase string, out chan<- voice.EngineEvent) error
	Stop() error
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio voice.AudioPayload) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, text string, recordedAt time.Time) (entity.ExtractedTaskDraft, error)
}

type TaskCommitter interface {
	Commit(ctx context.Context, draft entity.ExtractedTaskDraft, createdBy entity.CreatedBy, opts ...task.CommitOption) (entity.PersistedTask, error)
}

type PrivacyProvider interface {
	PrivacySettings(ctx context.Context) (entity.PrivacySettings, error)
}

type AudioArchiver interface {
	UploadAudio(ctx context.Context, path string) (string, error)
}

type HistoryRecorder interface {
	RecordCommand(ctx context.Context, cmd entity.VoiceCommand) error
	ListCommands(ctx context.Context, limit, offset int) ([]entity.VoiceCommand, int, error)
}

type EventSink interface {
	Publish(evt voice.Event)
}

type nopSink struct{}

func (nopSink) Publish(voice.Event) {}

type VoiceConfig struct {
	AssistantName          string
	Audio                  voice.AudioConfig
	RecordingSafetyTimeout time.Duration
	ConversationTimeout    time.Duration
	TurnCaptureWindow      time.Duration
	WakeWordCooldown       time.Duration
	WakeWordAutoStart      bool
	MaxAttempts            int
	RetryBackoff           time.Duration
	MinAudioBytes          int64
	KeepAudio              bool
}

// DefaultVoiceConfig returns the values used when the environment is silent.
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		AssistantName: "Assistant",
		Audio: voice.AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			OutputDir:  "./storage/audio",
		},
		RecordingSafetyTimeout: 10 * time.Second,
		ConversationTimeout:    60 * time.Second,
		TurnCaptureWindow:      8 * time.Second,
		WakeWordCooldown:       2 * time.Second,
		MaxAttempts:            1,
		RetryBackoff:           500 * time.Millisecond,
		MinAudioBytes:          44,
	}
}

func emit(sink EventSink, evt voice.Event) {
	if sink == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	sink.Publish(evt)
}
