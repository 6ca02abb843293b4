package config

import (
	"errors"
	"io"
	"testing"

	"PersonalAssistant/internal/api/voice"
	voiceService "PersonalAssistant/internal/api/voice/service"

	"github.com/sirupsen/logrus"
)

func TestServerWithoutDeviceHasNoWakeWordEngine(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	s := &Server{log: log}
	if s.wakeWordEngine != nil {
		t.Fatal("unset wake word engine must be a nil interface")
	}

	listener := voiceService.NewWakeWordListener(log, s.wakeWordEngine, voiceService.NewPermissionGate(log, nil), nil, voiceService.DefaultVoiceConfig())
	if err := listener.Initialize("yo jarvis"); !errors.Is(err, voice.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestWithDeviceSetsWakeWordEngine(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	s := &Server{log: log}
	if err := WithDevice("ffmpeg", "ws://127.0.0.1:9/engine")(s); err != nil {
		t.Fatalf("with device: %v", err)
	}
	if s.wakeWordEngine == nil || s.capture == nil || s.permissions == nil {
		t.Fatalf("device adapters not wired: %+v", s)
	}
}
