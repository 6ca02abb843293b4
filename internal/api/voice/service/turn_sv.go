package voiceService

import (
	"context"
	"time"

	"PersonalAssistant/internal/api/voice"

	"github.com/sirupsen/logrus"
)

// CaptureTurn records one utterance and sends it through the pipeline.
type CaptureTurn struct {
	log      *logrus.Logger
	recorder *Recorder
	pipeline *Pipeline
	window   time.Duration
}

func NewCaptureTurn(log *logrus.Logger, recorder *Recorder, pipeline *Pipeline, config VoiceConfig) *CaptureTurn {
	return &CaptureTurn{
		log:      log,
		recorder: recorder,
		pipeline: pipeline,
		window:   config.TurnCaptureWindow,
	}
}

func (t *CaptureTurn) RunTurn(ctx context.Context, conv *Conversation) error {
	if err := conv.StartRecording(ctx); err != nil {
		return err
	}

	var window <-chan time.Time
	if t.window > 0 {
		timer := time.NewTimer(t.window)
		defer timer.Stop()
		window = timer.C
	}

	select {
	case <-window:
	case <-conv.CaptureStopped():
	case <-ctx.Done():
		return ctx.Err()
	}

	handle, err := t.recorder.StopRecordingFor(ctx, conv.recordingOwner())
	if err != nil {
		return err
	}
	if handle == nil {
		return voice.ErrEmptyResult
	}

	result, err := t.pipeline.Process(ctx, handle)
	conv.SetResult(result)
	return err
}
