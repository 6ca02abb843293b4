package voiceService

import (
	"context"
	"errors"
	"testing"
	"time"

	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
)

// blockingTurn holds the conversation open until it is ended.
func blockingTurn(entered chan<- struct{}) TurnFunc {
	return func(ctx context.Context, conv *Conversation) error {
		if entered != nil {
			entered <- struct{}{}
		}
		<-ctx.Done()
		return nil
	}
}

func (f *fixture) manager(turn TurnRunner) *ConversationManager {
	return NewConversationManager(testLogger(), f.listener, f.recorder, turn, f.sink, f.cfg)
}

func TestWakeTriggeredConversationRestoresListener(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.startListening(t)

	entered := make(chan struct{}, 1)
	m := f.manager(blockingTurn(entered))
	m.Init()
	defer m.Shutdown()

	f.engine.emit(voice.EngineEvent{Detection: &entity.WakeWordDetection{Phrase: "yo jarvis"}})
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("conversation not started by detection")
	}

	session, ok := m.Current()
	if !ok || session.Mode != entity.VoiceModeWakeTriggered || !session.WakeWordWasActive {
		t.Fatalf("unexpected session %+v", session)
	}
	if f.listener.Running() {
		t.Fatal("listener must be paused during the conversation")
	}

	m.EndConversation()

	if !f.listener.Running() {
		t.Fatal("listener must be resumed after the conversation")
	}
	if starts, stops := f.engine.counts(); starts != 2 || stops != 1 {
		t.Fatalf("unexpected engine lifecycle starts=%d stops=%d", starts, stops)
	}
	if _, ok := m.Current(); ok {
		t.Fatal("conversation should be cleared")
	}
}

func TestConversationLeavesStoppedListenerStopped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.grantAll(t)
	if err := f.listener.Initialize("yo jarvis"); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	m := f.manager(blockingTurn(nil))
	conv, err := m.StartConversation(context.Background(), "Jarvis", "ui", entity.VoiceModeManual)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	m.EndConversation()
	waitDone(t, conv)

	if f.listener.Running() {
		t.Fatal("listener was not running before and must not be started")
	}
	if starts, _ := f.engine.counts(); starts != 0 {
		t.Fatalf("engine should never start, got %d", starts)
	}
}

func TestConversationRejectedWhileRecordingOpen(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.startListening(t)
	ctx := context.Background()

	if _, err := f.recorder.StartRecording(ctx, entity.VoiceModeManual, "ui"); err != nil {
		t.Fatalf("start recording: %v", err)
	}

	m := f.manager(blockingTurn(nil))
	if _, err := m.StartConversation(ctx, "Jarvis", "wake-word", entity.VoiceModeWakeTriggered); !errors.Is(err, voice.ErrRecordingInProgress) {
		t.Fatalf("expected ErrRecordingInProgress, got %v", err)
	}

	if !f.listener.Running() {
		t.Fatal("listener must be left untouched")
	}
	if _, stops := f.engine.counts(); stops != 0 {
		t.Fatal("listener must not be paused")
	}
	if !f.recorder.Active() {
		t.Fatal("manual recording must be unaffected")
	}
}

func TestOnlyOneConversationAtATime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	m := f.manager(blockingTurn(nil))
	ctx := context.Background()

	if _, err := m.StartConversation(ctx, "Jarvis", "ui", entity.VoiceModeManual); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.StartConversation(ctx, "Jarvis", "ui", entity.VoiceModeManual); !errors.Is(err, voice.ErrConversationActive) {
		t.Fatalf("expected ErrConversationActive, got %v", err)
	}

	m.EndConversation()
	m.EndConversation()

	if _, err := m.StartConversation(ctx, "Jarvis", "ui", entity.VoiceModeManual); err != nil {
		t.Fatalf("restart after end: %v", err)
	}
	m.EndConversation()
}

func TestPanickingTurnStillRestoresListener(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.startListening(t)

	m := f.manager(TurnFunc(func(context.Context, *Conversation) error {
		panic("turn exploded")
	}))
	conv, err := m.StartConversation(context.Background(), "Jarvis", "ui", entity.VoiceModeManual)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, conv)

	if conv.Err() == nil {
		t.Fatal("expected the panic to be reported")
	}
	if !f.listener.Running() {
		t.Fatal("listener must be resumed after a panic")
	}
	if len(f.sink.ofType(voice.EventConversationError)) != 1 {
		t.Fatal("expected a non-fatal error event")
	}
}

func TestConversationTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.ConversationTimeout = 30 * time.Millisecond
	f.startListening(t)

	m := f.manager(blockingTurn(nil))
	conv, err := m.StartConversation(context.Background(), "Jarvis", "ui", entity.VoiceModeManual)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, conv)

	if !errors.Is(conv.Err(), voice.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", conv.Err())
	}
	if !f.listener.Running() {
		t.Fatal("listener must be resumed after timeout")
	}
}

func TestConversationTimeoutWhenTurnIgnoresContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.ConversationTimeout = 30 * time.Millisecond
	f.startListening(t)

	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })

	m := f.manager(TurnFunc(func(ctx context.Context, conv *Conversation) error {
		<-stuck
		return nil
	}))
	conv, err := m.StartConversation(context.Background(), "Jarvis", "ui", entity.VoiceModeManual)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, conv)

	if !errors.Is(conv.Err(), voice.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", conv.Err())
	}
	if _, ok := m.Current(); ok {
		t.Fatal("conversation should be cleared")
	}
	if !f.listener.Running() {
		t.Fatal("listener must be resumed after timeout")
	}
}

func TestEndConversationReleasesTurnRecording(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.grantAll(t)

	recording := make(chan struct{}, 1)
	m := f.manager(TurnFunc(func(ctx context.Context, conv *Conversation) error {
		if err := conv.StartRecording(ctx); err != nil {
			return err
		}
		recording <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}))

	conv, err := m.StartConversation(context.Background(), "Jarvis", "ui", entity.VoiceModeManual)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-recording

	m.EndConversation()
	waitDone(t, conv)

	if f.recorder.Active() {
		t.Fatal("turn recording must be closed")
	}
	if _, _, held := f.mic.Holder(); held {
		t.Fatal("microphone still held")
	}
	if err := conv.StartRecording(context.Background()); !errors.Is(err, voice.ErrShutdown) {
		t.Fatalf("ended conversation must refuse to record, got %v", err)
	}
}

func TestCaptureTurnCommitsTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.startListening(t)

	m := f.manager(NewCaptureTurn(testLogger(), f.recorder, f.pipeline, f.cfg))
	conv, err := m.StartConversation(context.Background(), "Jarvis", "ui", entity.VoiceModeManual)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, f.recorder.Active)
	conv.StopCapture()
	waitDone(t, conv)

	if conv.Err() != nil {
		t.Fatalf("unexpected error %v", conv.Err())
	}
	res := conv.Result()
	if res == nil || res.Task == nil || res.Task.ID != "task-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, _, held := f.mic.Holder(); held {
		t.Fatal("microphone still held")
	}
	if !f.listener.Running() {
		t.Fatal("listener must be resumed")
	}
}
