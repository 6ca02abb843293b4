package voiceService

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"PersonalAssistant/internal/api/task"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig(t *testing.T) VoiceConfig {
	cfg := DefaultVoiceConfig()
	cfg.Audio.OutputDir = t.TempDir()
	cfg.RecordingSafetyTimeout = 0
	cfg.ConversationTimeout = time.Second
	cfg.TurnCaptureWindow = 0
	cfg.WakeWordCooldown = 0
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

type fakePermissions struct {
	mu    sync.Mutex
	grant map[voice.Capability]bool
	err   error
	asked []voice.Capability
}

func grantAll() *fakePermissions {
	return &fakePermissions{grant: map[voice.Capability]bool{
		voice.CapabilityMicrophone:    true,
		voice.CapabilityWakeWord:      true,
		voice.CapabilityNotifications: true,
	}}
}

func (f *fakePermissions) Request(_ context.Context, c voice.Capability) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, c)
	if f.err != nil {
		return false, f.err
	}
	return f.grant[c], nil
}

type fakeCapture struct {
	mu       sync.Mutex
	dir      string
	bytes    int
	startErr error
	stopErr  error
	started  int
	stopped  int
}

type fakeCaptureSession struct {
	parent *fakeCapture
	path   string
}

func (f *fakeCapture) Start(_ context.Context, cfg voice.AudioConfig) (CaptureSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started++
	dir := f.dir
	if dir == "" {
		dir = cfg.OutputDir
	}
	path := filepath.Join(dir, time.Now().Format("150405.000000000")+".wav")
	return &fakeCaptureSession{parent: f, path: path}, nil
}

func (s *fakeCaptureSession) Stop() (voice.CaptureResult, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.parent.stopped++
	if s.parent.stopErr != nil {
		return voice.CaptureResult{}, s.parent.stopErr
	}
	if err := os.WriteFile(s.path, make([]byte, s.parent.bytes), 0o600); err != nil {
		return voice.CaptureResult{}, err
	}
	return voice.CaptureResult{
		Path:     s.path,
		Bytes:    int64(s.parent.bytes),
		Duration: 2 * time.Second,
	}, nil
}

func (f *fakeCapture) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

type fakeEngine struct {
	mu        sync.Mutex
	available bool
	startErr  error
	out       chan<- voice.EngineEvent
	phrase    string
	starts    int
	stops     int
}

func (e *fakeEngine) Available() bool { return e.available }

func (e *fakeEngine) Start(_ context.Context, phrase string, out chan<- voice.EngineEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	e.starts++
	e.phrase = phrase
	e.out = out
	return nil
}

func (e *fakeEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	e.out = nil
	return nil
}

func (e *fakeEngine) emit(evt voice.EngineEvent) bool {
	e.mu.Lock()
	out := e.out
	e.mu.Unlock()
	if out == nil {
		return false
	}
	out <- evt
	return true
}

func (e *fakeEngine) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts, e.stops
}

type fakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	errs  []error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio voice.AudioPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if _, err := os.Stat(audio.Path); err != nil {
		return "", err
	}
	if i < len(f.texts) {
		return f.texts[i], nil
	}
	if len(f.texts) > 0 {
		return f.texts[len(f.texts)-1], nil
	}
	return "", nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExtractor struct {
	mu    sync.Mutex
	draft entity.ExtractedTaskDraft
	err   error
	calls int
	texts []string
}

func (f *fakeExtractor) Extract(_ context.Context, text string, _ time.Time) (entity.ExtractedTaskDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.texts = append(f.texts, text)
	return f.draft, f.err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCommitter struct {
	mu      sync.Mutex
	err     error
	drafts  []entity.ExtractedTaskDraft
	creator []entity.CreatedBy
}

func (f *fakeCommitter) Commit(_ context.Context, draft entity.ExtractedTaskDraft, createdBy entity.CreatedBy, _ ...task.CommitOption) (entity.PersistedTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, draft)
	f.creator = append(f.creator, createdBy)
	if f.err != nil {
		return entity.PersistedTask{}, &task.CommitError{Draft: draft, DraftID: "draft-1", Cause: f.err}
	}
	return entity.PersistedTask{
		ID:        "task-1",
		Title:     draft.Title,
		Priority:  draft.Priority,
		Status:    entity.TaskStatusPending,
		DueDate:   draft.DueDate,
		CreatedBy: createdBy,
	}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []voice.Event
}

func (s *recordingSink) Publish(evt voice.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) ofType(t voice.EventType) []voice.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []voice.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	cfg         VoiceConfig
	perms       *fakePermissions
	gate        *PermissionGate
	mic         *Microphone
	capture     *fakeCapture
	engine      *fakeEngine
	sink        *recordingSink
	recorder    *Recorder
	listener    *WakeWordListener
	transcriber *fakeTranscriber
	extractor   *fakeExtractor
	committer   *fakeCommitter
	pipeline    *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cfg:         testConfig(t),
		perms:       grantAll(),
		mic:         NewMicrophone(),
		capture:     &fakeCapture{bytes: 4096},
		engine:      &fakeEngine{available: true},
		sink:        &recordingSink{},
		transcriber: &fakeTranscriber{texts: []string{"Call the dentist tomorrow at 3pm, high priority"}},
		extractor: &fakeExtractor{draft: entity.ExtractedTaskDraft{
			Title:    "Call the dentist",
			Priority: entity.PriorityHigh,
		}},
		committer: &fakeCommitter{},
	}
	f.capture.dir = f.cfg.Audio.OutputDir

	log := testLogger()
	f.gate = NewPermissionGate(log, f.perms)
	f.recorder = NewRecorder(log, f.capture, f.gate, f.mic, f.sink, f.cfg)
	f.listener = NewWakeWordListener(log, f.engine, f.gate, f.sink, f.cfg)
	f.pipeline = NewPipeline(log, f.transcriber, f.extractor, f.committer, nil, nil, f.sink, f.cfg)
	return f
}

func (f *fixture) grantAll(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if !f.recorder.RequestPermissions(ctx) || !f.listener.RequestPermissions(ctx) {
		t.Fatal("expected permissions to be granted")
	}
}

func (f *fixture) startListening(t *testing.T) {
	t.Helper()
	f.grantAll(t)
	if err := f.listener.Initialize(TriggerPhrase("Jarvis")); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := f.listener.StartListening(context.Background()); err != nil {
		t.Fatalf("start listening: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func waitDone(t *testing.T, conv *Conversation) {
	t.Helper()
	select {
	case <-conv.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("conversation did not finish")
	}
}

var errBoom = errors.New("boom")
