package voiceService

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/nlp"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// TriggerPhrase builds the hotword for an assistant name.
func TriggerPhrase(assistantName string) string {
	name := strings.TrimSpace(assistantName)
	if name == "" {
		return ""
	}
	return nlp.Normalize("Yo " + name)
}

// WakeWordListener drives the hotword engine and fans detections out to
// subscribers. Subscriptions survive pause and resume.
type WakeWordListener struct {
	log     *logrus.Logger
	engine  WakeWordEngine
	gate    *PermissionGate
	events  EventSink
	limiter *rate.Limiter
	now     func() time.Time

	mu     sync.Mutex
	state  entity.WakeWordState
	phrase string
	cancel context.CancelFunc

	subMu     sync.RWMutex
	subs      map[uint64]func(entity.WakeWordDetection)
	errSubs   map[uint64]func(error)
	nextSubID uint64
}

func NewWakeWordListener(
	log *logrus.Logger,
	engine WakeWordEngine,
	gate *PermissionGate,
	events EventSink,
	config VoiceConfig,
) *WakeWordListener {
	if events == nil {
		events = nopSink{}
	}

	limit := rate.Inf
	if config.WakeWordCooldown > 0 {
		limit = rate.Every(config.WakeWordCooldown)
	}

	return &WakeWordListener{
		log:     log,
		engine:  engine,
		gate:    gate,
		events:  events,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		state:   entity.WakeWordStateUninitialized,
		subs:    make(map[uint64]func(entity.WakeWordDetection)),
		errSubs: make(map[uint64]func(error)),
	}
}

func (w *WakeWordListener) RequestPermissions(ctx context.Context) bool {
	return w.gate.Request(ctx, voice.CapabilityWakeWord)
}

// Initialize configures the trigger phrase. It fails when the phrase is empty
// or the build has no hotword engine.
func (w *WakeWordListener) Initialize(phrase string) error {
	phrase = nlp.Normalize(phrase)
	if phrase == "" {
		return fmt.Errorf("%w: trigger phrase is empty", voice.ErrConfiguration)
	}
	if w.engine == nil || !w.engine.Available() {
		return fmt.Errorf("%w: wake word detection is unavailable in this build", voice.ErrConfiguration)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == entity.WakeWordStateListening {
		return voice.ErrAlreadyListening
	}

	w.phrase = phrase
	if w.state == entity.WakeWordStateUninitialized {
		w.state = entity.WakeWordStateReady
	}

	w.log.WithField("phrase", phrase).Info("Wake word listener initialized")
	return nil
}

func (w *WakeWordListener) StartListening(ctx context.Context) error {
	w.mu.Lock()

	switch w.state {
	case entity.WakeWordStateUninitialized:
		w.mu.Unlock()
		return voice.ErrNotInitialized
	case entity.WakeWordStateListening, entity.WakeWordStatePaused:
		w.mu.Unlock()
		return voice.ErrAlreadyListening
	}

	if !w.gate.Granted(voice.CapabilityWakeWord) {
		w.mu.Unlock()
		return voice.ErrPermissionDenied
	}

	if err := w.startEngine(); err != nil {
		w.mu.Unlock()
		w.reportError(err)
		return err
	}
	w.state = entity.WakeWordStateListening
	w.mu.Unlock()

	w.log.Info("Wake word listening started")
	w.emitState(entity.WakeWordStateListening)
	return nil
}

// StopListening is idempotent.
func (w *WakeWordListener) StopListening() {
	w.mu.Lock()
	switch w.state {
	case entity.WakeWordStateListening:
		w.stopEngine()
	case entity.WakeWordStatePaused:
	default:
		w.mu.Unlock()
		return
	}
	w.state = entity.WakeWordStateReady
	w.mu.Unlock()

	w.log.Info("Wake word listening stopped")
	w.emitState(entity.WakeWordStateReady)
}

// Pause releases the engine without dropping subscribers. It is a no-op
// unless the listener is running.
func (w *WakeWordListener) Pause() {
	w.mu.Lock()
	if w.state != entity.WakeWordStateListening {
		w.mu.Unlock()
		return
	}
	w.stopEngine()
	w.state = entity.WakeWordStatePaused
	w.mu.Unlock()

	w.emitState(entity.WakeWordStatePaused)
}

// Resume restarts a paused listener.
func (w *WakeWordListener) Resume(ctx context.Context) error {
	w.mu.Lock()
	if w.state != entity.WakeWordStatePaused {
		w.mu.Unlock()
		return nil
	}
	if err := w.startEngine(); err != nil {
		w.state = entity.WakeWordStateReady
		w.mu.Unlock()
		w.reportError(err)
		w.emitState(entity.WakeWordStateReady)
		return err
	}
	w.state = entity.WakeWordStateListening
	w.mu.Unlock()

	w.emitState(entity.WakeWordStateListening)
	return nil
}

func (w *WakeWordListener) Running() bool {
	return w.State() == entity.WakeWordStateListening
}

func (w *WakeWordListener) State() entity.WakeWordState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Subscribe registers a detection observer and returns its unsubscribe func.
func (w *WakeWordListener) Subscribe(fn func(entity.WakeWordDetection)) func() {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	w.nextSubID++
	id := w.nextSubID
	w.subs[id] = fn

	return func() {
		w.subMu.Lock()
		defer w.subMu.Unlock()
		delete(w.subs, id)
	}
}

func (w *WakeWordListener) SubscribeErrors(fn func(error)) func() {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	w.nextSubID++
	id := w.nextSubID
	w.errSubs[id] = fn

	return func() {
		w.subMu.Lock()
		defer w.subMu.Unlock()
		delete(w.errSubs, id)
	}
}

func (w *WakeWordListener) Shutdown() {
	w.StopListening()
}

// startEngine arms the engine. Caller holds w.mu.
func (w *WakeWordListener) startEngine() error {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan voice.EngineEvent, 8)

	if err := w.engine.Start(ctx, w.phrase, out); err != nil {
		cancel()
		return fmt.Errorf("%w: %w", voice.ErrConfiguration, err)
	}

	w.cancel = cancel
	go w.consume(ctx, out)
	return nil
}

// stopEngine disarms the engine. Caller holds w.mu.
func (w *WakeWordListener) stopEngine() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if err := w.engine.Stop(); err != nil {
		w.log.WithField("error", err.Error()).Warn("Failed to stop wake word engine")
	}
}

func (w *WakeWordListener) consume(ctx context.Context, in <-chan voice.EngineEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-in:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			if evt.Err != nil {
				w.reportError(evt.Err)
				continue
			}
			if evt.Detection != nil {
				w.deliver(*evt.Detection)
			}
		}
	}
}

func (w *WakeWordListener) deliver(det entity.WakeWordDetection) {
	if !w.limiter.Allow() {
		w.log.WithField("phrase", det.Phrase).Debug("Wake word detection debounced")
		return
	}
	if det.DetectedAt.IsZero() {
		det.DetectedAt = w.now()
	}

	w.log.WithFields(logrus.Fields{
		"phrase":     det.Phrase,
		"confidence": det.Confidence,
	}).Info("Wake word detected")
	emit(w.events, voice.Event{
		Type: voice.EventWakeWordDetected,
		Data: map[string]any{"phrase": det.Phrase, "confidence": det.Confidence},
	})

	w.subMu.RLock()
	subs := make([]func(entity.WakeWordDetection), 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.subMu.RUnlock()

	for _, fn := range subs {
		fn(det)
	}
}

// reportError logs an engine failure and notifies error observers. The
// listener is not restarted.
func (w *WakeWordListener) reportError(err error) {
	w.log.WithField("error", err.Error()).Warn("Wake word engine error")
	emit(w.events, voice.Event{
		Type:    voice.EventWakeWordError,
		Kind:    voice.KindOf(err),
		Message: err.Error(),
	})

	w.subMu.RLock()
	subs := make([]func(error), 0, len(w.errSubs))
	for _, fn := range w.errSubs {
		subs = append(subs, fn)
	}
	w.subMu.RUnlock()

	for _, fn := range subs {
		fn(err)
	}
}

func (w *WakeWordListener) emitState(state entity.WakeWordState) {
	emit(w.events, voice.Event{
		Type:  voice.EventWakeWordState,
		State: string(state),
	})
}
