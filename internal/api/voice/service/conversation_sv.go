package voiceService

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	contextPkg "PersonalAssistant/pkg/context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TurnRunner is the logic run while a conversation is active.
type TurnRunner interface {
	RunTurn(ctx context.Context, conv *Conversation) error
}

type TurnFunc func(ctx context.Context, conv *Conversation) error

func (f TurnFunc) RunTurn(ctx context.Context, conv *Conversation) error {
	return f(ctx, conv)
}

// Conversation is one active dialogue. Done is closed once cleanup, listener
// restoration included, has completed.
type Conversation struct {
	recorder *Recorder

	mu      sync.Mutex
	session entity.ConversationSession
	ended   bool
	result  *Result
	err     error

	cancel      context.CancelFunc
	stopCapture chan struct{}
	stopOnce    sync.Once
	finishOnce  sync.Once
	done        chan struct{}
}

func (c *Conversation) ID() string {
	return c.session.ID
}

func (c *Conversation) Session() entity.ConversationSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Conversation) Done() <-chan struct{} {
	return c.done
}

// Err is the error that ended the conversation. Valid after Done.
func (c *Conversation) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Result is the pipeline outcome of the turn, if one ran.
func (c *Conversation) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// StopCapture asks the turn to stop recording early.
func (c *Conversation) StopCapture() {
	c.stopOnce.Do(func() { close(c.stopCapture) })
}

func (c *Conversation) CaptureStopped() <-chan struct{} {
	return c.stopCapture
}

// StartRecording opens the turn's recording. It refuses once the
// conversation has ended so no capture outlives cleanup.
func (c *Conversation) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ended {
		return voice.ErrShutdown
	}
	_, err := c.recorder.StartRecording(ctx, c.session.Mode, c.recordingOwner())
	return err
}

func (c *Conversation) SetResult(res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = res
}

const conversationOwnerPrefix = "conversation:"

func (c *Conversation) recordingOwner() string {
	return conversationOwnerPrefix + c.session.ID
}

func isConversationOwner(caller string) bool {
	return strings.HasPrefix(caller, conversationOwnerPrefix)
}

func (c *Conversation) setState(state entity.ConversationState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.State = state
}

// ConversationManager allows one conversation at a time and guarantees the
// wake word listener is paused for its duration and restored afterwards.
type ConversationManager struct {
	log      *logrus.Logger
	listener *WakeWordListener
	recorder *Recorder
	turn     TurnRunner
	events   EventSink
	config   VoiceConfig

	mu          sync.Mutex
	current     *Conversation
	unsubscribe func()
}

func NewConversationManager(
	log *logrus.Logger,
	listener *WakeWordListener,
	recorder *Recorder,
	turn TurnRunner,
	events EventSink,
	config VoiceConfig,
) *ConversationManager {
	if events == nil {
		events = nopSink{}
	}

	return &ConversationManager{
		log:      log,
		listener: listener,
		recorder: recorder,
		turn:     turn,
		events:   events,
		config:   config,
	}
}

// Init routes wake word detections into new conversations.
func (m *ConversationManager) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unsubscribe != nil {
		return
	}
	m.unsubscribe = m.listener.Subscribe(func(det entity.WakeWordDetection) {
		go m.onWakeWord(det)
	})
}

func (m *ConversationManager) onWakeWord(det entity.WakeWordDetection) {
	_, err := m.StartConversation(context.Background(), m.config.AssistantName, "wake-word", entity.VoiceModeWakeTriggered)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"phrase": det.Phrase,
			"error":  err.Error(),
		}).Info("Wake word ignored")
		emit(m.events, voice.Event{
			Type:    voice.EventConversationError,
			Kind:    voice.KindOf(err),
			Message: voice.UserMessage(err),
		})
	}
}

// StartConversation pauses the listener and runs the turn logic. It rejects
// the call while another conversation or any recording is open, in which
// case the listener is left untouched.
func (m *ConversationManager) StartConversation(ctx context.Context, assistantName, caller string, mode entity.VoiceMode) (*Conversation, error) {
	requestID := contextPkg.GetRequestID(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, voice.ErrConversationActive
	}
	if m.recorder.Active() {
		return nil, voice.ErrRecordingInProgress
	}

	if assistantName == "" {
		assistantName = m.config.AssistantName
	}

	wasRunning := m.listener.Running()
	m.listener.Pause()

	conv := &Conversation{
		recorder: m.recorder,
		session: entity.ConversationSession{
			ID:                uuid.NewString(),
			AssistantName:     assistantName,
			Caller:            caller,
			Mode:              mode,
			State:             entity.ConversationStateListening,
			WakeWordWasActive: wasRunning,
			StartedAt:         time.Now(),
		},
		stopCapture: make(chan struct{}),
		done:        make(chan struct{}),
	}

	turnCtx := contextPkg.WithConversationID(context.WithoutCancel(ctx), conv.session.ID)
	var cancel context.CancelFunc
	if m.config.ConversationTimeout > 0 {
		turnCtx, cancel = context.WithTimeout(turnCtx, m.config.ConversationTimeout)
	} else {
		turnCtx, cancel = context.WithCancel(turnCtx)
	}
	conv.cancel = cancel
	m.current = conv

	m.log.WithFields(logrus.Fields{
		"request_id":       requestID,
		"conversation_id":  conv.session.ID,
		"mode":             mode,
		"wake_word_active": wasRunning,
	}).Info("Conversation started")
	m.emitState(conv.Session())

	go m.run(turnCtx, conv)

	return conv, nil
}

func (m *ConversationManager) run(ctx context.Context, conv *Conversation) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversation turn panicked: %v", r)
		}
		if err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: conversation exceeded %s", voice.ErrTimeout, m.config.ConversationTimeout)
		}
		m.finish(conv, err)
	}()

	conv.setState(entity.ConversationStateActive)
	m.emitState(conv.Session())

	// The deadline ends the conversation even when the turn ignores ctx.
	go func() {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				m.finish(conv, fmt.Errorf("%w: conversation exceeded %s", voice.ErrTimeout, m.config.ConversationTimeout))
			}
		case <-conv.done:
		}
	}()

	if m.turn != nil {
		err = m.turn.RunTurn(ctx, conv)
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", voice.ErrTimeout, err)
	}
}

// EndConversation finishes the active conversation, if any. It returns once
// the listener has been restored.
func (m *ConversationManager) EndConversation() {
	m.mu.Lock()
	conv := m.current
	m.mu.Unlock()

	if conv == nil {
		return
	}
	m.finish(conv, nil)
	<-conv.done
}

// Current returns the active conversation session.
func (m *ConversationManager) Current() (entity.ConversationSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return entity.ConversationSession{}, false
	}
	return m.current.Session(), true
}

// StopCapture ends the active conversation's recording window early.
func (m *ConversationManager) StopCapture() bool {
	m.mu.Lock()
	conv := m.current
	m.mu.Unlock()

	if conv == nil {
		return false
	}
	conv.StopCapture()
	return true
}

func (m *ConversationManager) Shutdown() {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.mu.Unlock()

	m.EndConversation()
}

// finish is the single cleanup path for every way a conversation ends.
// Errors are reported, never re-raised.
func (m *ConversationManager) finish(conv *Conversation, err error) {
	conv.finishOnce.Do(func() {
		conv.mu.Lock()
		conv.ended = true
		conv.session.State = entity.ConversationStateEnding
		conv.mu.Unlock()
		conv.cancel()
		m.emitState(conv.Session())

		ctx := contextPkg.WithConversationID(context.Background(), conv.session.ID)
		m.recorder.StopIfOwner(ctx, conv.recordingOwner())

		if conv.session.WakeWordWasActive {
			if rerr := m.listener.Resume(ctx); rerr != nil {
				m.log.WithFields(logrus.Fields{
					"conversation_id": conv.session.ID,
					"error":           rerr.Error(),
				}).Error("Failed to restore wake word listener")
			}
		}

		fields := logrus.Fields{"conversation_id": conv.session.ID}
		if err != nil {
			fields["error"] = err.Error()
			m.log.WithFields(fields).Warn("Conversation ended with error")
			emit(m.events, voice.Event{
				Type:      voice.EventConversationError,
				SessionID: conv.session.ID,
				Kind:      voice.KindOf(err),
				Message:   voice.UserMessage(err),
			})
		} else {
			m.log.WithFields(fields).Info("Conversation ended")
		}

		m.mu.Lock()
		if m.current == conv {
			m.current = nil
		}
		m.mu.Unlock()

		conv.mu.Lock()
		conv.err = err
		conv.session.State = entity.ConversationStateIdle
		conv.mu.Unlock()
		m.emitState(conv.Session())

		close(conv.done)
	})
}

func (m *ConversationManager) emitState(session entity.ConversationSession) {
	emit(m.events, voice.Event{
		Type:      voice.EventConversationState,
		SessionID: session.ID,
		State:     string(session.State),
	})
}
