package voiceService

import (
	"context"
	"errors"

	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	contextPkg "PersonalAssistant/pkg/context"

	"github.com/sirupsen/logrus"
)

type IVoiceService interface {
	Init(ctx context.Context) error
	Shutdown()

	StartRecording(ctx context.Context, caller string) (entity.VoiceSession, error)
	StopRecording(ctx context.Context) (*Result, error)
	Status(ctx context.Context) voice.StatusResponse

	StartConversation(ctx context.Context, assistantName, caller string) (entity.ConversationSession, error)
	StopCapture(ctx context.Context) error
	EndConversation(ctx context.Context)

	StartWakeWord(ctx context.Context, assistantName string) error
	StopWakeWord(ctx context.Context)

	History(ctx context.Context, page, limit int) ([]entity.VoiceCommand, int, error)
}

type voiceService struct {
	log          *logrus.Logger
	recorder     *Recorder
	listener     *WakeWordListener
	conversation *ConversationManager
	pipeline     *Pipeline
	history      HistoryRecorder
	config       VoiceConfig
}

func NewVoiceService(
	log *logrus.Logger,
	recorder *Recorder,
	listener *WakeWordListener,
	conversation *ConversationManager,
	pipeline *Pipeline,
	history HistoryRecorder,
	config VoiceConfig,
) IVoiceService {
	return &voiceService{
		log:          log,
		recorder:     recorder,
		listener:     listener,
		conversation: conversation,
		pipeline:     pipeline,
		history:      history,
		config:       config,
	}
}

// Init wires wake word detections to conversations and, when configured,
// starts listening. Listener setup failures are logged, not fatal.
func (s *voiceService) Init(ctx context.Context) error {
	s.conversation.Init()
	s.recorder.RequestPermissions(ctx)

	if !s.config.WakeWordAutoStart {
		return nil
	}
	if err := s.StartWakeWord(ctx, s.config.AssistantName); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Wake word listener not started")
	}
	return nil
}

func (s *voiceService) Shutdown() {
	s.conversation.Shutdown()
	s.listener.Shutdown()
	s.recorder.Interrupt(voice.ErrShutdown)
}

func (s *voiceService) StartRecording(ctx context.Context, caller string) (entity.VoiceSession, error) {
	if _, active := s.conversation.Current(); active {
		return entity.VoiceSession{}, voice.ErrConversationActive
	}
	return s.recorder.StartRecording(ctx, entity.VoiceModeManual, caller)
}

// StopRecording closes the manual recording and processes it. A missing or
// silent recording is reported as an empty result. A conversation's turn
// recording is never taken over.
func (s *voiceService) StopRecording(ctx context.Context) (*Result, error) {
	if _, active := s.conversation.Current(); active {
		return nil, voice.ErrConversationActive
	}
	owner := s.recorder.Status().Caller
	if isConversationOwner(owner) {
		return nil, voice.ErrConversationActive
	}

	handle, err := s.recorder.StopRecordingFor(ctx, owner)
	if err != nil {
		if errors.Is(err, voice.ErrRecordingNotOwned) {
			return nil, voice.ErrConversationActive
		}
		return nil, err
	}
	if handle == nil {
		return nil, voice.ErrEmptyResult
	}
	return s.pipeline.Process(ctx, handle)
}

func (s *voiceService) Status(ctx context.Context) voice.StatusResponse {
	res := voice.StatusResponse{
		Recording: s.recorder.Status(),
		WakeWord:  s.listener.State(),
	}
	if conv, ok := s.conversation.Current(); ok {
		res.Conversation = &conv
	}
	return res
}

func (s *voiceService) StartConversation(ctx context.Context, assistantName, caller string) (entity.ConversationSession, error) {
	conv, err := s.conversation.StartConversation(ctx, assistantName, caller, entity.VoiceModeManual)
	if err != nil {
		return entity.ConversationSession{}, err
	}
	return conv.Session(), nil
}

func (s *voiceService) StopCapture(ctx context.Context) error {
	if !s.conversation.StopCapture() {
		return voice.ErrNoConversation
	}
	return nil
}

func (s *voiceService) EndConversation(ctx context.Context) {
	s.conversation.EndConversation()
}

func (s *voiceService) StartWakeWord(ctx context.Context, assistantName string) error {
	if assistantName == "" {
		assistantName = s.config.AssistantName
	}
	if !s.listener.RequestPermissions(ctx) {
		return voice.ErrPermissionDenied
	}
	if err := s.listener.Initialize(TriggerPhrase(assistantName)); err != nil {
		return err
	}
	return s.listener.StartListening(ctx)
}

func (s *voiceService) StopWakeWord(ctx context.Context) {
	s.listener.StopListening()
}

func (s *voiceService) History(ctx context.Context, page, limit int) ([]entity.VoiceCommand, int, error) {
	if s.history == nil {
		return nil, 0, nil
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.history.ListCommands(ctx, limit, (page-1)*limit)
}
