package voiceService

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"PersonalAssistant/internal/api/task"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	contextPkg "PersonalAssistant/pkg/context"
	"PersonalAssistant/pkg/log"
	"PersonalAssistant/pkg/response"
	"PersonalAssistant/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type Result struct {
	SessionID  string                     `json:"session_id"`
	Transcript entity.Transcript          `json:"transcript"`
	Draft      *entity.ExtractedTaskDraft `json:"draft,omitempty"`
	Task       *entity.PersistedTask      `json:"task,omitempty"`
	DraftID    string                     `json:"draft_id,omitempty"`
}

// Pipeline turns a finished recording into a committed task. Extraction only
// ever runs on a successful, non-blank transcription.
type Pipeline struct {
	log         *logrus.Logger
	transcriber Transcriber
	extractor   Extractor
	committer   TaskCommitter
	privacy     PrivacyProvider
	archiver    AudioArchiver
	history     HistoryRecorder
	validator   *validator.Validate
	utils       utils.IUtils
	events      EventSink
	config      VoiceConfig
	now         func() time.Time
}

type PipelineOption func(*Pipeline)

func WithPrivacyArchive(privacy PrivacyProvider, archiver AudioArchiver) PipelineOption {
	return func(p *Pipeline) {
		p.privacy = privacy
		p.archiver = archiver
	}
}

func WithHistory(history HistoryRecorder) PipelineOption {
	return func(p *Pipeline) {
		p.history = history
	}
}

func NewPipeline(
	log *logrus.Logger,
	transcriber Transcriber,
	extractor Extractor,
	committer TaskCommitter,
	validate *validator.Validate,
	utils utils.IUtils,
	events EventSink,
	config VoiceConfig,
	opts ...PipelineOption,
) *Pipeline {
	if events == nil {
		events = nopSink{}
	}
	if validate == nil {
		validate = validator.New()
	}

	p := &Pipeline{
		log:         log,
		transcriber: transcriber,
		extractor:   extractor,
		committer:   committer,
		validator:   validate,
		utils:       utils,
		events:      events,
		config:      config,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process consumes handle and runs transcription, extraction and commit.
// The returned Result carries whatever stages completed.
func (p *Pipeline) Process(ctx context.Context, handle *entity.AudioHandle) (*Result, error) {
	requestID := contextPkg.GetRequestID(ctx)

	path, err := handle.Consume()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", voice.ErrAudioHandleConsumed, err)
	}
	defer func() {
		if !p.config.KeepAudio {
			removeAudio(path)
		}
	}()

	result := &Result{SessionID: handle.SessionID}

	p.stage(handle.SessionID, "transcribing")
	text, err := p.transcribe(ctx, voice.AudioPayload{
		SessionID:  handle.SessionID,
		Path:       path,
		Duration:   handle.Duration,
		RecordedAt: handle.RecordedAt,
	})
	if err != nil {
		return result, p.fail(ctx, result, err)
	}
	result.Transcript = entity.Transcript{Text: text, RecordedAt: handle.RecordedAt}

	p.archive(ctx, path)

	p.stage(handle.SessionID, "extracting")
	draft, err := p.extractor.Extract(ctx, text, handle.RecordedAt)
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": handle.SessionID,
			"error":      err.Error(),
		}).Error("Failed to extract task from transcript")
		return result, p.fail(ctx, result, fmt.Errorf("%w: %w", voice.ErrExtractionFailed, err))
	}

	draft, err = p.NormalizeDraft(draft)
	if err != nil {
		return result, p.fail(ctx, result, err)
	}
	result.Draft = &draft

	if p.committer == nil {
		p.record(ctx, result, nil)
		return result, nil
	}

	p.stage(handle.SessionID, "committing")
	persisted, err := p.committer.Commit(ctx, draft, entity.CreatedByVoice, task.WithTranscript(text))
	if err != nil {
		result.DraftID = task.PendingDraftID(err)
		return result, p.fail(ctx, result, err)
	}
	result.Task = &persisted

	p.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": handle.SessionID,
		"task_id":    persisted.ID,
	}).Info("Voice task committed")
	p.stage(handle.SessionID, "done")
	p.record(ctx, result, nil)

	return result, nil
}

// NormalizeDraft cleans extractor output and rejects drafts without a title.
func (p *Pipeline) NormalizeDraft(draft entity.ExtractedTaskDraft) (entity.ExtractedTaskDraft, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	draft.LocationName = strings.TrimSpace(draft.LocationName)

	draft.Priority = entity.Priority(strings.ToLower(strings.TrimSpace(string(draft.Priority))))
	if !draft.Priority.Valid() {
		draft.Priority = entity.PriorityMedium
	}

	draft.Category = entity.TaskCategory(strings.ToLower(strings.TrimSpace(string(draft.Category))))
	if !draft.Category.Valid() {
		draft.Category = ""
	}

	if p.utils != nil {
		draft.Tags = p.utils.NormalizeTags(draft.Tags)
	}

	if err := p.validator.Struct(draft); err != nil {
		return draft, fmt.Errorf("%w: %w", voice.ErrExtractionFailed, err)
	}
	return draft, nil
}

func (p *Pipeline) transcribe(ctx context.Context, audio voice.AudioPayload) (string, error) {
	attempts := p.config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		text, err := p.transcriber.Transcribe(ctx, audio)
		if err == nil {
			text = strings.TrimSpace(text)
			if text == "" {
				return "", voice.ErrEmptyResult
			}
			return text, nil
		}

		err = ClassifyCollaboratorError(err)
		retryable := errors.Is(err, voice.ErrConnection) || errors.Is(err, voice.ErrTimeout)
		if attempt >= attempts || !retryable {
			return "", err
		}

		p.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": audio.SessionID,
			"attempt":    attempt,
			"error":      err.Error(),
		}).Warn("Transcription failed, retrying")

		select {
		case <-ctx.Done():
			return "", ClassifyCollaboratorError(ctx.Err())
		case <-time.After(p.config.RetryBackoff * time.Duration(attempt)):
		}
	}
}

// ClassifyCollaboratorError maps a transport failure onto the taxonomy.
// Errors already classified pass through.
func ClassifyCollaboratorError(err error) error {
	if err == nil {
		return nil
	}
	if voice.KindOf(err) != voice.KindUnknown {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", voice.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", voice.ErrTimeout, err)
	}

	if code, ok := response.StatusCode(err); ok {
		switch {
		case response.IsUnauthorized(code):
			return fmt.Errorf("%w: %w", voice.ErrAuthExpired, err)
		case response.IsTimeout(code):
			return fmt.Errorf("%w: %w", voice.ErrTimeout, err)
		}
	}

	return fmt.Errorf("%w: %w", voice.ErrConnection, err)
}

func (p *Pipeline) archive(ctx context.Context, path string) {
	if p.privacy == nil || p.archiver == nil {
		return
	}

	settings, err := p.privacy.PrivacySettings(ctx)
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Failed to load privacy settings, recording not archived")
		return
	}
	if !settings.StoreRecordings {
		return
	}

	location, err := p.archiver.UploadAudio(ctx, path)
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Failed to archive recording")
		return
	}
	p.log.WithField("location", location).Debug("Recording archived")
}

func failureKind(err error) voice.FailureKind {
	if errors.Is(err, task.ErrPersistence) {
		return voice.KindPersistence
	}
	return voice.KindOf(err)
}

func (p *Pipeline) fail(ctx context.Context, result *Result, err error) error {
	kind := failureKind(err)
	p.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": result.SessionID,
		"kind":       kind,
		"error":      err.Error(),
	}).Warn("Voice pipeline failed")

	data := map[string]any{}
	if result.DraftID != "" {
		data["draft_id"] = result.DraftID
	}
	emit(p.events, voice.Event{
		Type:      voice.EventPipelineFailed,
		SessionID: result.SessionID,
		Kind:      kind,
		Message:   voice.UserMessage(err),
		Data:      data,
	})
	p.record(ctx, result, err)

	return err
}

func (p *Pipeline) stage(sessionID, stage string) {
	emit(p.events, voice.Event{
		Type:      voice.EventPipelineStage,
		SessionID: sessionID,
		State:     stage,
	})
}

func (p *Pipeline) record(ctx context.Context, result *Result, err error) {
	if p.history == nil {
		return
	}

	cmd := entity.VoiceCommand{
		SessionID:  result.SessionID,
		Transcript: result.Transcript.Text,
		Outcome:    "committed",
		DraftID:    result.DraftID,
		CreatedAt:  p.now(),
	}
	if result.Task != nil {
		cmd.TaskID = result.Task.ID
	}
	if err != nil {
		cmd.Outcome = string(failureKind(err))
		cmd.Message = voice.UserMessage(err)
	} else if result.Task == nil {
		cmd.Outcome = "extracted"
	}
	if p.utils != nil {
		if id, idErr := p.utils.NewULIDFromTimestamp(cmd.CreatedAt); idErr == nil {
			cmd.ID = id
		}
	}

	if err := p.history.RecordCommand(ctx, cmd); err != nil {
		log.WithRequestID(ctx).WithError(err).Warn("Failed to record voice history")
	}
}
