package voiceService

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	contextPkg "PersonalAssistant/pkg/context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Recorder owns the single open recording session.
type Recorder struct {
	log     *logrus.Logger
	capture AudioCapture
	gate    *PermissionGate
	mic     *Microphone
	events  EventSink
	config  VoiceConfig
	now     func() time.Time

	mu           sync.Mutex
	current      *recording
	last         entity.VoiceSession
	parked       *entity.AudioHandle
	parkedCaller string
}

type recording struct {
	session entity.VoiceSession
	capture CaptureSession
	lease   *MicrophoneLease
	timer   *time.Timer
	cancel  context.CancelFunc
}

func NewRecorder(
	log *logrus.Logger,
	capture AudioCapture,
	gate *PermissionGate,
	mic *Microphone,
	events EventSink,
	config VoiceConfig,
) *Recorder {
	if events == nil {
		events = nopSink{}
	}

	r := &Recorder{
		log:     log,
		capture: capture,
		gate:    gate,
		mic:     mic,
		events:  events,
		config:  config,
		now:     time.Now,
		last:    entity.VoiceSession{State: entity.RecordingStateIdle},
	}

	gate.OnRevoke(func(c voice.Capability) {
		if c == voice.CapabilityMicrophone {
			r.Interrupt(voice.ErrPermissionDenied)
		}
	})

	return r
}

func (r *Recorder) RequestPermissions(ctx context.Context) bool {
	return r.gate.Request(ctx, voice.CapabilityMicrophone)
}

// StartRecording opens a new session. It fails while any session is open or
// when the microphone permission is missing.
func (r *Recorder) StartRecording(ctx context.Context, mode entity.VoiceMode, caller string) (entity.VoiceSession, error) {
	requestID := contextPkg.GetRequestID(ctx)

	r.mu.Lock()

	if r.current != nil {
		r.mu.Unlock()
		return entity.VoiceSession{}, voice.ErrRecordingInProgress
	}

	session := entity.VoiceSession{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
		Mode:      mode,
		Caller:    caller,
	}

	if !r.gate.Granted(voice.CapabilityMicrophone) {
		session.State = entity.RecordingStateFailed
		r.last = session
		r.mu.Unlock()

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"caller":     caller,
		}).Warn("Recording rejected, microphone permission missing")
		r.emit(session)
		return session, voice.ErrPermissionDenied
	}

	lease, err := r.mic.Acquire(purposeFor(mode), caller)
	if err != nil {
		r.mu.Unlock()
		return entity.VoiceSession{}, fmt.Errorf("%w: %w", voice.ErrRecordingInProgress, err)
	}

	r.discardParked()

	captureCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	capture, err := r.capture.Start(captureCtx, r.config.Audio)
	if err != nil {
		cancel()
		lease.Release()
		session.State = entity.RecordingStateFailed
		r.last = session
		r.mu.Unlock()

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": session.ID,
			"error":      err.Error(),
		}).Error("Failed to start audio capture")
		r.emit(session)
		return session, fmt.Errorf("%w: %w", voice.ErrRecordingFailed, err)
	}

	session.State = entity.RecordingStateRecording
	rec := &recording{
		session: session,
		capture: capture,
		lease:   lease,
		cancel:  cancel,
	}
	if r.config.RecordingSafetyTimeout > 0 {
		id := session.ID
		rec.timer = time.AfterFunc(r.config.RecordingSafetyTimeout, func() {
			r.autoStop(id)
		})
	}
	r.current = rec
	r.last = session
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": session.ID,
		"mode":       mode,
		"caller":     caller,
	}).Info("Recording started")
	r.emit(session)

	return session, nil
}

// StopRecording ends the open session and hands back its audio. It returns
// nil, nil when nothing is open or the capture produced no audio. A handle
// parked by the safety timeout is returned exactly once.
func (r *Recorder) StopRecording(ctx context.Context) (*entity.AudioHandle, error) {
	r.mu.Lock()
	rec := r.current
	if rec == nil {
		handle := r.parked
		r.parked = nil
		r.parkedCaller = ""
		r.mu.Unlock()
		return handle, nil
	}
	r.mu.Unlock()

	return r.stop(ctx, rec.session.ID)
}

// StopRecordingFor is StopRecording restricted to the session caller opened.
// A session or parked handle owned by someone else is left untouched and
// ErrRecordingNotOwned is returned.
func (r *Recorder) StopRecordingFor(ctx context.Context, caller string) (*entity.AudioHandle, error) {
	r.mu.Lock()
	rec := r.current
	if rec == nil {
		if r.parked == nil {
			r.mu.Unlock()
			return nil, nil
		}
		if r.parkedCaller != caller {
			r.mu.Unlock()
			return nil, voice.ErrRecordingNotOwned
		}
		handle := r.parked
		r.parked = nil
		r.parkedCaller = ""
		r.mu.Unlock()
		return handle, nil
	}
	if rec.session.Caller != caller {
		r.mu.Unlock()
		return nil, voice.ErrRecordingNotOwned
	}
	r.mu.Unlock()

	return r.stop(ctx, rec.session.ID)
}

func (r *Recorder) stop(ctx context.Context, sessionID string) (*entity.AudioHandle, error) {
	requestID := contextPkg.GetRequestID(ctx)

	r.mu.Lock()
	rec := r.current
	if rec == nil || rec.session.ID != sessionID || rec.session.State != entity.RecordingStateRecording {
		r.mu.Unlock()
		return nil, nil
	}
	rec.session.State = entity.RecordingStateStopping
	r.last = rec.session
	if rec.timer != nil {
		rec.timer.Stop()
	}
	r.mu.Unlock()
	r.emit(rec.session)

	result, err := rec.capture.Stop()

	r.mu.Lock()
	if r.current == rec {
		r.current = nil
	}
	rec.cancel()
	rec.lease.Release()
	session := rec.session
	if err != nil {
		session.State = entity.RecordingStateFailed
	} else {
		session.State = entity.RecordingStateFinished
	}
	r.last = session
	r.mu.Unlock()
	r.emit(session)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": session.ID,
			"error":      err.Error(),
		}).Error("Failed to stop audio capture")
		removeAudio(result.Path)
		return nil, fmt.Errorf("%w: %w", voice.ErrRecordingFailed, err)
	}

	if result.Path == "" || result.Bytes <= r.config.MinAudioBytes {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": session.ID,
			"bytes":      result.Bytes,
		}).Info("Recording produced no audio")
		removeAudio(result.Path)
		return nil, nil
	}

	duration := result.Duration
	if duration <= 0 {
		duration = r.now().Sub(session.StartedAt)
	}

	r.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": session.ID,
		"duration":   duration.String(),
	}).Info("Recording finished")

	return entity.NewAudioHandle(session.ID, result.Path, duration, session.StartedAt), nil
}

func (r *Recorder) autoStop(sessionID string) {
	r.mu.Lock()
	caller := ""
	if r.current != nil && r.current.session.ID == sessionID {
		caller = r.current.session.Caller
	}
	r.mu.Unlock()

	handle, err := r.stop(context.Background(), sessionID)
	if err != nil {
		emit(r.events, voice.Event{
			Type:      voice.EventRecordingTimeout,
			SessionID: sessionID,
			State:     string(entity.RecordingStateFailed),
			Kind:      voice.KindOf(err),
			Message:   voice.UserMessage(err),
		})
		return
	}

	r.mu.Lock()
	if handle != nil {
		r.discardParked()
		r.parked = handle
		r.parkedCaller = caller
	}
	r.mu.Unlock()

	r.log.WithField("session_id", sessionID).Warn("Recording hit the safety timeout and was stopped")
	emit(r.events, voice.Event{
		Type:      voice.EventRecordingTimeout,
		SessionID: sessionID,
		State:     string(entity.RecordingStateFinished),
	})
}

// StopIfOwner stops and discards the open recording when caller opened it.
func (r *Recorder) StopIfOwner(ctx context.Context, caller string) {
	r.mu.Lock()
	rec := r.current
	if rec == nil || rec.session.Caller != caller {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	handle, _ := r.stop(ctx, rec.session.ID)
	if path, err := handle.Consume(); err == nil {
		removeAudio(path)
	}
}

// Interrupt fails the open session, releasing the microphone. Any partial
// audio is discarded.
func (r *Recorder) Interrupt(cause error) {
	r.mu.Lock()
	rec := r.current
	if rec == nil || rec.session.State != entity.RecordingStateRecording {
		r.mu.Unlock()
		return
	}
	r.current = nil
	if rec.timer != nil {
		rec.timer.Stop()
	}
	session := rec.session
	session.State = entity.RecordingStateFailed
	r.last = session
	r.mu.Unlock()

	result, _ := rec.capture.Stop()
	rec.cancel()
	rec.lease.Release()
	removeAudio(result.Path)

	fields := logrus.Fields{"session_id": session.ID}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	r.log.WithFields(fields).Warn("Recording interrupted")
	r.emit(session)
}

// Status returns the open session or the last terminal one.
func (r *Recorder) Status() entity.VoiceSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return r.current.session
	}
	return r.last
}

func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

func (r *Recorder) emit(session entity.VoiceSession) {
	emit(r.events, voice.Event{
		Type:      voice.EventRecordingState,
		SessionID: session.ID,
		State:     string(session.State),
	})
}

// discardParked drops an uncollected timeout handle. Caller holds r.mu.
func (r *Recorder) discardParked() {
	if r.parked == nil {
		return
	}
	if path, err := r.parked.Consume(); err == nil {
		removeAudio(path)
	}
	r.parked = nil
	r.parkedCaller = ""
}

func removeAudio(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithField("path", path).Warn("Failed to remove audio file")
	}
}
