package voiceService

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"PersonalAssistant/internal/api/task"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/response"
	"PersonalAssistant/pkg/utils"
)

func writeHandle(t *testing.T, dir string) *entity.AudioHandle {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("utt-%d.wav", time.Now().UnixNano()))
	if err := os.WriteFile(path, make([]byte, 1024), 0o600); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return entity.NewAudioHandle("session-1", path, time.Second, time.Now())
}

type fakePrivacy struct{ store bool }

func (f fakePrivacy) PrivacySettings(context.Context) (entity.PrivacySettings, error) {
	return entity.PrivacySettings{StoreRecordings: f.store}, nil
}

type fakeArchiver struct{ uploads []string }

func (f *fakeArchiver) UploadAudio(_ context.Context, path string) (string, error) {
	f.uploads = append(f.uploads, path)
	return "s3://bucket/" + filepath.Base(path), nil
}

type fakeHistory struct{ cmds []entity.VoiceCommand }

func (f *fakeHistory) RecordCommand(_ context.Context, cmd entity.VoiceCommand) error {
	f.cmds = append(f.cmds, cmd)
	return nil
}

func (f *fakeHistory) ListCommands(context.Context, int, int) ([]entity.VoiceCommand, int, error) {
	return f.cmds, len(f.cmds), nil
}

func TestPipelineCommitsDictatedTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	history := &fakeHistory{}
	f.pipeline = NewPipeline(testLogger(), f.transcriber, f.extractor, f.committer, nil, utils.New(), f.sink, f.cfg, WithHistory(history))
	handle := writeHandle(t, f.cfg.Audio.OutputDir)

	res, err := f.pipeline.Process(context.Background(), handle)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Transcript.Text != "Call the dentist tomorrow at 3pm, high priority" {
		t.Fatalf("unexpected transcript %q", res.Transcript.Text)
	}
	if res.Task == nil || res.Task.Priority != entity.PriorityHigh || res.Task.CreatedBy != entity.CreatedByVoice {
		t.Fatalf("unexpected task %+v", res.Task)
	}
	if _, err := os.Stat(handle.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("audio file must be removed after processing")
	}
	if len(history.cmds) != 1 || history.cmds[0].Outcome != "committed" || history.cmds[0].TaskID != "task-1" {
		t.Fatalf("unexpected history %+v", history.cmds)
	}
}

func TestPipelineConsumesHandleOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	handle := writeHandle(t, f.cfg.Audio.OutputDir)
	ctx := context.Background()

	if _, err := f.pipeline.Process(ctx, handle); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := f.pipeline.Process(ctx, handle); !errors.Is(err, voice.ErrAudioHandleConsumed) {
		t.Fatalf("expected ErrAudioHandleConsumed, got %v", err)
	}
	if f.transcriber.callCount() != 1 {
		t.Fatalf("transcriber called %d times", f.transcriber.callCount())
	}
}

func TestPipelineClassifiesTranscriptionFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unreachable", response.Wrap(http.StatusServiceUnavailable, errBoom), voice.ErrConnection},
		{"unknown", errBoom, voice.ErrConnection},
		{"unauthorized", response.Wrap(http.StatusUnauthorized, errBoom), voice.ErrAuthExpired},
		{"forbidden", response.Wrap(http.StatusForbidden, errBoom), voice.ErrAuthExpired},
		{"gateway timeout", response.Wrap(http.StatusGatewayTimeout, errBoom), voice.ErrTimeout},
		{"deadline", context.DeadlineExceeded, voice.ErrTimeout},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.transcriber.errs = []error{tc.err}

			_, err := f.pipeline.Process(context.Background(), writeHandle(t, f.cfg.Audio.OutputDir))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if f.extractor.callCount() != 0 {
				t.Fatal("extraction must not run after a failed transcription")
			}
		})
	}
}

func TestPipelineBlankTranscriptIsEmptyResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.transcriber.texts = []string{"   "}

	_, err := f.pipeline.Process(context.Background(), writeHandle(t, f.cfg.Audio.OutputDir))
	if !errors.Is(err, voice.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if voice.UserMessage(err) != "didn't catch that, try again" {
		t.Fatalf("unexpected message %q", voice.UserMessage(err))
	}
	if f.extractor.callCount() != 0 {
		t.Fatal("extraction must not run on a blank transcript")
	}
}

func TestPipelineExtractionFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.extractor.err = errBoom
	_, err := f.pipeline.Process(context.Background(), writeHandle(t, f.cfg.Audio.OutputDir))
	if !errors.Is(err, voice.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}

	f = newFixture(t)
	f.extractor.draft = entity.ExtractedTaskDraft{Title: "   "}
	_, err = f.pipeline.Process(context.Background(), writeHandle(t, f.cfg.Audio.OutputDir))
	if !errors.Is(err, voice.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed for missing title, got %v", err)
	}
	if len(f.committer.drafts) != 0 {
		t.Fatal("an invalid draft must not be committed")
	}
}

func TestNormalizeDraft(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	p := NewPipeline(testLogger(), f.transcriber, f.extractor, nil, nil, utils.New(), nil, f.cfg)

	draft, err := p.NormalizeDraft(entity.ExtractedTaskDraft{
		Title:    "  Team sync  ",
		Priority: "URGENT",
		Category: "Meeting",
		Tags:     []string{"Work", "work", " #standup "},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if draft.Title != "Team sync" || draft.Priority != entity.PriorityMedium || draft.Category != entity.TaskCategoryMeeting {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if len(draft.Tags) != 2 || draft.Tags[0] != "work" || draft.Tags[1] != "standup" {
		t.Fatalf("unexpected tags %v", draft.Tags)
	}

	draft, _ = p.NormalizeDraft(entity.ExtractedTaskDraft{Title: "x", Category: "gardening", Priority: "Low"})
	if draft.Category != "" || draft.Priority != entity.PriorityLow {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestPipelineRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.MaxAttempts = 3
	f.transcriber.errs = []error{errBoom, response.Wrap(http.StatusGatewayTimeout, errBoom)}
	p := NewPipeline(testLogger(), f.transcriber, f.extractor, f.committer, nil, nil, f.sink, f.cfg)

	if _, err := p.Process(context.Background(), writeHandle(t, f.cfg.Audio.OutputDir)); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if f.transcriber.callCount() != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.transcriber.callCount())
	}
}

func TestPipelineDoesNotRetryAuthFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.MaxAttempts = 3
	f.transcriber.errs = []error{response.Wrap(http.StatusUnauthorized, errBoom)}
	p := NewPipeline(testLogger(), f.transcriber, f.extractor, f.committer, nil, nil, f.sink, f.cfg)

	_, err := p.Process(context.Background(), writeHandle(t, f.cfg.Audio.OutputDir))
	if !errors.Is(err, voice.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if f.transcriber.callCount() != 1 {
		t.Fatalf("auth failures must not be retried, got %d calls", f.transcriber.callCount())
	}
}

func TestPipelineDefaultsToSingleAttempt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.transcriber.errs = []error{errBoom}

	if _, err := f.pipeline.Process(context.Background(), writeHandle(t, f.cfg.Audio.OutputDir)); !errors.Is(err, voice.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if f.transcriber.callCount() != 1 {
		t.Fatalf("expected a single attempt, got %d", f.transcriber.callCount())
	}
}

func TestPipelineKeepsDraftOnCommitFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.committer.err = errBoom

	res, err := f.pipeline.Process(context.Background(), writeHandle(t, f.cfg.Audio.OutputDir))
	if !errors.Is(err, task.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if res == nil || res.Draft == nil || res.DraftID != "draft-1" {
		t.Fatalf("draft must be surfaced, got %+v", res)
	}

	failed := f.sink.ofType(voice.EventPipelineFailed)
	if len(failed) != 1 || failed[0].Kind != voice.KindPersistence {
		t.Fatalf("unexpected failure events %+v", failed)
	}
}

func TestPipelineArchivesOnlyWhenAllowed(t *testing.T) {
	t.Parallel()

	for _, store := range []bool{true, false} {
		f := newFixture(t)
		archiver := &fakeArchiver{}
		p := NewPipeline(testLogger(), f.transcriber, f.extractor, f.committer, nil, nil, nil, f.cfg,
			WithPrivacyArchive(fakePrivacy{store: store}, archiver))

		if _, err := p.Process(context.Background(), writeHandle(t, f.cfg.Audio.OutputDir)); err != nil {
			t.Fatalf("process: %v", err)
		}
		if got := len(archiver.uploads) == 1; got != store {
			t.Fatalf("store=%v but uploads=%d", store, len(archiver.uploads))
		}
	}
}
