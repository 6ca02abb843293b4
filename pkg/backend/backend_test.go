package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"PersonalAssistant/internal/api/voice"
	voiceService "PersonalAssistant/internal/api/voice/service"
	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/response"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sessionToken(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()}).SignedString([]byte("backend-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(testLogger(), Config{BaseURL: srv.URL, Timeout: 2 * time.Second, SessionToken: token})
}

func TestCreateTaskSendsPayload(t *testing.T) {
	t.Parallel()

	token := sessionToken(t, time.Now().Add(time.Hour))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var payload entity.TaskPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Title != "Call Sarah" || payload.CreatedBy != entity.CreatedByVoice {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"t-1","title":"Call Sarah","priority":"medium","status":"pending","createdBy":"voice"}`))
	}, token)

	got, err := c.CreateTask(context.Background(), entity.TaskPayload{Title: "Call Sarah", Priority: entity.PriorityMedium, CreatedBy: entity.CreatedByVoice})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.ID != "t-1" || got.Status != entity.TaskStatusPending {
		t.Fatalf("unexpected task %+v", got)
	}
}

func TestErrorStatusIsClassifiable(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"token revoked"}`))
	}, sessionToken(t, time.Now().Add(time.Hour)))

	_, err := c.PrivacySettings(context.Background())
	if code, ok := response.StatusCode(err); !ok || code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
	if !errors.Is(voiceService.ClassifyCollaboratorError(err), voice.ErrAuthExpired) {
		t.Fatalf("expected auth classification, got %v", voiceService.ClassifyCollaboratorError(err))
	}
}

func TestExpiredSessionSkipsRoundTrip(t *testing.T) {
	t.Parallel()

	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, sessionToken(t, time.Now().Add(-time.Minute)))

	_, err := c.Extract(context.Background(), "call Sarah", time.Now())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if !errors.Is(voiceService.ClassifyCollaboratorError(err), voice.ErrAuthExpired) {
		t.Fatal("expired session must classify as auth failure")
	}
	if called {
		t.Fatal("backend must not be called with an expired session")
	}
}

func TestTranscribeUploadsAudio(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVE"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("audio")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		if string(body) != "RIFF....WAVE" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"  remind me to call Sarah  "}`))
	}, sessionToken(t, time.Now().Add(time.Hour)))

	text, err := c.Transcribe(context.Background(), voice.AudioPayload{Path: path})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "remind me to call Sarah" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestSlowBackendTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}, sessionToken(t, time.Now().Add(time.Hour)))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := c.DeleteTask(ctx, "t-1")
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !errors.Is(voiceService.ClassifyCollaboratorError(err), voice.ErrTimeout) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
}
