package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/response"

	"github.com/sashabaranov/go-openai"
)

func newTestExtractor(t *testing.T, handler http.HandlerFunc) *TaskExtractor {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewTaskExtractorWithConfig(cfg, openai.GPT4oMini)
}

func TestExtractParsesJSONMode(t *testing.T) {
	t.Parallel()

	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"title\":\"Call Sarah\",\"priority\":\"medium\",\"due_date\":\"2026-03-02T15:00:00Z\"}"},"finish_reason":"stop"}]}`))
	})

	draft, err := e.Extract(context.Background(), "remind me to call Sarah tomorrow at 3pm", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if draft.Title != "Call Sarah" || draft.Priority != entity.PriorityMedium || draft.DueDate == nil {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestExtractKeepsStatusCode(t *testing.T) {
	t.Parallel()

	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key","type":"invalid_request_error"}}`))
	})

	_, err := e.Extract(context.Background(), "anything", time.Now())
	code, ok := response.StatusCode(err)
	if !ok || code != http.StatusUnauthorized {
		t.Fatalf("expected 401 status, got %d %v (%v)", code, ok, err)
	}
	if errors.Is(err, ErrNoChoices) {
		t.Fatal("unexpected ErrNoChoices")
	}
}

func TestExtractWithoutChoices(t *testing.T) {
	t.Parallel()

	e := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	})

	if _, err := e.Extract(context.Background(), "anything", time.Now()); !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}
