package handlerUtil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"PersonalAssistant/internal/api/task"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func serve(t *testing.T, err error) (int, ErrorResponse) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)
	h := New(log)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return h.Handle(c, "req-1", err, c.Path(), "test")
	})

	resp, reqErr := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if reqErr != nil {
		t.Fatalf("request: %v", reqErr)
	}
	defer resp.Body.Close()

	var body ErrorResponse
	if decErr := jsoniter.NewDecoder(resp.Body).Decode(&body); decErr != nil {
		t.Fatalf("decode: %v", decErr)
	}
	return resp.StatusCode, body
}

func TestHandleTaxonomyError(t *testing.T) {
	t.Parallel()

	status, body := serve(t, fmt.Errorf("%w: %w", voice.ErrConnection, errors.New("dial tcp: refused")))
	if status != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", status)
	}
	if body.Code != string(voice.KindConnection) || body.Error != voice.ErrConnection.Error() {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestHandleCommitErrorCarriesDraft(t *testing.T) {
	t.Parallel()

	err := &task.CommitError{
		Draft:   entity.ExtractedTaskDraft{Title: "Buy milk"},
		DraftID: "01DRAFT",
		Cause:   errors.New("backend down"),
	}
	status, body := serve(t, err)
	if status != http.StatusBadGateway || body.DraftID != "01DRAFT" {
		t.Fatalf("unexpected %d %+v", status, body)
	}
}

func TestHandleCommitErrorWithoutDraft(t *testing.T) {
	t.Parallel()

	err := &task.CommitError{
		Draft: entity.ExtractedTaskDraft{Title: "Buy milk"},
		Cause: errors.New("backend down"),
	}
	status, body := serve(t, err)
	if status != http.StatusBadGateway || body.DraftID != "" {
		t.Fatalf("unexpected %d %+v", status, body)
	}
	if body.Error != task.ErrDraftNotKept.Error() {
		t.Fatalf("must not claim the draft was kept, got %q", body.Error)
	}
}

func TestHandleResponseErrorAndUnknown(t *testing.T) {
	t.Parallel()

	status, body := serve(t, task.ErrDraftNotFound)
	if status != http.StatusNotFound || body.Error != "draft not found" {
		t.Fatalf("unexpected %d %+v", status, body)
	}

	status, body = serve(t, errors.New("boom"))
	if status != http.StatusInternalServerError || body.Error != "An unexpected error occurred" {
		t.Fatalf("unexpected %d %+v", status, body)
	}
	if body.TraceID != "req-1" {
		t.Fatalf("expected request id as trace id, got %q", body.TraceID)
	}
}
