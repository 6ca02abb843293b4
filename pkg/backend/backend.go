package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	jwtPkg "PersonalAssistant/pkg/jwt"
	"PersonalAssistant/pkg/response"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrSessionExpired = errors.New("backend session expired")

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	SessionToken string
}

func ConfigFromEnv() Config {
	timeout, err := time.ParseDuration(os.Getenv("BACKEND_TIMEOUT"))
	if err != nil || timeout <= 0 {
		timeout = 15 * time.Second
	}
	return Config{
		BaseURL:      os.Getenv("BACKEND_BASE_URL"),
		Timeout:      timeout,
		SessionToken: os.Getenv("BACKEND_SESSION_TOKEN"),
	}
}

// Client talks to the remote assistant backend: transcription, extraction,
// task storage and the user's privacy settings.
type Client struct {
	log     *logrus.Logger
	baseURL string
	timeout time.Duration

	mu    sync.RWMutex
	token *oauth2.Token
}

func New(log *logrus.Logger, cfg Config) *Client {
	c := &Client{
		log:     log,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
	}
	c.SetSessionToken(cfg.SessionToken)
	return c
}

// SetSessionToken replaces the bearer token. Its expiry is read from the
// JWT exp claim when present.
func (c *Client) SetSessionToken(raw string) {
	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if raw != "" {
		if exp, err := jwtPkg.ExpiresAt(raw); err == nil {
			tok.Expiry = exp
		} else {
			c.log.WithField("error", err.Error()).Debug("Session token is not a JWT, expiry unknown")
		}
	}

	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

// bearer returns the session token, or ErrSessionExpired as a 401 so the
// caller classifies it as an auth failure without a round trip.
func (c *Client) bearer() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil || !c.token.Valid() {
		return "", response.Wrap(http.StatusUnauthorized, ErrSessionExpired)
	}
	return c.token.AccessToken, nil
}

type transcribeResponse struct {
	Text string `json:"text"`
}

func (c *Client) Transcribe(ctx context.Context, audio voice.AudioPayload) (string, error) {
	var out transcribeResponse
	err := c.do(ctx, fiber.MethodPost, "/api/voice/transcribe", nil, &out, func(a *fiber.Agent) {
		a.SendFile(audio.Path, "audio")
		a.MultipartForm(nil)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

type extractRequest struct {
	Text       string    `json:"text"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (c *Client) Extract(ctx context.Context, text string, recordedAt time.Time) (entity.ExtractedTaskDraft, error) {
	var out entity.ExtractedTaskDraft
	if err := c.do(ctx, fiber.MethodPost, "/api/voice/extract", extractRequest{Text: text, RecordedAt: recordedAt}, &out, nil); err != nil {
		return entity.ExtractedTaskDraft{}, err
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, payload entity.TaskPayload) (entity.PersistedTask, error) {
	var out entity.PersistedTask
	if err := c.do(ctx, fiber.MethodPost, "/api/tasks", payload, &out, nil); err != nil {
		return entity.PersistedTask{}, err
	}
	return out, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, patch map[string]any) (entity.PersistedTask, error) {
	var out entity.PersistedTask
	if err := c.do(ctx, fiber.MethodPatch, "/api/tasks/"+url.PathEscape(id), patch, &out, nil); err != nil {
		return entity.PersistedTask{}, err
	}
	return out, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, fiber.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) PrivacySettings(ctx context.Context) (entity.PrivacySettings, error) {
	var out entity.PrivacySettings
	if err := c.do(ctx, fiber.MethodGet, "/api/users/me/privacy", nil, &out, nil); err != nil {
		return entity.PrivacySettings{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any, prepare func(*fiber.Agent)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	token, err := c.bearer()
	if err != nil {
		return err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 && c.timeout > 0 {
		return context.DeadlineExceeded
	}

	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	a.Set(fiber.HeaderAuthorization, "Bearer "+token)
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if timeout > 0 {
		a.Timeout(timeout)
	}

	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			fiber.ReleaseAgent(a)
			return err
		}
		a.ContentType(fiber.MIMEApplicationJSON)
		a.Body(body)
	}
	if prepare != nil {
		prepare(a)
	}

	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return err
	}

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"error":  errs[0].Error(),
		}).Warn("Backend request failed")
		return errors.Join(errs...)
	}

	if code < 200 || code > 299 {
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": code,
		}).Warn("Backend returned an error status")
		return response.Wrap(code, fmt.Errorf("backend %s %s: %d %s", method, path, code, errorMessage(body)))
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return "request failed"
}
