package voiceHandler

import (
	voiceService "PersonalAssistant/internal/api/voice/service"
	"PersonalAssistant/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type VoiceHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	voiceService voiceService.IVoiceService
	events       EventSource
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	vs voiceService.IVoiceService,
	events EventSource,
) *VoiceHandler {
	return &VoiceHandler{
		log:          log,
		validator:    validate,
		middleware:   middleware,
		voiceService: vs,
		events:       events,
	}
}

func (h *VoiceHandler) Start(srv fiber.Router) {
	voice := srv.Group("/voice")
	voice.Use(h.middleware.NewTokenMiddleware)

	recording := voice.Group("/recording")
	recording.Post("/start", h.StartRecording)
	recording.Post("/stop", h.StopRecording)

	conversation := voice.Group("/conversation")
	conversation.Post("/start", h.StartConversation)
	conversation.Post("/stop-capture", h.StopCapture)
	conversation.Post("/end", h.EndConversation)

	wake := voice.Group("/wake-word")
	wake.Post("/start", h.StartWakeWord)
	wake.Post("/stop", h.StopWakeWord)

	voice.Get("/status", h.Status)
	voice.Get("/history", h.History)

	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	ws := srv.Group("/ws")
	ws.Use("/events", h.middleware.NewTokenMiddleware, wsMiddleware)
	ws.Get("/events", websocket.New(h.handleEvents))
}
