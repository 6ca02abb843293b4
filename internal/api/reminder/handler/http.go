package reminderHandler

import (
	reminderService "PersonalAssistant/internal/api/reminder/service"
	"PersonalAssistant/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ReminderHandler struct {
	log             *logrus.Logger
	validator       *validator.Validate
	middleware      middleware.Middleware
	reminderService reminderService.IReminderService
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	rs reminderService.IReminderService,
) *ReminderHandler {
	return &ReminderHandler{
		log:             log,
		validator:       validate,
		middleware:      middleware,
		reminderService: rs,
	}
}

func (h *ReminderHandler) Start(srv fiber.Router) {
	reminders := srv.Group("/reminders")
	reminders.Use(h.middleware.NewTokenMiddleware)

	reminders.Get("/quiet-hours", h.QuietHours)
	reminders.Post("/briefing", h.ScheduleBriefing)
	reminders.Delete("/briefing/:key", h.CancelBriefing)
	reminders.Get("/tasks/:id", h.TaskInstruction)
}
