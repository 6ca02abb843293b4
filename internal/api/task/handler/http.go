package taskHandler

import (
	taskService "PersonalAssistant/internal/api/task/service"
	"PersonalAssistant/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type TaskHandler struct {
	log         *logrus.Logger
	validator   *validator.Validate
	middleware  middleware.Middleware
	taskService taskService.ITaskService
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	ts taskService.ITaskService,
) *TaskHandler {
	return &TaskHandler{
		log:         log,
		validator:   validate,
		middleware:  middleware,
		taskService: ts,
	}
}

func (h *TaskHandler) Start(srv fiber.Router) {
	tasks := srv.Group("/tasks")
	tasks.Use(h.middleware.NewTokenMiddleware)

	tasks.Get("/drafts", h.PendingDrafts)
	tasks.Post("/drafts/:id/save", h.SaveDraft)

	tasks.Post("/:id/complete", h.Complete)
	tasks.Put("/:id/due", h.ChangeDueDate)
	tasks.Delete("/:id", h.Delete)
}
