package taskHandler

import (
	"context"
	"time"

	"PersonalAssistant/internal/api/task"
	contextPkg "PersonalAssistant/pkg/context"
	"PersonalAssistant/pkg/handlerUtil"
	"PersonalAssistant/pkg/log"

	"github.com/gofiber/fiber/v2"
)

const backendTimeout = 30 * time.Second

func (h *TaskHandler) PendingDrafts(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	drafts, err := h.taskService.PendingDrafts(contextPkg.FromFiberCtx(ctx))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "pending_drafts")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, fiber.Map{"drafts": drafts})
}

// SaveDraft retries a draft kept after a failed commit. An empty body keeps
// the stored draft as is.
func (h *TaskHandler) SaveDraft(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), backendTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req task.SaveDraftRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"draft_id":   ctx.Params("id"),
		"edited":     req.Draft != nil,
	}).Debug("Saving pending draft")

	persisted, err := h.taskService.SaveDraft(c, ctx.Params("id"), req.Draft)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "save_draft")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusCreated, task.TaskResponse{
		Task:    persisted,
		Message: "Task saved",
	})
}

func (h *TaskHandler) Complete(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), backendTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	updated, err := h.taskService.Complete(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "complete_task")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, task.TaskResponse{Task: updated})
}

func (h *TaskHandler) ChangeDueDate(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), backendTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req task.ChangeDueDateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	updated, err := h.taskService.ChangeDueDate(c, ctx.Params("id"), req.DueDate)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "change_due_date")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, task.TaskResponse{Task: updated})
}

func (h *TaskHandler) Delete(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), backendTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	if err := h.taskService.Delete(c, ctx.Params("id")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "delete_task")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}
