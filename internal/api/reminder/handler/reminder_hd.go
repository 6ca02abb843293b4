package reminderHandler

import (
	"strings"
	"time"

	"PersonalAssistant/internal/api/reminder"
	"PersonalAssistant/internal/entity"
	contextPkg "PersonalAssistant/pkg/context"
	"PersonalAssistant/pkg/handlerUtil"

	"github.com/gofiber/fiber/v2"
)

const defaultBriefingKey = "daily-briefing"

func (h *ReminderHandler) QuietHours(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)

	now := time.Now()
	window := h.reminderService.QuietHours()
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, reminder.QuietHoursResponse{
		Start:    window.Start,
		End:      window.End,
		QuietNow: h.reminderService.IsQuietHours(now),
		At:       now,
	})
}

// ScheduleBriefing installs or replaces a recurring briefing. Omitted fields
// fall back to a daily 08:00 "Daily briefing".
func (h *ReminderHandler) ScheduleBriefing(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	req := reminder.BriefingRequest{Hour: 8}
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
	}

	r := briefingFromRequest(req)
	if err := h.reminderService.ScheduleRecurring(contextPkg.FromFiberCtx(ctx), r); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "schedule_briefing")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusCreated, r)
}

func briefingFromRequest(req reminder.BriefingRequest) entity.RecurringReminder {
	r := entity.RecurringReminder{
		Key:       strings.TrimSpace(req.Key),
		Title:     strings.TrimSpace(req.Title),
		Body:      req.Body,
		Category:  entity.NotificationCategoryBriefing,
		Frequency: entity.FrequencyDaily,
		Hour:      req.Hour,
		Minute:    req.Minute,
		Weekday:   req.Weekday,
	}
	if r.Key == "" {
		r.Key = defaultBriefingKey
	}
	if r.Title == "" {
		r.Title = "Daily briefing"
	}
	if req.Weekly {
		r.Frequency = entity.FrequencyWeekly
	}
	return r
}

func (h *ReminderHandler) CancelBriefing(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	if err := h.reminderService.CancelRecurring(contextPkg.FromFiberCtx(ctx), ctx.Params("key")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "cancel_briefing")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

func (h *ReminderHandler) TaskInstruction(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	instruction, err := h.reminderService.Instruction(contextPkg.FromFiberCtx(ctx), ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "task_reminder")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, instruction)
}
