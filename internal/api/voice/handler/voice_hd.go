package voiceHandler

import (
	"context"
	"errors"
	"time"

	"PersonalAssistant/internal/api/task"
	"PersonalAssistant/internal/api/voice"
	voiceService "PersonalAssistant/internal/api/voice/service"
	contextPkg "PersonalAssistant/pkg/context"
	"PersonalAssistant/pkg/handlerUtil"
	jwtPkg "PersonalAssistant/pkg/jwt"
	"PersonalAssistant/pkg/log"
	"PersonalAssistant/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// pipelineTimeout bounds transcription, extraction and commit together.
const pipelineTimeout = 90 * time.Second

func (h *VoiceHandler) StartRecording(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	var req voice.StartRecordingRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if req.Caller == "" {
		if client, err := jwtPkg.GetClient(ctx); err == nil {
			req.Caller = client.ID
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	session, err := h.voiceService.StartRecording(contextPkg.FromFiberCtx(ctx), req.Caller)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "start_recording")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusCreated, session)
}

// StopRecording closes the manual recording and runs the pipeline. Pipeline
// failures are reported in the body alongside whatever was produced.
func (h *VoiceHandler) StopRecording(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), pipelineTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Stopping manual recording")

	result, err := h.voiceService.StopRecording(c)
	if err != nil && result == nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "stop_recording")
	}

	resp := pipelineResponse(result, err)
	if err != nil {
		code, ok := response.StatusCode(err)
		if !ok {
			code = fiber.StatusInternalServerError
		}
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"kind":       resp.Kind,
			"error":      err.Error(),
		}).Warn("Voice pipeline failed")
		return ctx.Status(code).JSON(resp)
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
}

func pipelineResponse(result *voiceService.Result, err error) voice.PipelineResponse {
	resp := voice.PipelineResponse{
		Success:    err == nil,
		Transcript: result.Transcript.Text,
		Task:       result.Task,
		Draft:      result.Draft,
		DraftID:    result.DraftID,
	}
	if err == nil {
		return resp
	}

	resp.Kind = voice.KindOf(err)
	resp.Message = voice.UserMessage(err)
	if errors.Is(err, task.ErrPersistence) {
		resp.Kind = voice.KindPersistence
		resp.DraftID = task.PendingDraftID(err)
	}
	return resp
}

func (h *VoiceHandler) Status(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.voiceService.Status(contextPkg.FromFiberCtx(ctx)))
}

func (h *VoiceHandler) StartConversation(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	var req voice.StartConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if req.Caller == "" {
		if client, err := jwtPkg.GetClient(ctx); err == nil {
			req.Caller = client.ID
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	session, err := h.voiceService.StartConversation(contextPkg.FromFiberCtx(ctx), req.AssistantName, req.Caller)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "start_conversation")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusCreated, session)
}

func (h *VoiceHandler) StopCapture(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	if err := h.voiceService.StopCapture(contextPkg.FromFiberCtx(ctx)); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "stop_capture")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusAccepted, nil)
}

func (h *VoiceHandler) EndConversation(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	h.voiceService.EndConversation(contextPkg.FromFiberCtx(ctx))
	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

func (h *VoiceHandler) StartWakeWord(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	var req voice.StartWakeWordRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.voiceService.StartWakeWord(contextPkg.FromFiberCtx(ctx), req.AssistantName); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "start_wake_word")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.voiceService.Status(contextPkg.FromFiberCtx(ctx)))
}

func (h *VoiceHandler) StopWakeWord(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	h.voiceService.StopWakeWord(contextPkg.FromFiberCtx(ctx))
	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

func (h *VoiceHandler) History(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	query := voice.HistoryQuery{Page: 1, Limit: 20}
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	commands, total, err := h.voiceService.History(contextPkg.FromFiberCtx(ctx), query.Page, query.Limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "voice_history")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, voice.HistoryResponse{
		Commands: commands,
		Total:    total,
		Page:     query.Page,
		Limit:    query.Limit,
	})
}
