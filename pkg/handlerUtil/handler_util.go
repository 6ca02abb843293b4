package handlerUtil

import (
	"errors"

	"PersonalAssistant/internal/api/task"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/pkg/log"
	"PersonalAssistant/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	DraftID string `json:"draft_id,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle writes err as a JSON error. Taxonomy failures carry their kind as
// the code and the user-facing message as the error text.
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	var commitErr *task.CommitError
	if errors.As(err, &commitErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"draft_id":   commitErr.DraftID,
			"path":       path,
			"operation":  operation,
		}).Warn("Task not saved")
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error:   commitErr.UserMessage(),
			Code:    string(voice.KindPersistence),
			DraftID: commitErr.DraftID,
		})
	}

	if kind := voice.KindOf(err); kind != voice.KindUnknown {
		code, _ := response.StatusCode(err)
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"kind":       kind,
			"path":       path,
			"operation":  operation,
		}).Warn("Voice operation failed")
		return c.Status(statusOr(code, fiber.StatusInternalServerError)).JSON(ErrorResponse{
			Error: voice.UserMessage(err),
			Code:  string(kind),
		})
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}).Warn("Operation failed with error response")
		return c.Status(statusOr(respErr.Code, fiber.StatusInternalServerError)).JSON(ErrorResponse{
			Error: respErr.Err.Error(),
		})
	}

	traceID := log.ErrorWithTraceID(log.Fields{
		log.RequestIDKey: requestID,
		"error":          err.Error(),
		"path":           path,
		"operation":      operation,
	}, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "An unexpected error occurred",
		Code:    string(voice.KindUnknown),
		TraceID: traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: utils.StatusMessage(fiber.StatusRequestTimeout),
		Code:  string(voice.KindTimeout),
	})
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error: message,
		Code:  "UNAUTHORIZED",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}

func statusOr(code, fallback int) int {
	if code < 400 || code > 599 {
		return fallback
	}
	return code
}
