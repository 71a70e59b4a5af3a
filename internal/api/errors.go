package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/dshills/coldstart/internal/chunker"
	"github.com/dshills/coldstart/internal/indexer"
	"github.com/dshills/coldstart/internal/searcher"
	"github.com/dshills/coldstart/internal/storage"
)

// ErrorBody is the payload of every error response:
// {"error": {"code": "404", "message": "...", "details": {}}}
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// Error is a handler error carrying a status and optional details
type Error struct {
	Status  int
	Message string
	Details map[string]any
}

func (e *Error) Error() string { return e.Message }

func badRequest(message string, details map[string]any) *Error {
	return &Error{Status: fiber.StatusBadRequest, Message: message, Details: details}
}

// errorHandler renders every error returned by a handler as an envelope.
// Unexpected errors are logged and reported as 500 without their text.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status, message, details := classify(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"trace_id", TraceID(c),
				"error", err)
		}

		if id := TraceID(c); id != "" {
			c.Set(TraceHeader, id)
		}
		if details == nil {
			details = map[string]any{}
		}
		return c.Status(status).JSON(ErrorBody{Error: ErrorDetail{
			Code:    strconv.Itoa(status),
			Message: message,
			Details: details,
		}})
	}
}

func classify(err error) (int, string, map[string]any) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status, apiErr.Message, apiErr.Details
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message, nil
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fiber.StatusNotFound, "Not found", nil
	case errors.Is(err, indexer.ErrIndexInProgress):
		return fiber.StatusConflict, err.Error(), nil
	case errors.Is(err, searcher.ErrEmptyQuery),
		errors.Is(err, searcher.ErrUnsupportedMode),
		errors.Is(err, chunker.ErrInvalidConfig),
		errors.Is(err, indexer.ErrNoPaths):
		return fiber.StatusUnprocessableEntity, "Validation failed", map[string]any{"errors": []string{err.Error()}}
	}
	return fiber.StatusInternalServerError, "Internal server error", nil
}
