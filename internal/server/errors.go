package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/hyperjump/pdfrag/internal/models"
)

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrCorruptFile), errors.Is(err, models.ErrUnreadable), errors.Is(err, models.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnknownDocument):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, models.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrProviderUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown for err. Input problems are explained; anything else is generic.
func userMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrCorruptFile):
		return "That file is not a readable PDF."
	case errors.Is(err, models.ErrUnreadable), errors.Is(err, models.ErrEmptyInput):
		return "No text could be extracted from that PDF."
	case errors.Is(err, models.ErrEmptyQuery):
		return "Please type a question."
	case errors.Is(err, models.ErrUnknownDocument):
		return "document not found"
	case errors.Is(err, models.ErrNotReady):
		return "The document is still being processed. Please try again shortly."
	case models.IsTransient(err):
		return "The language provider is unavailable. Please try again."
	default:
		return "Sorry, I couldn't process that request. Please try again."
	}
}
