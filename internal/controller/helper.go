package controller

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/roomtune/server/internal/service/room"
	"github.com/roomtune/server/pkg/rest"
)

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func (c controller) errorStatus(err error) int {
	var validationErrors validation.Errors

	switch {
	case errors.As(err, &validationErrors):
		return http.StatusBadRequest
	case errors.Is(err, room.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrInvalidTransition),
		errors.Is(err, room.ErrEmptyQueue),
		errors.Is(err, room.ErrQueueLimitReached):
		return http.StatusConflict
	case errors.Is(err, room.ErrIndexOutOfRange),
		errors.Is(err, room.ErrSongUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, room.ErrServiceClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := c.errorStatus(err)
	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
		rest.WriteJSON(w, status, rest.Envelope{"error": "internal server error"})
		return
	}

	c.logger.InfoContext(r.Context(), "request rejected", "status", status, "error", err)

	var validationErrors validation.Errors
	if errors.As(err, &validationErrors) {
		rest.WriteJSON(w, status, rest.Envelope{"errors": validationErrors})
		return
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": err.Error()})
}
