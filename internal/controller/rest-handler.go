package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roomtune/server/internal/domain"
	"github.com/roomtune/server/internal/service/room"
	"github.com/roomtune/server/pkg/rest"
)

type songBody struct {
	Platform string `json:"platform" validate:"required,max=32"`
	ID       string `json:"id" validate:"required,max=128"`
	Title    string `json:"title" validate:"required,max=256"`
	Artist   string `json:"artist" validate:"max=256"`
	Album    string `json:"album" validate:"max=256"`
	Duration int    `json:"duration" validate:"gte=0"`
	CoverURL string `json:"cover_url" validate:"omitempty,url"`
}

type addToQueueBody struct {
	Song        *songBody `json:"song" validate:"required"`
	RequestedBy string    `json:"requested_by" validate:"required,max=64"`
}

type playBody struct {
	Index *int `json:"index" validate:"omitempty,gte=0"`
}

type seekBody struct {
	PositionMs *int64 `json:"position_ms" validate:"required"`
}

func (c controller) roomParams(r *http.Request) *room.RoomParams {
	return &room.RoomParams{RoomName: chi.URLParam(r, "room")}
}

// readBody decodes and validates a request body, writing the error response
// itself when it fails.
func (c controller) readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := rest.ReadJSON(r, dst); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read body", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.logger.InfoContext(r.Context(), "invalid body", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return false
	}

	return true
}

func (c controller) getQueue(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.GetQueue(r.Context(), c.roomParams(r))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c controller) addToQueue(w http.ResponseWriter, r *http.Request) {
	var req addToQueueBody
	if !c.readBody(w, r, &req) {
		return
	}

	resp, err := c.roomService.AddToQueue(r.Context(), &room.AddToQueueParams{
		RoomName: chi.URLParam(r, "room"),
		Song: domain.Song{
			Platform: req.Song.Platform,
			ID:       req.Song.ID,
			Title:    req.Song.Title,
			Artist:   req.Song.Artist,
			Album:    req.Song.Album,
			Duration: req.Song.Duration,
			CoverURL: req.Song.CoverURL,
		},
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c controller) removeFromQueue(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "index must be an integer"})
		return
	}

	resp, err := c.roomService.RemoveFromQueue(r.Context(), &room.RemoveFromQueueParams{
		RoomName: chi.URLParam(r, "room"),
		Index:    index,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c controller) clearQueue(w http.ResponseWriter, r *http.Request) {
	c.command(w, r, c.roomService.ClearQueue)
}

// command runs a control command and answers with the resulting progress.
func (c controller) command(w http.ResponseWriter, r *http.Request, fn func(context.Context, *room.RoomParams) error) {
	params := c.roomParams(r)
	if err := fn(r.Context(), params); err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeProgress(w, r, params)
}

func (c controller) writeProgress(w http.ResponseWriter, r *http.Request, params *room.RoomParams) {
	progress, err := c.roomService.GetProgress(r.Context(), params)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": progress})
}

func (c controller) play(w http.ResponseWriter, r *http.Request) {
	var req playBody
	if r.ContentLength != 0 && !c.readBody(w, r, &req) {
		return
	}

	params := &room.PlayParams{
		RoomName: chi.URLParam(r, "room"),
		Index:    req.Index,
	}
	if err := c.roomService.Play(r.Context(), params); err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeProgress(w, r, c.roomParams(r))
}

func (c controller) pause(w http.ResponseWriter, r *http.Request) {
	c.command(w, r, c.roomService.Pause)
}

func (c controller) resume(w http.ResponseWriter, r *http.Request) {
	c.command(w, r, c.roomService.Resume)
}

func (c controller) skip(w http.ResponseWriter, r *http.Request) {
	c.command(w, r, c.roomService.Skip)
}

func (c controller) previous(w http.ResponseWriter, r *http.Request) {
	c.command(w, r, c.roomService.Previous)
}

func (c controller) seek(w http.ResponseWriter, r *http.Request) {
	var req seekBody
	if !c.readBody(w, r, &req) {
		return
	}

	if err := c.roomService.Seek(r.Context(), &room.SeekParams{
		RoomName:   chi.URLParam(r, "room"),
		PositionMs: *req.PositionMs,
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeProgress(w, r, c.roomParams(r))
}

func (c controller) stop(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.Stop(r.Context(), c.roomParams(r)); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c controller) disconnected(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.Disconnected(r.Context(), c.roomParams(r)); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c controller) getProgress(w http.ResponseWriter, r *http.Request) {
	c.writeProgress(w, r, c.roomParams(r))
}

func (c controller) getStatus(w http.ResponseWriter, r *http.Request) {
	status, err := c.roomService.GetStatus(r.Context(), c.roomParams(r))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": status})
}
