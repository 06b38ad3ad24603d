package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roomtune/server/internal/domain"
	"github.com/roomtune/server/internal/service/room"
	"github.com/roomtune/server/pkg/ctxlogger"
)

var errNoRoom = errors.New("room is required")

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type connectedPayload struct {
	ClientID string `json:"client_id"`
}

func (c controller) connect(w http.ResponseWriter, r *http.Request) {
	roomName := r.URL.Query().Get("room")

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	clientId := uuid.NewString()
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("client_id", clientId))
	ctx = context.WithValue(ctx, clientIdCtxKey, clientId)
	ctx = context.WithValue(ctx, roomNameCtxKey, roomName)

	if err := c.hub.Register(clientId, conn); err != nil {
		c.logger.ErrorContext(ctx, "failed to register client", "error", err)
		return
	}
	defer c.hub.Unregister(clientId)

	c.send(ctx, &Output{
		Type:    "CONNECTED",
		Payload: connectedPayload{ClientID: clientId},
	})

	if roomName != "" {
		if err := c.roomService.Subscribe(ctx, &room.SubscribeParams{
			RoomName: roomName,
			ClientID: clientId,
		}); err != nil {
			c.sendError(ctx, err)
		}
	}

	c.logger.InfoContext(ctx, "client connected", "room", roomName)
	if err := c.wsMux.ServeConn(ctx, conn); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.InfoContext(ctx, "connection closed", "error", err)
	}
}

func (c controller) send(ctx context.Context, output *Output) {
	if err := c.hub.SendTo(c.getClientIdFromCtx(ctx), output); err != nil {
		c.logger.InfoContext(ctx, "failed to send message", "type", output.Type, "error", err)
	}
}

func (c controller) sendError(ctx context.Context, err error) {
	c.logger.InfoContext(ctx, "websocket message failed", "error", err)
	c.send(ctx, &Output{
		Type:    "ERROR",
		Payload: errorPayload{Message: err.Error()},
	})
}

type EmptyInput struct{}

type RoomInput struct {
	Room string `json:"room"`
}

// roomName picks the room named in the message, falling back to the room
// the connection was opened for.
func (c controller) roomName(ctx context.Context, room string) (string, error) {
	if room != "" {
		return room, nil
	}
	if room = c.getRoomNameFromCtx(ctx); room != "" {
		return room, nil
	}

	return "", errNoRoom
}

func (c controller) roomCommand(fn func(context.Context, *room.RoomParams) error) func(context.Context, *websocket.Conn, RoomInput) error {
	return func(ctx context.Context, _ *websocket.Conn, input RoomInput) error {
		roomName, err := c.roomName(ctx, input.Room)
		if err != nil {
			return err
		}

		return fn(ctx, &room.RoomParams{RoomName: roomName})
	}
}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

func (c controller) handleSubscribe(ctx context.Context, _ *websocket.Conn, input RoomInput) error {
	roomName, err := c.roomName(ctx, input.Room)
	if err != nil {
		return err
	}

	return c.roomService.Subscribe(ctx, &room.SubscribeParams{
		RoomName: roomName,
		ClientID: c.getClientIdFromCtx(ctx),
	})
}

func (c controller) handleUnsubscribe(ctx context.Context, _ *websocket.Conn, input RoomInput) error {
	roomName, err := c.roomName(ctx, input.Room)
	if err != nil {
		return err
	}

	return c.roomService.Unsubscribe(ctx, &room.SubscribeParams{
		RoomName: roomName,
		ClientID: c.getClientIdFromCtx(ctx),
	})
}

type PlayInput struct {
	Room  string `json:"room"`
	Index *int   `json:"index"`
}

func (c controller) handlePlay(ctx context.Context, _ *websocket.Conn, input PlayInput) error {
	roomName, err := c.roomName(ctx, input.Room)
	if err != nil {
		return err
	}

	return c.roomService.Play(ctx, &room.PlayParams{
		RoomName: roomName,
		Index:    input.Index,
	})
}

type SeekInput struct {
	Room       string `json:"room"`
	PositionMs int64  `json:"position_ms"`
}

func (c controller) handleSeek(ctx context.Context, _ *websocket.Conn, input SeekInput) error {
	roomName, err := c.roomName(ctx, input.Room)
	if err != nil {
		return err
	}

	return c.roomService.Seek(ctx, &room.SeekParams{
		RoomName:   roomName,
		PositionMs: input.PositionMs,
	})
}

type AddToQueueInput struct {
	Room        string      `json:"room"`
	Song        domain.Song `json:"song"`
	RequestedBy string      `json:"requested_by"`
}

func (c controller) handleAddToQueue(ctx context.Context, _ *websocket.Conn, input AddToQueueInput) error {
	roomName, err := c.roomName(ctx, input.Room)
	if err != nil {
		return err
	}

	_, err = c.roomService.AddToQueue(ctx, &room.AddToQueueParams{
		RoomName:    roomName,
		Song:        input.Song,
		RequestedBy: input.RequestedBy,
	})
	return err
}

type RemoveFromQueueInput struct {
	Room  string `json:"room"`
	Index int    `json:"index"`
}

func (c controller) handleRemoveFromQueue(ctx context.Context, _ *websocket.Conn, input RemoveFromQueueInput) error {
	roomName, err := c.roomName(ctx, input.Room)
	if err != nil {
		return err
	}

	_, err = c.roomService.RemoveFromQueue(ctx, &room.RemoveFromQueueParams{
		RoomName: roomName,
		Index:    input.Index,
	})
	return err
}
