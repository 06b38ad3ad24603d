package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/roomtune/server/internal/hub"
	"github.com/roomtune/server/internal/service/room"
	"github.com/roomtune/server/pkg/validator"
	"github.com/roomtune/server/pkg/wsrouter"
)

type iRoomService interface {
	AddToQueue(context.Context, *room.AddToQueueParams) (room.QueueResponse, error)
	RemoveFromQueue(context.Context, *room.RemoveFromQueueParams) (room.QueueResponse, error)
	ClearQueue(context.Context, *room.RoomParams) error
	GetQueue(context.Context, *room.RoomParams) (room.QueueResponse, error)
	Play(context.Context, *room.PlayParams) error
	Pause(context.Context, *room.RoomParams) error
	Resume(context.Context, *room.RoomParams) error
	Skip(context.Context, *room.RoomParams) error
	Previous(context.Context, *room.RoomParams) error
	Seek(context.Context, *room.SeekParams) error
	Stop(context.Context, *room.RoomParams) error
	Disconnected(context.Context, *room.RoomParams) error
	GetProgress(context.Context, *room.RoomParams) (room.ProgressResponse, error)
	GetStatus(context.Context, *room.RoomParams) (room.StatusResponse, error)
	Subscribe(context.Context, *room.SubscribeParams) error
	Unsubscribe(context.Context, *room.SubscribeParams) error
}

type iHub interface {
	Register(id string, conn hub.Conn) error
	Unregister(id string) error
	SendTo(id string, v any) error
}

type controller struct {
	roomService iRoomService
	hub         iHub
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsMux       *wsrouter.WSRouter
	logger      *slog.Logger
}

func NewController(roomService iRoomService, hub iHub, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		hub:         hub,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
	c.wsMux = c.getWSRouter()

	return c
}
