package controller

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/roomtune/server/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw())
	mux.OnError(func(ctx context.Context, _ *websocket.Conn, err error) {
		c.sendError(ctx, err)
	})

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)

	// subscription
	wsrouter.Handle(mux, "SUBSCRIBE", c.handleSubscribe)
	wsrouter.Handle(mux, "UNSUBSCRIBE", c.handleUnsubscribe)

	// player
	wsrouter.Handle(mux, "PLAY", c.handlePlay)
	wsrouter.Handle(mux, "PAUSE", c.roomCommand(c.roomService.Pause))
	wsrouter.Handle(mux, "RESUME", c.roomCommand(c.roomService.Resume))
	wsrouter.Handle(mux, "SKIP", c.roomCommand(c.roomService.Skip))
	wsrouter.Handle(mux, "PREVIOUS", c.roomCommand(c.roomService.Previous))
	wsrouter.Handle(mux, "SEEK", c.handleSeek)

	// queue
	wsrouter.Handle(mux, "ADD_TO_QUEUE", c.handleAddToQueue)
	wsrouter.Handle(mux, "REMOVE_FROM_QUEUE", c.handleRemoveFromQueue)
	wsrouter.Handle(mux, "CLEAR_QUEUE", c.roomCommand(c.roomService.ClearQueue))

	return mux
}
