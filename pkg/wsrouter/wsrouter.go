package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

type ErrorHandler func(ctx context.Context, conn *websocket.Conn, err error)

type route struct {
	decode  func(json.RawMessage) (any, error)
	handler HandlerFunc[any]
}

type WSRouter struct {
	routes      map[string]route
	middlewares []Middleware
	onError     ErrorHandler
}

func New() *WSRouter {
	return &WSRouter{
		routes:  make(map[string]route),
		onError: func(context.Context, *websocket.Conn, error) {},
	}
}

// Use appends middlewares. The first one registered runs outermost.
func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) OnError(h ErrorHandler) {
	r.onError = h
}

// Handle registers handler for messageType. The payload is decoded into T
// before any middleware runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = route{
		decode: func(raw json.RawMessage) (any, error) {
			var payload T
			if len(raw) == 0 || string(raw) == "null" {
				return payload, nil
			}
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, fmt.Errorf("invalid payload: %w", err)
			}
			return payload, nil
		},
		handler: func(ctx context.Context, conn *websocket.Conn, payload any) error {
			return handler(ctx, conn, payload.(T))
		},
	}
}

func (r *WSRouter) chain(h HandlerFunc[any]) HandlerFunc[any] {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}
	return h
}

func (r *WSRouter) dispatch(ctx context.Context, conn *websocket.Conn, data []byte) error {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	rt, ok := r.routes[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}

	ctx = context.WithValue(ctx, messageTypeKey, msg.Type)

	payload, err := rt.decode(msg.Payload)
	if err != nil {
		return err
	}

	return r.chain(rt.handler)(ctx, conn, payload)
}

// ServeConn reads messages until the connection fails and routes each one.
// Handler errors are reported through the error handler and do not close the
// connection.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if err := r.dispatch(ctx, conn, data); err != nil {
			r.onError(ctx, conn, err)
		}
	}
}
