package controller

import "context"

type contextKey int

const (
	clientIdCtxKey contextKey = iota
	roomNameCtxKey
)

func (c controller) getClientIdFromCtx(ctx context.Context) string {
	clientId, ok := ctx.Value(clientIdCtxKey).(string)
	if !ok {
		return ""
	}

	return clientId
}

func (c controller) getRoomNameFromCtx(ctx context.Context) string {
	roomName, ok := ctx.Value(roomNameCtxKey).(string)
	if !ok {
		return ""
	}

	return roomName
}
