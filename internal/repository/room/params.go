package room

import "github.com/roomtune/server/internal/domain"

type SetSnapshotParams struct {
	RoomName string
	Player   Player
	Queue    []domain.QueueItem
}
