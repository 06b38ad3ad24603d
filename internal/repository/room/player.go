package room

import "github.com/roomtune/server/internal/domain"

// Player is the committed playback cursor of a room. Position is not stored:
// a recovered room always starts Idle.
type Player struct {
	State        string `redis:"state"`
	CurrentIndex int    `redis:"current_index"`
	Cursor       int    `redis:"cursor"`
	UpdatedAt    int64  `redis:"updated_at"`
}

type Snapshot struct {
	Player Player
	Queue  []domain.QueueItem
}
