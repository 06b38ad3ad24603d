package room

import (
	"time"

	"github.com/roomtune/server/internal/domain"
)

type Config struct {
	QueueLimit     int
	TickInterval   time.Duration
	ResolveTimeout time.Duration
	PauseTimeout   time.Duration
}

type QueueResponse struct {
	Queue        []domain.QueueItem   `json:"queue"`
	CurrentIndex *int                 `json:"current_index"`
	State        domain.PlaybackState `json:"state"`
}

type ProgressResponse struct {
	PositionMs  int64                `json:"position_ms"`
	DurationMs  int64                `json:"duration_ms"`
	State       domain.PlaybackState `json:"state"`
	CurrentSong *domain.Song         `json:"current_song"`
}

type StatusResponse struct {
	Connected bool `json:"connected"`
	IsPlaying bool `json:"is_playing"`
}
