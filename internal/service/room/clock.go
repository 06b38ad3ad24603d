package room

import (
	"time"

	"github.com/roomtune/server/internal/domain"
)

// refreshPosition derives the playback point from what the sink has pushed
// minus what it still holds, never from wall time.
func (e *engine) refreshPosition() {
	if e.state != domain.StatePlaying || !e.attached {
		return
	}

	played := e.sink.PushedDurationMs() - e.sink.QueuedDurationMs()
	e.positionMs = domain.Clamp(e.startMs+played, 0, e.durationMs)
}

func (e *engine) startClock() {
	if e.ticker != nil {
		return
	}

	e.ticker = time.NewTicker(e.cfg.TickInterval)
	e.tickC = e.ticker.C
}

func (e *engine) stopClock() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
		e.tickC = nil
	}
}

func (e *engine) tick() {
	if e.state != domain.StatePlaying {
		return
	}

	e.refreshPosition()
	e.lastTick = time.Now()
	e.emit(domain.EventMusicState, e.musicState())
}
