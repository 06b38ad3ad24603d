package room

import (
	"errors"

	"github.com/roomtune/server/internal/domain"
)

func (e *engine) queueView() QueueResponse {
	return QueueResponse{
		Queue:        e.queue.AsList(),
		CurrentIndex: e.currentIndex(),
		State:        e.state,
	}
}

func (e *engine) add(item domain.QueueItem) (QueueResponse, error) {
	if _, err := e.queue.Add(item); err != nil {
		if errors.Is(err, domain.ErrQueueLimitReached) {
			return QueueResponse{}, ErrQueueLimitReached
		}
		return QueueResponse{}, err
	}

	e.emit(domain.EventQueueUpdated, e.queueUpdated())
	e.persist()

	return e.queueView(), nil
}

// removeAt drops a queue item. Removing the selected item while playback is
// active behaves like a skip onto whatever now occupies that slot.
func (e *engine) removeAt(index int) (QueueResponse, error) {
	current := e.queue.CurrentIndex()
	active := e.state.Active()

	if _, err := e.queue.RemoveAt(index); err != nil {
		return QueueResponse{}, ErrIndexOutOfRange
	}

	if !active && index < e.cursor {
		e.cursor--
	}

	e.emit(domain.EventQueueUpdated, e.queueUpdated())

	switch {
	case active && index == current && index >= e.queue.Length():
		e.exhaust()
	case active && index == current:
		e.startLoad(index)
	case active:
		e.cursor = e.queue.CurrentIndex()
		e.persist()
	default:
		e.persist()
	}

	return e.queueView(), nil
}

func (e *engine) clear() {
	e.cancelLoad()
	e.releaseSink()

	e.queue.Clear()
	e.cursor = 0
	e.resetPlayback(domain.StateIdle)

	e.emit(domain.EventQueueUpdated, e.queueUpdated())
	e.emit(domain.EventMusicState, e.musicState())
	e.persist()
}

func (e *engine) progress() ProgressResponse {
	e.refreshPosition()

	return ProgressResponse{
		PositionMs:  e.positionMs,
		DurationMs:  e.durationMs,
		State:       e.state,
		CurrentSong: e.currentSong(),
	}
}

func (e *engine) status() StatusResponse {
	return StatusResponse{
		Connected: true,
		IsPlaying: e.state == domain.StatePlaying,
	}
}
