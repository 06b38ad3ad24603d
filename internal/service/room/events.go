package room

import (
	"context"
	"errors"
	"time"

	"github.com/roomtune/server/internal/domain"
	"github.com/roomtune/server/internal/repository/room"
)

type iPublisher interface {
	Publish(room string, v any) error
	SendTo(id string, v any) error
	Subscribe(room, id string) error
	Unsubscribe(room, id string) error
	CloseRoom(room string)
}

type iSnapshotRepo interface {
	SetSnapshot(context.Context, *room.SetSnapshotParams) error
	GetSnapshot(context.Context, string) (room.Snapshot, error)
	IsSnapshotExists(context.Context, string) (bool, error)
	RemoveSnapshot(context.Context, string) error
}

func (e *engine) event(typ string, payload any) domain.Event {
	e.seq++
	return domain.Event{
		Type:    typ,
		Room:    e.name,
		Session: e.session,
		Seq:     e.seq,
		Payload: payload,
	}
}

func (e *engine) emit(typ string, payload any) {
	if err := e.publisher.Publish(e.name, e.event(typ, payload)); err != nil {
		e.logger.Warn("failed to publish event", "type", typ, "error", err)
	}
}

func (e *engine) currentIndex() *int {
	if idx := e.queue.CurrentIndex(); idx != domain.NoIndex {
		return &idx
	}
	return nil
}

func (e *engine) currentSong() *domain.Song {
	if item, ok := e.queue.Current(); ok {
		return &item.Song
	}
	return nil
}

func (e *engine) musicState() domain.MusicStatePayload {
	return domain.MusicStatePayload{
		PositionMs:   e.positionMs,
		DurationMs:   e.durationMs,
		State:        e.state,
		CurrentSong:  e.currentSong(),
		CurrentIndex: e.currentIndex(),
		URL:          e.url,
	}
}

func (e *engine) queueUpdated() domain.QueueUpdatedPayload {
	return domain.QueueUpdatedPayload{
		Queue:        e.queue.AsList(),
		CurrentIndex: e.currentIndex(),
	}
}

// sendState brings a freshly subscribed client up to date. It runs on the
// engine goroutine so it lands after every event already published.
func (e *engine) sendState(clientID string) error {
	e.refreshPosition()

	if err := e.publisher.SendTo(clientID, e.event(domain.EventQueueUpdated, e.queueUpdated())); err != nil {
		return err
	}

	return e.publisher.SendTo(clientID, e.event(domain.EventMusicState, e.musicState()))
}

func (e *engine) persist() {
	if e.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := e.store.SetSnapshot(ctx, &room.SetSnapshotParams{
		RoomName: e.name,
		Player: room.Player{
			State:        e.state.String(),
			CurrentIndex: e.queue.CurrentIndex(),
			Cursor:       e.cursor,
			UpdatedAt:    time.Now().Unix(),
		},
		Queue: e.queue.AsList(),
	}); err != nil {
		e.logger.Warn("failed to persist snapshot", "error", err)
	}
}

// restore loads a committed queue left by a previous engine of this room.
// Playback always restarts from Idle.
func (e *engine) restore() {
	if e.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	snapshot, err := e.store.GetSnapshot(ctx, e.name)
	if err != nil {
		if !errors.Is(err, room.ErrSnapshotNotFound) {
			e.logger.Warn("failed to restore snapshot", "error", err)
		}
		return
	}

	for _, item := range snapshot.Queue {
		if _, err := e.queue.Add(item); err != nil {
			break
		}
	}

	e.cursor = snapshot.Player.Cursor
	if snapshot.Player.CurrentIndex != domain.NoIndex {
		e.cursor = snapshot.Player.CurrentIndex
	}
	e.cursor = domain.Clamp(e.cursor, 0, e.queue.Length())

	e.logger.Info("snapshot restored", "queue_length", e.queue.Length(), "cursor", e.cursor)
}
