package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roomtune/server/internal/domain"
	"github.com/roomtune/server/internal/sink"
)

func (e *engine) play(index *int) error {
	if e.queue.IsEmpty() {
		return ErrEmptyQueue
	}

	if index != nil {
		if *index < 0 || *index >= e.queue.Length() {
			return ErrIndexOutOfRange
		}

		if e.state.Active() && *index == e.queue.CurrentIndex() {
			if e.state == domain.StatePaused {
				return e.resume()
			}
			return nil
		}

		e.startLoad(*index)
		return nil
	}

	switch e.state {
	case domain.StatePaused:
		return e.resume()
	case domain.StatePlaying, domain.StateLoading:
		return nil
	}

	next := e.cursor
	if next < 0 || next >= e.queue.Length() {
		next = 0
	}
	e.startLoad(next)

	return nil
}

func (e *engine) pause() error {
	if e.state != domain.StatePlaying {
		return ErrInvalidTransition
	}

	e.refreshPosition()
	e.stopAudio()
	e.state = domain.StatePaused
	e.startPauseTimer()

	e.emit(domain.EventPause, domain.PausePayload{PositionMs: e.positionMs})
	e.emit(domain.EventMusicState, e.musicState())
	e.persist()

	return nil
}

func (e *engine) resume() error {
	if e.state != domain.StatePaused {
		return ErrInvalidTransition
	}

	e.stopPauseTimer()
	if err := e.attach(e.positionMs); err != nil {
		e.fail(err.Error())
		return nil
	}

	e.state = domain.StatePlaying
	e.startClock()

	e.emit(domain.EventResume, domain.ResumePayload{PositionMs: e.positionMs})
	e.persist()

	return nil
}

func (e *engine) seek(ms int64) error {
	if e.state != domain.StatePlaying && e.state != domain.StatePaused {
		return ErrInvalidTransition
	}

	target := domain.Clamp(ms, 0, e.durationMs)

	if e.state == domain.StatePaused {
		if target == e.positionMs {
			return nil
		}
		if e.attached {
			e.sink.ClearBuffer()
		}
		e.positionMs = target
	} else {
		e.sink.Pause()
		e.sink.ClearBuffer()
		if err := e.attach(target); err != nil {
			e.fail(err.Error())
			return nil
		}
	}

	e.emit(domain.EventSeek, domain.SeekPayload{PositionMs: target})

	return nil
}

func (e *engine) skip() error {
	if e.state == domain.StateIdle {
		return ErrInvalidTransition
	}

	e.advance()
	return nil
}

func (e *engine) previous() error {
	if e.state == domain.StateIdle {
		return ErrInvalidTransition
	}

	e.startLoad(max(e.queue.CurrentIndex()-1, 0))
	return nil
}

// startLoad selects index and resolves its stream in the background. A load
// already in flight is cancelled and its result ignored.
func (e *engine) startLoad(index int) {
	e.cancelLoad()
	e.stopAudio()

	if err := e.queue.Select(index); err != nil {
		e.exhaust()
		return
	}
	item, _ := e.queue.Current()

	e.resetPlayback(domain.StateLoading)
	e.durationMs = item.Song.DurationMs()
	e.cursor = index

	e.loadGen++
	gen := e.loadGen
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ResolveTimeout)
	e.loadCancel = cancel

	song := item.Song
	go func() {
		url, err := e.resolve(ctx, song)
		e.post(func() {
			e.onResolved(gen, url, err)
		})
	}()

	e.logger.Info("loading song", "index", index, "song", song.Key())
	e.emit(domain.EventMusicState, e.musicState())
	e.persist()
}

// resolve bounds the resolver call even if it ignores ctx.
func (e *engine) resolve(ctx context.Context, song domain.Song) (string, error) {
	type result struct {
		url string
		err error
	}

	ch := make(chan result, 1)
	go func() {
		url, err := e.resolver.Resolve(ctx, song)
		ch <- result{url, err}
	}()

	select {
	case r := <-ch:
		if r.err == nil && r.url == "" {
			return "", ErrSongUnavailable
		}
		return r.url, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *engine) onResolved(gen uint64, url string, err error) {
	if gen != e.loadGen || e.state != domain.StateLoading {
		return
	}
	e.cancelLoad()

	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "stream resolution timed out"
		}
		e.fail(reason)
		return
	}

	e.url = url
	if err := e.attach(0); err != nil {
		e.fail(err.Error())
		return
	}

	e.state = domain.StatePlaying
	e.startClock()

	item, _ := e.queue.Current()
	e.emit(domain.EventPlay, domain.PlayPayload{
		Song:       item.Song,
		URL:        url,
		PositionMs: e.positionMs,
	})
	e.persist()
}

func (e *engine) attach(startMs int64) error {
	e.attachGen++
	gen := e.attachGen

	e.startMs = domain.Clamp(startMs, 0, e.durationMs)
	e.positionMs = e.startMs

	err := e.sink.Attach(context.Background(), sink.Track{
		URL:             e.url,
		StartPositionMs: e.startMs,
		DurationMs:      e.durationMs,
	}, sink.Events{
		OnComplete: func() {
			e.post(func() { e.onComplete(gen) })
		},
		OnError: func(err error) {
			e.post(func() { e.onSinkError(gen, err) })
		},
	})
	if err != nil {
		return fmt.Errorf("failed to attach sink: %w", err)
	}
	e.attached = true

	return nil
}

func (e *engine) onComplete(gen uint64) {
	if gen != e.attachGen || e.state != domain.StatePlaying {
		return
	}

	e.positionMs = e.durationMs
	e.logger.Info("song completed", "index", e.queue.CurrentIndex())
	e.advance()
}

func (e *engine) onSinkError(gen uint64, err error) {
	if gen != e.attachGen || (e.state != domain.StatePlaying && e.state != domain.StatePaused) {
		return
	}

	e.fail(err.Error())
}

// fail reports the current song as unavailable and moves on.
func (e *engine) fail(reason string) {
	e.stopAudio()
	e.state = domain.StateError

	item, _ := e.queue.Current()
	e.logger.Warn("song unavailable", "song", item.Song.Key(), "reason", reason)
	e.emit(domain.EventSongUnavailable, domain.SongUnavailablePayload{
		SongName: item.Song.Title,
		Reason:   reason,
	})

	e.advance()
}

func (e *engine) advance() {
	next := e.queue.CurrentIndex() + 1
	if e.queue.CurrentIndex() == domain.NoIndex || next >= e.queue.Length() {
		e.exhaust()
		return
	}

	e.startLoad(next)
}

// exhaust returns the room to Idle once nothing is left to play.
func (e *engine) exhaust() {
	e.cancelLoad()
	e.releaseSink()

	e.queue.Deselect()
	e.cursor = e.queue.Length()
	e.resetPlayback(domain.StateIdle)

	e.emit(domain.EventMusicState, e.musicState())
	e.persist()
}

func (e *engine) resetPlayback(state domain.PlaybackState) {
	e.state = state
	e.positionMs = 0
	e.durationMs = 0
	e.startMs = 0
	e.url = ""
}

func (e *engine) cancelLoad() {
	if e.loadCancel != nil {
		e.loadCancel()
		e.loadCancel = nil
	}
}

// stopAudio halts delivery and drops buffered frames. Callbacks from the
// previous attach are ignored afterwards.
func (e *engine) stopAudio() {
	e.stopClock()
	e.stopPauseTimer()
	e.attachGen++

	if e.attached {
		e.sink.Pause()
		e.sink.ClearBuffer()
	}
}

func (e *engine) releaseSink() {
	e.stopAudio()

	if e.attached {
		e.sink.Release()
		e.attached = false
	}
}

func (e *engine) startPauseTimer() {
	e.stopPauseTimer()
	if e.cfg.PauseTimeout <= 0 {
		return
	}

	e.pauseTimer = time.NewTimer(e.cfg.PauseTimeout)
	e.pauseC = e.pauseTimer.C
}

func (e *engine) stopPauseTimer() {
	if e.pauseTimer != nil {
		e.pauseTimer.Stop()
		e.pauseTimer = nil
		e.pauseC = nil
	}
}

// onPauseTimeout frees the sink of a room paused for too long. Resume
// attaches again from the frozen position.
func (e *engine) onPauseTimeout() {
	e.pauseTimer = nil
	e.pauseC = nil

	if e.state != domain.StatePaused || !e.attached {
		return
	}

	e.sink.Release()
	e.attached = false
	e.logger.Info("sink released after pause timeout", "position_ms", e.positionMs)
}
