// Package reconciler applies a room's broadcast events to a local player so
// that a listener converges on the server's playback state.
package reconciler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roomtune/server/internal/domain"
)

var ErrMalformedEvent = errors.New("malformed event")

// LocalPlayer is the client side playback primitive. Positions are absolute.
type LocalPlayer interface {
	Load(song domain.Song, url string) error
	Play(positionMs int64) error
	Pause() error
	Seek(positionMs int64) error
	Position() int64
	Stop() error
}

type Config struct {
	Room string
	// DriftToleranceMs is how far the local position may stray from a
	// music_state report before it is corrected.
	DriftToleranceMs int64
}

type frame struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Session string          `json:"session"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// View is what the reconciler believes the local player is doing.
type View struct {
	Session    string
	Seq        uint64
	Song       *domain.Song
	URL        string
	Playing    bool
	DurationMs int64
	Queue      []domain.QueueItem
}

type Reconciler struct {
	room      string
	tolerance int64
	player    LocalPlayer
	logger    *slog.Logger

	mu         sync.Mutex
	session    string
	seq        uint64
	song       *domain.Song
	url        string
	playing    bool
	durationMs int64
	queue      []domain.QueueItem
}

func New(cfg Config, player LocalPlayer, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		room:      cfg.Room,
		tolerance: max(cfg.DriftToleranceMs, 0),
		player:    player,
		logger:    logger.With("room", cfg.Room),
	}
}

func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	var song *domain.Song
	if r.song != nil {
		s := *r.song
		song = &s
	}

	return View{
		Session:    r.session,
		Seq:        r.seq,
		Song:       song,
		URL:        r.url,
		Playing:    r.playing,
		DurationMs: r.durationMs,
		Queue:      append([]domain.QueueItem(nil), r.queue...),
	}
}

// Apply handles one raw websocket frame. Frames for other rooms, frames that
// are not room events and events already applied are ignored.
func (r *Reconciler) Apply(data []byte) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	if f.Room != r.room || f.Session == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if f.Session == r.session && f.Seq <= r.seq {
		r.logger.Debug("duplicate event ignored", "type", f.Type, "seq", f.Seq)
		return nil
	}
	if err := r.apply(f); err != nil {
		return err
	}

	if f.Session != r.session {
		r.logger.Info("room session changed", "session", f.Session)
	}
	r.session = f.Session
	r.seq = f.Seq

	return nil
}

// apply runs one event against the player. r.mu must be held.
func (r *Reconciler) apply(f frame) error {
	switch f.Type {
	case domain.EventPlay:
		var p domain.PlayPayload
		if err := decode(f.Payload, &p); err != nil {
			return err
		}
		return r.play(p)
	case domain.EventPause:
		var p domain.PausePayload
		if err := decode(f.Payload, &p); err != nil {
			return err
		}
		return r.pause(p.PositionMs)
	case domain.EventResume:
		var p domain.ResumePayload
		if err := decode(f.Payload, &p); err != nil {
			return err
		}
		return r.resume(p.PositionMs)
	case domain.EventSeek:
		var p domain.SeekPayload
		if err := decode(f.Payload, &p); err != nil {
			return err
		}
		return r.seek(p.PositionMs, 0)
	case domain.EventMusicState:
		var p domain.MusicStatePayload
		if err := decode(f.Payload, &p); err != nil {
			return err
		}
		return r.musicState(p)
	case domain.EventSongUnavailable:
		var p domain.SongUnavailablePayload
		if err := decode(f.Payload, &p); err != nil {
			return err
		}
		r.logger.Warn("song skipped", "song", p.SongName, "reason", p.Reason)
	case domain.EventQueueUpdated:
		var p domain.QueueUpdatedPayload
		if err := decode(f.Payload, &p); err != nil {
			return err
		}
		r.queue = p.Queue
	default:
		r.logger.Debug("unknown event ignored", "type", f.Type)
	}

	return nil
}

func decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return nil
}

func (r *Reconciler) load(song domain.Song, url string) error {
	if err := r.player.Load(song, url); err != nil {
		return fmt.Errorf("failed to load %s: %w", song.Key(), err)
	}

	r.song = &song
	r.url = url
	r.durationMs = song.DurationMs()
	r.playing = false

	return nil
}

func (r *Reconciler) play(p domain.PlayPayload) error {
	if err := r.load(p.Song, p.URL); err != nil {
		return err
	}

	if err := r.player.Play(p.PositionMs); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}
	r.playing = true

	return nil
}

// pause halts playback but keeps the loaded source.
func (r *Reconciler) pause(positionMs int64) error {
	if r.song == nil {
		return nil
	}

	if r.playing {
		if err := r.player.Pause(); err != nil {
			return fmt.Errorf("failed to pause: %w", err)
		}
		r.playing = false
	}

	return r.seek(positionMs, r.tolerance)
}

func (r *Reconciler) resume(positionMs int64) error {
	if r.song == nil {
		// nothing loaded yet, the next music_state carries the source
		return nil
	}

	if err := r.player.Play(positionMs); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}
	r.playing = true

	return nil
}

// seek moves the local player only when it is more than tolerance away, so
// re-applying the same position is a no-op.
func (r *Reconciler) seek(positionMs, tolerance int64) error {
	if r.song == nil {
		return nil
	}

	positionMs = domain.Clamp(positionMs, 0, r.durationMs)
	if abs(r.player.Position()-positionMs) <= tolerance {
		return nil
	}

	if err := r.player.Seek(positionMs); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}

func (r *Reconciler) stop() error {
	if r.song == nil {
		return nil
	}

	if err := r.player.Stop(); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}

	r.song = nil
	r.url = ""
	r.durationMs = 0
	r.playing = false

	return nil
}

func (r *Reconciler) sameTrack(song *domain.Song, url string) bool {
	if r.song == nil || song == nil {
		return r.song == nil && song == nil
	}
	if r.song.Key() != song.Key() {
		return false
	}

	return url == "" || url == r.url
}

func (r *Reconciler) musicState(p domain.MusicStatePayload) error {
	if p.State == domain.StateIdle || p.CurrentSong == nil {
		return r.stop()
	}

	if !r.sameTrack(p.CurrentSong, p.URL) {
		if p.URL == "" {
			// still resolving, hold the old source silent until play arrives
			if r.playing {
				if err := r.player.Pause(); err != nil {
					return fmt.Errorf("failed to pause: %w", err)
				}
				r.playing = false
			}
			return nil
		}

		if err := r.load(*p.CurrentSong, p.URL); err != nil {
			return err
		}
		if p.State == domain.StatePlaying {
			if err := r.player.Play(p.PositionMs); err != nil {
				return fmt.Errorf("failed to play: %w", err)
			}
			r.playing = true
			return nil
		}
		return r.seek(p.PositionMs, 0)
	}

	if p.DurationMs > 0 {
		r.durationMs = p.DurationMs
	}

	switch {
	case p.State == domain.StatePlaying && !r.playing:
		if err := r.player.Play(p.PositionMs); err != nil {
			return fmt.Errorf("failed to play: %w", err)
		}
		r.playing = true
		return nil
	case p.State != domain.StatePlaying && r.playing:
		if err := r.player.Pause(); err != nil {
			return fmt.Errorf("failed to pause: %w", err)
		}
		r.playing = false
	}

	return r.seek(p.PositionMs, r.tolerance)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
