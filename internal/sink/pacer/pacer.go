package pacer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/roomtune/server/internal/sink"
)

var ErrUnsupportedScheme = errors.New("unsupported stream scheme")

type Config struct {
	// Frame is the amount of audio moved per step.
	Frame time.Duration
	// Buffer bounds how much audio may be pushed ahead of playback.
	Buffer time.Duration
}

// Sink models frame delivery to a voice transport: frames are pushed into a
// bounded buffer ahead of playback and drained in real time.
type Sink struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	pushed   int64
	consumed int64
	start    int64
	duration int64
	events   sink.Events
	stop     chan struct{}
	done     chan struct{}
}

func New(cfg Config, logger *slog.Logger) *Sink {
	if cfg.Frame <= 0 {
		cfg.Frame = 20 * time.Millisecond
	}
	if cfg.Buffer < cfg.Frame {
		cfg.Buffer = cfg.Frame
	}

	return &Sink{
		cfg:    cfg,
		logger: logger,
	}
}

func NewFactory(cfg Config, logger *slog.Logger) sink.Factory {
	return func(room string) sink.Sink {
		return New(cfg, logger.With("room", room))
	}
}

func (s *Sink) Attach(ctx context.Context, track sink.Track, events sink.Events) error {
	u, err := url.Parse(track.URL)
	if err != nil {
		return fmt.Errorf("failed to parse stream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	s.halt()

	s.mu.Lock()
	s.pushed = 0
	s.consumed = 0
	s.start = track.StartPositionMs
	s.duration = track.DurationMs
	s.events = events
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "sink attached", "url", track.URL, "start_ms", track.StartPositionMs)

	go s.loop(stop, done)
	return nil
}

func (s *Sink) loop(stop, done chan struct{}) {
	defer close(done)

	frame := s.cfg.Frame.Milliseconds()
	buffer := s.cfg.Buffer.Milliseconds()
	ticker := time.NewTicker(s.cfg.Frame)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		remaining := s.duration - s.start - s.pushed
		for remaining > 0 && s.pushed-s.consumed < buffer {
			n := min(frame, remaining)
			s.pushed += n
			remaining -= n
		}
		if s.pushed > s.consumed {
			s.consumed += min(frame, s.pushed-s.consumed)
		}
		finished := s.start+s.consumed >= s.duration
		onComplete := s.events.OnComplete
		s.mu.Unlock()

		if finished {
			if onComplete != nil {
				go onComplete()
			}
			return
		}
	}
}

// halt stops frame delivery and waits for the loop to exit.
func (s *Sink) halt() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *Sink) Pause() {
	s.halt()
}

// ClearBuffer drops frames that were pushed but not yet played.
func (s *Sink) ClearBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushed = s.consumed
}

func (s *Sink) PushedDurationMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pushed
}

func (s *Sink) QueuedDurationMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pushed - s.consumed
}

func (s *Sink) Release() {
	s.halt()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushed = 0
	s.consumed = 0
	s.start = 0
	s.duration = 0
	s.events = sink.Events{}
}
