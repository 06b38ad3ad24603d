package room

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roomtune/server/internal/catalog"
	"github.com/roomtune/server/internal/domain"
	"github.com/roomtune/server/internal/sink"
)

const persistTimeout = 2 * time.Second

// engine owns the playback state of one room. Every field below cmds is
// touched only by the run goroutine.
type engine struct {
	name      string
	session   string
	cfg       *Config
	resolver  catalog.Resolver
	sink      sink.Sink
	publisher iPublisher
	store     iSnapshotRepo
	logger    *slog.Logger

	cmds      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	queue      *domain.Queue
	state      domain.PlaybackState
	positionMs int64
	durationMs int64
	startMs    int64
	url        string
	// cursor is where play without an index starts.
	cursor   int
	seq      uint64
	lastTick time.Time

	loadGen    uint64
	loadCancel context.CancelFunc

	attachGen uint64
	attached  bool

	ticker     *time.Ticker
	tickC      <-chan time.Time
	pauseTimer *time.Timer
	pauseC     <-chan time.Time
}

type engineDeps struct {
	cfg       *Config
	resolver  catalog.Resolver
	sink      sink.Sink
	publisher iPublisher
	store     iSnapshotRepo
	logger    *slog.Logger
}

func newEngine(name string, deps engineDeps) *engine {
	session := uuid.NewString()
	e := &engine{
		name:      name,
		session:   session,
		cfg:       deps.cfg,
		resolver:  deps.resolver,
		sink:      deps.sink,
		publisher: deps.publisher,
		store:     deps.store,
		logger:    deps.logger.With("room", name, "session", session),
		cmds:      make(chan func(), 64),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		queue:     domain.NewQueue(deps.cfg.QueueLimit),
		state:     domain.StateIdle,
	}

	go e.run()

	return e
}

func (e *engine) run() {
	defer close(e.done)

	e.restore()
	e.logger.Debug("room engine started")

	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-e.tickC:
			e.tick()
		case <-e.pauseC:
			e.onPauseTimeout()
		case <-e.quit:
			e.teardown()
			e.logger.Debug("room engine stopped")
			return
		}
	}
}

// do runs fn on the engine goroutine and waits for its result.
func (e *engine) do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)

	select {
	case e.cmds <- func() { errCh <- fn() }:
	case <-e.quit:
		return errRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errCh:
		return err
	case <-e.done:
		select {
		case err := <-errCh:
			return err
		default:
			return errRoomClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func query[T any](ctx context.Context, e *engine, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}

	ch := make(chan result, 1)
	if err := e.do(ctx, func() error {
		v, err := fn()
		ch <- result{v, err}
		return nil
	}); err != nil {
		var zero T
		return zero, err
	}

	r := <-ch
	return r.v, r.err
}

// post schedules fn from a goroutine other than the engine's own. It is
// dropped once the engine is closing.
func (e *engine) post(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.quit:
	}
}

// Close stops playback, releases the sink and waits for the engine to exit.
func (e *engine) Close() {
	e.closeOnce.Do(func() {
		close(e.quit)
	})
	<-e.done
}

func (e *engine) teardown() {
	e.cancelLoad()
	e.releaseSink()
	e.queue.Deselect()
	e.resetPlayback(domain.StateIdle)
	e.emit(domain.EventMusicState, e.musicState())
}
