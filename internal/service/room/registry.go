package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roomtune/server/internal/catalog"
	"github.com/roomtune/server/internal/repository/room"
	"github.com/roomtune/server/internal/sink"
)

// registry keeps at most one engine per room name. A room being removed is
// tracked in removing until its snapshot is gone; callers for that name wait.
type registry struct {
	cfg         *Config
	resolver    catalog.Resolver
	sinkFactory sink.Factory
	publisher   iPublisher
	store       iSnapshotRepo
	logger      *slog.Logger

	mu       sync.Mutex
	engines  map[string]*engine
	removing map[string]chan struct{}
	epoch    uint64
	closed   bool
}

func newRegistry(cfg *Config, resolver catalog.Resolver, sinkFactory sink.Factory, publisher iPublisher, store iSnapshotRepo, logger *slog.Logger) *registry {
	return &registry{
		cfg:         cfg,
		resolver:    resolver,
		sinkFactory: sinkFactory,
		publisher:   publisher,
		store:       store,
		logger:      logger,
		engines:     make(map[string]*engine),
		removing:    make(map[string]chan struct{}),
	}
}

// waitRemovalLocked blocks until no removal of name is in flight. r.mu must be
// held; it is held again on return.
func (r *registry) waitRemovalLocked(ctx context.Context, name string) error {
	for {
		done, ok := r.removing[name]
		if !ok {
			return nil
		}

		r.mu.Unlock()
		select {
		case <-done:
			r.mu.Lock()
		case <-ctx.Done():
			r.mu.Lock()
			return ctx.Err()
		}
	}
}

func (r *registry) createLocked(name string) (*engine, error) {
	if r.closed {
		return nil, ErrServiceClosed
	}

	if e, ok := r.engines[name]; ok {
		return e, nil
	}

	e := newEngine(name, engineDeps{
		cfg:       r.cfg,
		resolver:  r.resolver,
		sink:      r.sinkFactory(name),
		publisher: r.publisher,
		store:     r.store,
		logger:    r.logger,
	})
	r.engines[name] = e
	r.logger.Info("room created", "room", name)

	return e, nil
}

func (r *registry) getOrCreate(ctx context.Context, name string) (*engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.waitRemovalLocked(ctx, name); err != nil {
		return nil, err
	}

	return r.createLocked(name)
}

func (r *registry) get(name string) (*engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.engines[name]
	return e, ok
}

// lookup returns the live engine of a room, bringing it back from its
// snapshot when one survived a restart.
func (r *registry) lookup(ctx context.Context, name string) (*engine, error) {
	for {
		r.mu.Lock()
		if err := r.waitRemovalLocked(ctx, name); err != nil {
			r.mu.Unlock()
			return nil, err
		}
		e, ok := r.engines[name]
		epoch := r.epoch
		r.mu.Unlock()

		if ok {
			return e, nil
		}
		if r.store == nil {
			return nil, ErrRoomNotFound
		}

		exists, err := r.store.IsSnapshotExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check snapshot: %w", err)
		}
		if !exists {
			return nil, ErrRoomNotFound
		}

		r.mu.Lock()
		// a removal started after the check may be deleting that snapshot
		if r.epoch != epoch {
			r.mu.Unlock()
			continue
		}
		e, err = r.createLocked(name)
		r.mu.Unlock()

		return e, err
	}
}

// remove tears the room down: playback stops, the sink is released, every
// listener is unsubscribed and the snapshot is deleted before the name can be
// used again.
func (r *registry) remove(ctx context.Context, name string) error {
	r.mu.Lock()
	if err := r.waitRemovalLocked(ctx, name); err != nil {
		r.mu.Unlock()
		return err
	}
	e, ok := r.engines[name]
	delete(r.engines, name)
	done := make(chan struct{})
	r.removing[name] = done
	r.epoch++
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.removing, name)
		r.mu.Unlock()
		close(done)
	}()

	if ok {
		e.Close()
		r.publisher.CloseRoom(name)
		r.logger.Info("room removed", "room", name)
	}

	if r.store != nil {
		err := r.store.RemoveSnapshot(ctx, name)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, room.ErrSnapshotNotFound):
		default:
			return fmt.Errorf("failed to remove snapshot: %w", err)
		}
	}

	if !ok {
		return ErrRoomNotFound
	}

	return nil
}

// closeAll stops every engine and keeps snapshots for the next start. No
// engine is created afterwards.
func (r *registry) closeAll() {
	r.mu.Lock()
	engines := r.engines
	r.engines = make(map[string]*engine)
	r.closed = true
	r.mu.Unlock()

	var wg sync.WaitGroup
	for name, e := range engines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Close()
			r.publisher.CloseRoom(name)
		}()
	}
	wg.Wait()
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.engines)
}
