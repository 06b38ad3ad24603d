package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/roomtune/server/internal/catalog"
	"github.com/roomtune/server/internal/domain"
	"github.com/roomtune/server/internal/sink"
)

type service struct {
	registry  *registry
	publisher iPublisher
	logger    *slog.Logger
}

// NewService wires the room registry. store may be nil, in which case rooms
// live only in memory.
func NewService(cfg *Config, resolver catalog.Resolver, sinkFactory sink.Factory, publisher iPublisher, store iSnapshotRepo, logger *slog.Logger) *service {
	return &service{
		registry:  newRegistry(cfg, resolver, sinkFactory, publisher, store, logger),
		publisher: publisher,
		logger:    logger,
	}
}

func (s service) validateRoomName(ctx context.Context, params *RoomParams) error {
	return validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.RoomName, RoomNameRule...),
	)
}

// control runs fn on the engine of an existing room.
func (s service) control(ctx context.Context, params *RoomParams, fn func(*engine) error) error {
	if err := s.validateRoomName(ctx, params); err != nil {
		return err
	}

	e, err := s.registry.lookup(ctx, params.RoomName)
	if err != nil {
		return err
	}

	if err := e.do(ctx, func() error { return fn(e) }); err != nil {
		if errors.Is(err, errRoomClosed) {
			return ErrRoomNotFound
		}
		return err
	}

	return nil
}

type RoomParams struct {
	RoomName string
}

type AddToQueueParams struct {
	RoomName    string
	Song        domain.Song
	RequestedBy string
}

func (s service) AddToQueue(ctx context.Context, params *AddToQueueParams) (QueueResponse, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.RoomName, RoomNameRule...),
		validation.Field(&params.RequestedBy, RequestedByRule...),
	); err != nil {
		return QueueResponse{}, err
	}

	if err := validation.ValidateStructWithContext(ctx, &params.Song,
		validation.Field(&params.Song.Platform, PlatformRule...),
		validation.Field(&params.Song.ID, SongIdRule...),
		validation.Field(&params.Song.Duration, DurationRule...),
		validation.Field(&params.Song.CoverURL, CoverURLRule...),
	); err != nil {
		return QueueResponse{}, err
	}

	item := domain.QueueItem{
		Song:        params.Song,
		RequestedBy: params.RequestedBy,
	}

	// a room removed between lookup and the command gets recreated
	for {
		e, err := s.registry.getOrCreate(ctx, params.RoomName)
		if err != nil {
			return QueueResponse{}, fmt.Errorf("failed to add to queue: %w", err)
		}
		resp, err := query(ctx, e, func() (QueueResponse, error) {
			return e.add(item)
		})
		if errors.Is(err, errRoomClosed) {
			continue
		}
		if err != nil {
			return QueueResponse{}, fmt.Errorf("failed to add to queue: %w", err)
		}

		return resp, nil
	}
}

type RemoveFromQueueParams struct {
	RoomName string
	Index    int
}

func (s service) RemoveFromQueue(ctx context.Context, params *RemoveFromQueueParams) (QueueResponse, error) {
	var resp QueueResponse
	err := s.control(ctx, &RoomParams{RoomName: params.RoomName}, func(e *engine) error {
		var err error
		resp, err = e.removeAt(params.Index)
		return err
	})
	if err != nil {
		return QueueResponse{}, fmt.Errorf("failed to remove from queue: %w", err)
	}

	return resp, nil
}

func (s service) ClearQueue(ctx context.Context, params *RoomParams) error {
	if err := s.control(ctx, params, func(e *engine) error {
		e.clear()
		return nil
	}); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	return nil
}

func (s service) GetQueue(ctx context.Context, params *RoomParams) (QueueResponse, error) {
	var resp QueueResponse
	if err := s.control(ctx, params, func(e *engine) error {
		resp = e.queueView()
		return nil
	}); err != nil {
		return QueueResponse{}, fmt.Errorf("failed to get queue: %w", err)
	}

	return resp, nil
}

type PlayParams struct {
	RoomName string
	Index    *int
}

func (s service) Play(ctx context.Context, params *PlayParams) error {
	if err := s.control(ctx, &RoomParams{RoomName: params.RoomName}, func(e *engine) error {
		return e.play(params.Index)
	}); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	return nil
}

func (s service) Pause(ctx context.Context, params *RoomParams) error {
	if err := s.control(ctx, params, (*engine).pause); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	return nil
}

func (s service) Resume(ctx context.Context, params *RoomParams) error {
	if err := s.control(ctx, params, (*engine).resume); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}

	return nil
}

func (s service) Skip(ctx context.Context, params *RoomParams) error {
	if err := s.control(ctx, params, (*engine).skip); err != nil {
		return fmt.Errorf("failed to skip: %w", err)
	}

	return nil
}

func (s service) Previous(ctx context.Context, params *RoomParams) error {
	if err := s.control(ctx, params, (*engine).previous); err != nil {
		return fmt.Errorf("failed to go to previous: %w", err)
	}

	return nil
}

type SeekParams struct {
	RoomName   string
	PositionMs int64
}

func (s service) Seek(ctx context.Context, params *SeekParams) error {
	if err := s.control(ctx, &RoomParams{RoomName: params.RoomName}, func(e *engine) error {
		return e.seek(params.PositionMs)
	}); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}

// Stop tears the room down on explicit request.
func (s service) Stop(ctx context.Context, params *RoomParams) error {
	if err := s.validateRoomName(ctx, params); err != nil {
		return err
	}

	if err := s.registry.remove(ctx, params.RoomName); err != nil {
		return fmt.Errorf("failed to stop room: %w", err)
	}

	return nil
}

// Disconnected is the transport callback fired when a room's audio channel
// goes away. Unknown rooms are ignored.
func (s service) Disconnected(ctx context.Context, params *RoomParams) error {
	if err := s.validateRoomName(ctx, params); err != nil {
		return err
	}

	if err := s.registry.remove(ctx, params.RoomName); err != nil && !errors.Is(err, ErrRoomNotFound) {
		return fmt.Errorf("failed to tear down room: %w", err)
	}

	s.logger.InfoContext(ctx, "room transport disconnected", "room", params.RoomName)
	return nil
}

func (s service) GetProgress(ctx context.Context, params *RoomParams) (ProgressResponse, error) {
	var resp ProgressResponse
	err := s.control(ctx, params, func(e *engine) error {
		resp = e.progress()
		return nil
	})
	if errors.Is(err, ErrRoomNotFound) {
		return ProgressResponse{State: domain.StateIdle}, nil
	}
	if err != nil {
		return ProgressResponse{}, fmt.Errorf("failed to get progress: %w", err)
	}

	return resp, nil
}

func (s service) GetStatus(ctx context.Context, params *RoomParams) (StatusResponse, error) {
	if err := s.validateRoomName(ctx, params); err != nil {
		return StatusResponse{}, err
	}

	e, ok := s.registry.get(params.RoomName)
	if !ok {
		return StatusResponse{}, nil
	}

	resp, err := query(ctx, e, func() (StatusResponse, error) {
		return e.status(), nil
	})
	if errors.Is(err, errRoomClosed) {
		return StatusResponse{}, nil
	}
	if err != nil {
		return StatusResponse{}, fmt.Errorf("failed to get status: %w", err)
	}

	return resp, nil
}

type SubscribeParams struct {
	RoomName string
	ClientID string
}

func (s service) validateSubscribe(ctx context.Context, params *SubscribeParams) error {
	return validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.RoomName, RoomNameRule...),
		validation.Field(&params.ClientID, ClientIdRule...),
	)
}

// Subscribe adds a listener to the room and, when the room is live, sends it
// the current queue and playback state.
func (s service) Subscribe(ctx context.Context, params *SubscribeParams) error {
	if err := s.validateSubscribe(ctx, params); err != nil {
		return err
	}

	if err := s.publisher.Subscribe(params.RoomName, params.ClientID); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	e, err := s.registry.lookup(ctx, params.RoomName)
	if errors.Is(err, ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := e.do(ctx, func() error { return e.sendState(params.ClientID) }); err != nil && !errors.Is(err, errRoomClosed) {
		return fmt.Errorf("failed to send state: %w", err)
	}

	return nil
}

func (s service) Unsubscribe(ctx context.Context, params *SubscribeParams) error {
	if err := s.validateSubscribe(ctx, params); err != nil {
		return err
	}

	if err := s.publisher.Unsubscribe(params.RoomName, params.ClientID); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	return nil
}

// Shutdown stops every room engine. Snapshots are kept.
func (s service) Shutdown() {
	s.registry.closeAll()
}
