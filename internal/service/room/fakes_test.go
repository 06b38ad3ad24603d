package room

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomtune/server/internal/catalog"
	"github.com/roomtune/server/internal/domain"
	"github.com/roomtune/server/internal/sink"
)

type fakeSink struct {
	mu        sync.Mutex
	tracks    []sink.Track
	events    sink.Events
	pushed    int64
	queued    int64
	paused    int
	cleared   int
	released  int
	attachErr error
}

func (s *fakeSink) Attach(_ context.Context, track sink.Track, events sink.Events) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attachErr != nil {
		return s.attachErr
	}
	s.tracks = append(s.tracks, track)
	s.events = events
	s.pushed = 0
	s.queued = 0
	return nil
}

func (s *fakeSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused++
}

func (s *fakeSink) ClearBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	s.pushed -= s.queued
	s.queued = 0
}

func (s *fakeSink) PushedDurationMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushed
}

func (s *fakeSink) QueuedDurationMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued
}

func (s *fakeSink) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
}

func (s *fakeSink) setProgress(pushed, queued int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushed = pushed
	s.queued = queued
}

func (s *fakeSink) complete() {
	s.mu.Lock()
	onComplete := s.events.OnComplete
	s.mu.Unlock()
	onComplete()
}

func (s *fakeSink) fail(err error) {
	s.mu.Lock()
	onError := s.events.OnError
	s.mu.Unlock()
	onError(err)
}

func (s *fakeSink) lastTrack() sink.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks[len(s.tracks)-1]
}

func (s *fakeSink) attachCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks)
}

func (s *fakeSink) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *fakeSink) setAttachErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachErr = err
}

type sent struct {
	clientID string
	event    domain.Event
}

type fakePublisher struct {
	mu         sync.Mutex
	events     map[string][]domain.Event
	sent       []sent
	subs       map[string]map[string]bool
	closedRoom []string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		events: make(map[string][]domain.Event),
		subs:   make(map[string]map[string]bool),
	}
}

func (p *fakePublisher) Publish(room string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[room] = append(p.events[room], v.(domain.Event))
	return nil
}

func (p *fakePublisher) SendTo(id string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sent{clientID: id, event: v.(domain.Event)})
	return nil
}

func (p *fakePublisher) Subscribe(room, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subs[room] == nil {
		p.subs[room] = make(map[string]bool)
	}
	p.subs[room][id] = true
	return nil
}

func (p *fakePublisher) Unsubscribe(room, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs[room], id)
	return nil
}

func (p *fakePublisher) CloseRoom(room string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, room)
	p.closedRoom = append(p.closedRoom, room)
}

func (p *fakePublisher) roomEvents(room string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events[room]...)
}

func (p *fakePublisher) eventsOfType(room, typ string) []domain.Event {
	var res []domain.Event
	for _, ev := range p.roomEvents(room) {
		if ev.Type == typ {
			res = append(res, ev)
		}
	}
	return res
}

func (p *fakePublisher) sentTo(id string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var res []domain.Event
	for _, s := range p.sent {
		if s.clientID == id {
			res = append(res, s.event)
		}
	}
	return res
}

type fakeResolver struct {
	mu    sync.Mutex
	errs  map[string]error
	gates map[string]chan struct{}
	calls int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		errs:  make(map[string]error),
		gates: make(map[string]chan struct{}),
	}
}

func (r *fakeResolver) Resolve(ctx context.Context, song domain.Song) (string, error) {
	r.mu.Lock()
	r.calls++
	err := r.errs[song.ID]
	gate := r.gates[song.ID]
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return "https://cdn.example.com/" + song.ID + ".mp3", nil
}

func (r *fakeResolver) block(id string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	gate := make(chan struct{})
	r.gates[id] = gate
	return gate
}

func (r *fakeResolver) failWith(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[id] = err
}

var _ catalog.Resolver = (*fakeResolver)(nil)

// gatedStore holds RemoveSnapshot until release is closed.
type gatedStore struct {
	iSnapshotRepo
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(store iSnapshotRepo) *gatedStore {
	return &gatedStore{
		iSnapshotRepo: store,
		entered:       make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
}

func (s *gatedStore) RemoveSnapshot(ctx context.Context, name string) error {
	s.entered <- struct{}{}
	<-s.release
	return s.iSnapshotRepo.RemoveSnapshot(ctx, name)
}

type testEnv struct {
	svc      *service
	pub      *fakePublisher
	resolver *fakeResolver

	mu    sync.Mutex
	sinks map[string]*fakeSink
}

func defaultTestConfig() *Config {
	return &Config{
		QueueLimit:     100,
		TickInterval:   time.Hour,
		ResolveTimeout: time.Second,
		PauseTimeout:   time.Hour,
	}
}

func newTestEnv(t *testing.T, cfg *Config, store iSnapshotRepo) *testEnv {
	t.Helper()

	env := &testEnv{
		pub:      newFakePublisher(),
		resolver: newFakeResolver(),
		sinks:    make(map[string]*fakeSink),
	}
	factory := func(room string) sink.Sink {
		env.mu.Lock()
		defer env.mu.Unlock()
		s := &fakeSink{}
		env.sinks[room] = s
		return s
	}

	env.svc = NewService(cfg, env.resolver, factory, env.pub, store, slog.Default())
	t.Cleanup(env.svc.Shutdown)

	return env
}

func (env *testEnv) sinkOf(room string) *fakeSink {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.sinks[room]
}

func song(id string, seconds int) domain.Song {
	return domain.Song{
		Platform: "qq",
		ID:       id,
		Title:    "Song " + id,
		Artist:   "Artist",
		Duration: seconds,
	}
}

func (env *testEnv) add(t *testing.T, room string, songs ...domain.Song) {
	t.Helper()
	for _, s := range songs {
		_, err := env.svc.AddToQueue(context.Background(), &AddToQueueParams{
			RoomName:    room,
			Song:        s,
			RequestedBy: "user-1",
		})
		require.NoError(t, err)
	}
}

func (env *testEnv) progress(t *testing.T, room string) ProgressResponse {
	t.Helper()
	p, err := env.svc.GetProgress(context.Background(), &RoomParams{RoomName: room})
	require.NoError(t, err)
	return p
}

func (env *testEnv) queue(t *testing.T, room string) QueueResponse {
	t.Helper()
	q, err := env.svc.GetQueue(context.Background(), &RoomParams{RoomName: room})
	require.NoError(t, err)
	return q
}

func (env *testEnv) waitState(t *testing.T, room string, state domain.PlaybackState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return env.progress(t, room).State == state
	}, 2*time.Second, 5*time.Millisecond, "room never reached %s", state)
}

func (env *testEnv) playing(t *testing.T, room string, index int) {
	t.Helper()
	require.NoError(t, env.svc.Play(context.Background(), &PlayParams{RoomName: room, Index: &index}))
	env.waitState(t, room, domain.StatePlaying)
}
