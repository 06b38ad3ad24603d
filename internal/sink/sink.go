package sink

import "context"

// Track describes what to deliver: the stream to read and where to start.
type Track struct {
	URL             string
	StartPositionMs int64
	DurationMs      int64
}

// Events must not be invoked while holding up Pause or Release, and at most
// one of them fires per Attach.
type Events struct {
	OnComplete func()
	OnError    func(error)
}

// Sink delivers audio frames for one room. Durations reported by
// PushedDurationMs and QueuedDurationMs are relative to the last Attach.
type Sink interface {
	Attach(ctx context.Context, track Track, events Events) error
	Pause()
	ClearBuffer()
	PushedDurationMs() int64
	QueuedDurationMs() int64
	Release()
}

type Factory func(room string) Sink
