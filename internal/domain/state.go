package domain

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateLoading
	StatePlaying
	StatePaused
	StateError
)

func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether a queue item is selected for playback.
func (s PlaybackState) Active() bool {
	return s == StateLoading || s == StatePlaying || s == StatePaused
}

func (s PlaybackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PlaybackState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "loading":
		*s = StateLoading
	case "playing":
		*s = StatePlaying
	case "paused":
		*s = StatePaused
	case "error":
		*s = StateError
	default:
		return fmt.Errorf("unknown playback state %q", text)
	}
	return nil
}

func Clamp[T constraints.Integer](v, lo, hi T) T {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
