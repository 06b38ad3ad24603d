package room

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrSongUnavailable   = errors.New("song unavailable")
	ErrInvalidTransition = errors.New("command not allowed in current state")
	ErrEmptyQueue        = errors.New("queue is empty")
	ErrQueueLimitReached = errors.New("queue limit reached")
	ErrServiceClosed     = errors.New("service is shutting down")

	errRoomClosed = errors.New("room closed")
)
