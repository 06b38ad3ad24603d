package domain

import (
	"errors"
)

var (
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrQueueLimitReached = errors.New("queue limit reached")
)

// NoIndex marks that no queue item is selected.
const NoIndex = -1

// Queue is the ordered list of a single room. It keeps current index
// bookkeeping but never decides playback transitions itself.
type Queue struct {
	list    []QueueItem
	current int
	limit   int
}

// NewQueue creates an empty queue. A limit below 1 disables the limit.
func NewQueue(limit int) *Queue {
	return &Queue{
		list:    make([]QueueItem, 0),
		current: NoIndex,
		limit:   limit,
	}
}

func (q Queue) AsList() []QueueItem {
	list := make([]QueueItem, len(q.list))
	copy(list, q.list)
	return list
}

func (q Queue) Length() int {
	return len(q.list)
}

func (q Queue) IsEmpty() bool {
	return len(q.list) == 0
}

func (q Queue) CurrentIndex() int {
	return q.current
}

// Current returns the selected item, or false when nothing is selected.
func (q Queue) Current() (QueueItem, bool) {
	if q.current == NoIndex {
		return QueueItem{}, false
	}
	return q.list[q.current], true
}

func (q Queue) At(index int) (QueueItem, error) {
	if index < 0 || index >= len(q.list) {
		return QueueItem{}, ErrIndexOutOfRange
	}
	return q.list[index], nil
}

// Add appends the item and leaves the current index untouched.
func (q *Queue) Add(item QueueItem) (int, error) {
	if q.limit > 0 && len(q.list) >= q.limit {
		return 0, ErrQueueLimitReached
	}

	q.list = append(q.list, item)
	return len(q.list) - 1, nil
}

// RemoveAt removes the item at index. Items before the current one shift the
// current index down so the selected item keeps its identity. Removing the
// selected item keeps the index on the slot, or clears the selection when the
// slot no longer exists.
func (q *Queue) RemoveAt(index int) (QueueItem, error) {
	if index < 0 || index >= len(q.list) {
		return QueueItem{}, ErrIndexOutOfRange
	}

	removed := q.list[index]
	q.list = append(q.list[:index], q.list[index+1:]...)

	switch {
	case q.current == NoIndex:
	case index < q.current:
		q.current--
	case index == q.current && q.current >= len(q.list):
		q.current = NoIndex
	}

	return removed, nil
}

func (q *Queue) Select(index int) error {
	if index < 0 || index >= len(q.list) {
		return ErrIndexOutOfRange
	}

	q.current = index
	return nil
}

func (q *Queue) Deselect() {
	q.current = NoIndex
}

func (q *Queue) Clear() {
	q.list = make([]QueueItem, 0)
	q.current = NoIndex
}
