package hub

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu      sync.Mutex
	msgs    []string
	closed  bool
	block   chan struct{}
	failErr error
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	if messageType == websocket.TextMessage {
		c.msgs = append(c.msgs, string(data))
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestPublishOnlyToRoomSubscribers(t *testing.T) {
	h := New(16, slog.Default())
	a, b := &fakeConn{}, &fakeConn{}
	require.NoError(t, h.Register("a", a))
	require.NoError(t, h.Register("b", b))
	require.NoError(t, h.Subscribe("r1", "a"))
	require.NoError(t, h.Subscribe("r2", "b"))

	require.NoError(t, h.Publish("r1", map[string]int{"n": 1}))

	assert.Eventually(t, func() bool { return len(a.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(b.messages()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestPublishPreservesOrder(t *testing.T) {
	h := New(256, slog.Default())
	c := &fakeConn{}
	require.NoError(t, h.Register("c", c))
	require.NoError(t, h.Subscribe("room", "c"))

	for i := 0; i < 100; i++ {
		require.NoError(t, h.Publish("room", i))
	}

	require.Eventually(t, func() bool { return len(c.messages()) == 100 }, time.Second, 5*time.Millisecond)
	for i, m := range c.messages() {
		assert.Equal(t, strconv.Itoa(i), m)
	}
}

func TestDuplicateRegister(t *testing.T) {
	h := New(1, slog.Default())
	require.NoError(t, h.Register("a", &fakeConn{}))
	assert.ErrorIs(t, h.Register("a", &fakeConn{}), ErrAlreadyExists)
	assert.ErrorIs(t, h.Subscribe("room", "missing"), ErrNotFound)
}

func TestUnsubscribeAndUnregister(t *testing.T) {
	h := New(4, slog.Default())
	require.NoError(t, h.Register("a", &fakeConn{}))
	require.NoError(t, h.Subscribe("room", "a"))
	assert.True(t, h.IsSubscribed("room", "a"))

	require.NoError(t, h.Unsubscribe("room", "a"))
	assert.False(t, h.IsSubscribed("room", "a"))

	require.NoError(t, h.Subscribe("room", "a"))
	require.NoError(t, h.Unregister("a"))
	assert.Equal(t, 0, h.Subscribers("room"))
	assert.ErrorIs(t, h.Unregister("a"), ErrNotFound)
}

func TestCloseRoom(t *testing.T) {
	h := New(4, slog.Default())
	require.NoError(t, h.Register("a", &fakeConn{}))
	require.NoError(t, h.Register("b", &fakeConn{}))
	require.NoError(t, h.Subscribe("room", "a"))
	require.NoError(t, h.Subscribe("room", "b"))
	require.NoError(t, h.Subscribe("other", "b"))

	h.CloseRoom("room")
	assert.Equal(t, 0, h.Subscribers("room"))
	assert.True(t, h.IsSubscribed("other", "b"))
}

func TestSlowClientIsDropped(t *testing.T) {
	h := New(1, slog.Default())
	slow := &fakeConn{block: make(chan struct{})}
	defer close(slow.block)
	require.NoError(t, h.Register("slow", slow))
	require.NoError(t, h.Subscribe("room", "slow"))

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Publish("room", i))
	}

	assert.False(t, h.IsSubscribed("room", "slow"))
	assert.True(t, slow.isClosed())
}

func TestWriteErrorUnregisters(t *testing.T) {
	h := New(4, slog.Default())
	c := &fakeConn{failErr: errors.New("broken pipe")}
	require.NoError(t, h.Register("a", c))
	require.NoError(t, h.Subscribe("room", "a"))
	require.NoError(t, h.SendTo("a", "hi"))

	assert.Eventually(t, func() bool { return h.Subscribers("room") == 0 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, c.isClosed, time.Second, 5*time.Millisecond)
}
