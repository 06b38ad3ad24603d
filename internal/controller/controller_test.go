package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomtune/server/internal/catalog"
	"github.com/roomtune/server/internal/domain"
	"github.com/roomtune/server/internal/hub"
	"github.com/roomtune/server/internal/service/room"
	"github.com/roomtune/server/internal/sink/pacer"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.New(64, logger)
	resolver := catalog.ResolverFunc(func(_ context.Context, song domain.Song) (string, error) {
		return "https://cdn.example.com/" + song.ID + ".mp3", nil
	})
	svc := room.NewService(&room.Config{
		QueueLimit:     10,
		TickInterval:   time.Hour,
		ResolveTimeout: time.Second,
		PauseTimeout:   time.Hour,
	}, resolver, pacer.NewFactory(pacer.Config{Frame: 20 * time.Millisecond, Buffer: 200 * time.Millisecond}, logger), h, nil, logger)
	t.Cleanup(svc.Shutdown)

	srv := httptest.NewServer(NewController(svc, h, logger).GetMux())
	t.Cleanup(srv.Close)

	return srv
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Errors json.RawMessage `json:"errors"`
}

func doJSON(t *testing.T, method, url, body string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}

	return resp.StatusCode, env
}

const songJSON = `{"song":{"platform":"qq","id":"a","title":"Song A","artist":"X","duration":180},"requested_by":"user-1"}`

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRestPlaybackFlow(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1/rooms/lobby"

	status, env := doJSON(t, http.MethodPost, base+"/pause", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "failed to pause: room not found", env.Error)

	status, env = doJSON(t, http.MethodPost, base+"/queue", songJSON)
	require.Equal(t, http.StatusOK, status)
	var queue room.QueueResponse
	require.NoError(t, json.Unmarshal(env.Data, &queue))
	require.Len(t, queue.Queue, 1)
	assert.Equal(t, "a", queue.Queue[0].Song.ID)
	assert.Equal(t, "user-1", queue.Queue[0].RequestedBy)

	status, _ = doJSON(t, http.MethodPost, base+"/play", "")
	require.Equal(t, http.StatusOK, status)

	require.Eventually(t, func() bool {
		_, env := doJSON(t, http.MethodGet, base+"/progress", "")
		var p room.ProgressResponse
		require.NoError(t, json.Unmarshal(env.Data, &p))
		return p.State == domain.StatePlaying
	}, 2*time.Second, 10*time.Millisecond)

	status, env = doJSON(t, http.MethodPost, base+"/pause", "")
	require.Equal(t, http.StatusOK, status)
	var progress room.ProgressResponse
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	assert.Equal(t, domain.StatePaused, progress.State)
	assert.Equal(t, int64(180_000), progress.DurationMs)

	status, env = doJSON(t, http.MethodPost, base+"/pause", "")
	assert.Equal(t, http.StatusConflict, status)

	status, env = doJSON(t, http.MethodGet, base+"/status", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"connected":true,"is_playing":false}`, string(env.Data))

	status, env = doJSON(t, http.MethodPost, base+"/seek", `{"position_ms": 999999999}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	assert.Equal(t, int64(180_000), progress.PositionMs)

	status, env = doJSON(t, http.MethodPost, base+"/seek", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(env.Errors), "position_ms")

	status, _ = doJSON(t, http.MethodDelete, base+"/queue/5", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	status, _ = doJSON(t, http.MethodDelete, base+"/queue/x", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPost, base+"/stop", "")
	assert.Equal(t, http.StatusNoContent, status)

	status, env = doJSON(t, http.MethodGet, base+"/status", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"connected":false,"is_playing":false}`, string(env.Data))

	status, _ = doJSON(t, http.MethodPost, base+"/disconnected", "")
	assert.Equal(t, http.StatusNoContent, status)
}

func TestPlayExplicitIndex(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1/rooms/lobby"

	doJSON(t, http.MethodPost, base+"/queue", songJSON)
	doJSON(t, http.MethodPost, base+"/queue", strings.Replace(songJSON, `"id":"a"`, `"id":"b"`, 1))

	status, _ := doJSON(t, http.MethodPost, base+"/play", `{"index": 1}`)
	require.Equal(t, http.StatusOK, status)

	_, env := doJSON(t, http.MethodGet, base+"/queue", "")
	var queue room.QueueResponse
	require.NoError(t, json.Unmarshal(env.Data, &queue))
	require.NotNil(t, queue.CurrentIndex)
	assert.Equal(t, 1, *queue.CurrentIndex)

	status, _ = doJSON(t, http.MethodPost, base+"/play", `{"index": 7}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = doJSON(t, http.MethodPost, base+"/queue/clear", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, http.MethodPost, base+"/play", "")
	assert.Equal(t, http.StatusConflict, status)
}

func TestAddToQueueValidation(t *testing.T) {
	srv := newTestServer(t)

	status, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/rooms/lobby/queue", `{"requested_by":"u"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(env.Errors), "song")

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/rooms/lobby/queue", `{"song":`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, env = doJSON(t, http.MethodPost, srv.URL+"/api/v1/rooms/bad!room/queue", songJSON)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(env.Errors), "RoomName")
}

type frame struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == typ {
			return f
		}
	}
}

func TestWebsocketFlow(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?room=lobby"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	connected := readUntil(t, conn, "CONNECTED")
	assert.Contains(t, string(connected.Payload), "client_id")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "ADD_TO_QUEUE",
		"payload": map[string]any{
			"song":         map[string]any{"platform": "qq", "id": "a", "title": "Song A", "duration": 180},
			"requested_by": "user-1",
		},
	}))

	updated := readUntil(t, conn, domain.EventQueueUpdated)
	assert.Equal(t, "lobby", updated.Room)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "PLAY"}))
	play := readUntil(t, conn, domain.EventPlay)
	var payload domain.PlayPayload
	require.NoError(t, json.Unmarshal(play.Payload, &payload))
	assert.Equal(t, "https://cdn.example.com/a.mp3", payload.URL)
	assert.Equal(t, "a", payload.Song.ID)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "SEEK", "payload": map[string]any{"position_ms": 1000}}))
	seek := readUntil(t, conn, domain.EventSeek)
	assert.JSONEq(t, `{"position_ms":1000}`, string(seek.Payload))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "BOGUS"}))
	errFrame := readUntil(t, conn, "ERROR")
	assert.Contains(t, string(errFrame.Payload), "unknown message type")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "PAUSE", "payload": map[string]any{"room": "elsewhere"}}))
	errFrame = readUntil(t, conn, "ERROR")
	assert.Contains(t, string(errFrame.Payload), "room not found")
}

func TestErrorStatus(t *testing.T) {
	c := controller{}

	tests := []struct {
		err    error
		status int
	}{
		{room.ErrRoomNotFound, http.StatusNotFound},
		{room.ErrInvalidTransition, http.StatusConflict},
		{room.ErrEmptyQueue, http.StatusConflict},
		{room.ErrQueueLimitReached, http.StatusConflict},
		{room.ErrIndexOutOfRange, http.StatusUnprocessableEntity},
		{room.ErrSongUnavailable, http.StatusUnprocessableEntity},
		{fmt.Errorf("failed to add to queue: %w", room.ErrServiceClosed), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, c.errorStatus(tt.err))
		})
	}
}
