package events_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/romshark/debouncify/internal/events"
	"github.com/romshark/debouncify/internal/log"
	"github.com/romshark/debouncify/internal/statetrack"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type watcherState struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Runs   uint64 `json:"runs"`
	Output string `json:"output"`
}

func newServer(t *testing.T, tracker *statetrack.Tracker) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(events.New(log.New(io.Discard, slog.LevelError), tracker))
	t.Cleanup(s.Close)
	return s
}

func TestEvents(t *testing.T) {
	tracker := statetrack.NewTracker("test", "lint")
	s := newServer(t, tracker)

	u := "ws" + strings.TrimPrefix(s.URL, "http") + events.PathEvents
	c, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer c.Close()

	read := func() []watcherState {
		t.Helper()
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		tp, msg, err := c.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, tp)
		var w []watcherState
		require.NoError(t, json.Unmarshal(msg, &w))
		return w
	}

	// Initial state is sent right away.
	require.Equal(t, []watcherState{
		{Name: "test", Status: "idle"},
		{Name: "lint", Status: "idle"},
	}, read())

	tracker.SetStatus(1, statetrack.StatusRunning)
	w := read()
	require.Equal(t, "running", w[1].Status)
	require.Equal(t, uint64(1), w[1].Runs)

	tracker.Finish(1, statetrack.StatusFailed, "boom", time.Millisecond)
	w = read()
	require.Equal(t, "failed", w[1].Status)
	require.Equal(t, "boom", w[1].Output)
	require.Equal(t, "idle", w[0].Status)
}

func TestEventsListenerRemovedOnDisconnect(t *testing.T) {
	tracker := statetrack.NewTracker("test")
	s := newServer(t, tracker)

	u := "ws" + strings.TrimPrefix(s.URL, "http") + events.PathEvents
	c, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool {
		return tracker.NumListeners() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool {
		return tracker.NumListeners() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestState(t *testing.T) {
	tracker := statetrack.NewTracker("test")
	tracker.SetStatus(0, statetrack.StatusPending)
	s := newServer(t, tracker)

	resp, err := http.Get(s.URL + events.PathState)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var w []watcherState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&w))
	require.Equal(t, []watcherState{{Name: "test", Status: "pending"}}, w)
}

func TestNotFound(t *testing.T) {
	s := newServer(t, statetrack.NewTracker())

	resp, err := http.Get(s.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp2, err := http.Post(s.URL+events.PathState, "text/plain", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}
