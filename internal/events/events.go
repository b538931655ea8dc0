// Package events serves watcher status changes over a websocket feed.
package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/romshark/debouncify/internal/statetrack"

	"github.com/gorilla/websocket"
)

const (
	// PathEvents defines the path for the websocket events endpoint.
	PathEvents = "/events"

	// PathState defines the path for the plain JSON state endpoint.
	PathState = "/state"
)

type Server struct {
	log               *slog.Logger
	stateTracker      *statetrack.Tracker
	webSocketUpgrader websocket.Upgrader
}

func New(log *slog.Logger, stateTracker *statetrack.Tracker) *Server {
	return &Server{
		log:          log,
		stateTracker: stateTracker,
		webSocketUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Ignore CORS
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "expecting method GET", http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case PathEvents:
		s.handleEvents(w, r)
	case PathState:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.stateTracker.Snapshot())
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	c, err := s.webSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.log.Error("upgrading to websocket", "err", err)
		return
	}
	defer c.Close()

	// Buffered so that a change during a write isn't lost.
	notifyStateChange := make(chan struct{}, 1)
	s.stateTracker.AddListener(notifyStateChange)
	defer s.stateTracker.RemoveListener(notifyStateChange)

	// Detect the client going away by reading until an error occurs.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.NextReader(); err != nil {
				return
			}
		}
	}()

	// Send the current state right away.
	if !s.writeState(c) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-notifyStateChange:
			if !s.writeState(c) {
				return // Disconnect
			}
		}
	}
}

func (s *Server) writeState(c *websocket.Conn) (ok bool) {
	msg, err := json.Marshal(s.stateTracker.Snapshot())
	if err != nil {
		s.log.Error("marshaling state", "err", err)
		return false
	}
	return writeWSMsg(c, msg)
}

func writeWSMsg(c *websocket.Conn, msg []byte) (ok bool) {
	err := c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err != nil {
		return false
	}
	err = c.WriteMessage(websocket.TextMessage, msg)
	return err == nil
}
