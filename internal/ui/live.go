package ui

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miguelemosreverte/otbr-web/internal/protocol"
	"github.com/miguelemosreverte/otbr-web/internal/store"
	"github.com/miguelemosreverte/otbr-web/internal/topology"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // The dashboard is served from the same host
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// handleLive streams every new graph to the browser. Clients may send
// {"rloc16":"0x0400"} to change the selected node.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates := s.poller.Subscribe()
	defer s.poller.Unsubscribe(updates)

	if s.metrics != nil {
		s.metrics.LiveClients.Inc()
		defer s.metrics.LiveClients.Dec()
	}

	done := make(chan struct{})
	go s.readLive(conn, done)

	if g := s.tracker.Current(); g != nil {
		if err := writeGraph(conn, g); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case g, ok := <-updates:
			if !ok {
				return
			}
			if err := writeGraph(conn, g); err != nil {
				s.logger.Debug("Live client dropped: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLive handles selection requests until the connection closes.
func (s *Server) readLive(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req protocol.SelectParams
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		if err := s.selectNode(req.Rloc16); err != nil {
			s.logger.Debug("Live select %q: %v", req.Rloc16, err)
			continue
		}
		s.poller.Publish()
	}
}

func writeGraph(conn *websocket.Conn, g *topology.Graph) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(g)
}

// handleLiveLogs sends the last ?tail entries (default 20) and then streams
// new log entries as they are written. level and component filter both.
func (s *Server) handleLiveLogs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "storage not available", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	tail := 20
	if v := q.Get("tail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid tail", http.StatusBadRequest)
			return
		}
		tail = n
	}
	levels := splitList(strings.ToUpper(q.Get("level")))
	components := splitList(q.Get("component"))

	// Subscribe before reading the backlog so nothing written in between is lost.
	entries := s.store.SubscribeLogs()
	defer s.store.UnsubscribeLogs(entries)

	var backlog []*store.LogEntry
	if tail > 0 {
		var err error
		if backlog, err = s.store.Tail(tail, levels, components); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go drainReads(conn, done)

	var lastID int64
	for i := len(backlog) - 1; i >= 0; i-- {
		if err := writeLogEntry(conn, backlog[i]); err != nil {
			return
		}
		lastID = backlog[i].ID
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			if e.ID <= lastID || !matchesFilter(e, levels, components) {
				continue
			}
			if err := writeLogEntry(conn, e); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func matchesFilter(e *store.LogEntry, levels, components []string) bool {
	if len(levels) > 0 && !slices.Contains(levels, e.Level) {
		return false
	}
	if len(components) > 0 && !slices.Contains(components, e.Component) {
		return false
	}
	return true
}

// drainReads keeps pong handling alive on a write-only connection.
func drainReads(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writeLogEntry(conn *websocket.Conn, e *store.LogEntry) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(protocol.LogEntry{
		ID:        e.ID,
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Level:     e.Level,
		Component: e.Component,
		Message:   e.Message,
		Fields:    e.Fields,
	})
}
