package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/visit-trip-linker/internal/models"
)

// RecordEvent is the message pushed to live subscribers for every record.
type RecordEvent struct {
	RunID  string             `json:"run_id"`
	Record models.MatchRecord `json:"record"`
}

// WSSession represents a connected subscriber.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(v)
}

// WSHub fans match records out to websocket subscribers.
type WSHub struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	logger   *slog.Logger
}

func NewWSHub(logger *slog.Logger) *WSHub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WSHub{sessions: make(map[string]*WSSession), logger: logger}
}

// Add registers conn under id, closing any previous connection with that id.
func (h *WSHub) Add(id string, conn *websocket.Conn) {
	h.mu.Lock()
	prev := h.sessions[id]
	h.sessions[id] = &WSSession{conn: conn}
	h.mu.Unlock()
	if prev != nil {
		_ = prev.conn.Close()
	}
}

func (h *WSHub) Remove(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ok {
		_ = s.conn.Close()
	}
}

// RemoveConn drops id only while it is still bound to conn, so a stale
// reader cannot unregister a newer connection under the same id.
func (h *WSHub) RemoveConn(id string, conn *websocket.Conn) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok && s.conn == conn {
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *WSHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast sends every record to every subscriber and drops subscribers
// whose connection fails. It returns the number of subscribers reached.
func (h *WSHub) Broadcast(runID string, records []models.MatchRecord) int {
	h.mu.RLock()
	targets := make(map[string]*WSSession, len(h.sessions))
	for id, s := range h.sessions {
		targets[id] = s
	}
	h.mu.RUnlock()
	return h.deliver(targets, runID, records)
}

// deliver sends to a snapshot of sessions. A failed session is dropped only
// if it is still the one registered, since the subscriber may have
// reconnected after the snapshot was taken.
func (h *WSHub) deliver(targets map[string]*WSSession, runID string, records []models.MatchRecord) int {
	reached := 0
	for id, s := range targets {
		ok := true
		for _, r := range records {
			if err := s.Send(RecordEvent{RunID: runID, Record: r}); err != nil {
				h.logger.Warn("ws send failed, dropping subscriber", "subscriber", id, "error", err)
				h.RemoveConn(id, s.conn)
				ok = false
				break
			}
		}
		if ok {
			reached++
		}
	}
	return reached
}
