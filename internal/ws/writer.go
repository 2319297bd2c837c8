package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"avenir-sync/internal/models"
)

// EventWriter delivers event frames to one attached client. The hub fans out
// through this interface so websocket connections and in-process sessions
// register the same way.
type EventWriter interface {
	WriteEvent(ev models.EventFrame) error
	Close() error
}

// connWriter wraps a websocket connection with a write lock; acks from the
// read loop and hub broadcasts would otherwise interleave writes.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newConnWriter(conn *websocket.Conn) *connWriter {
	return &connWriter{conn: conn}
}

func (w *connWriter) WriteEvent(ev models.EventFrame) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *connWriter) Close() error {
	return w.conn.Close()
}
