package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"avenir-sync/internal/models"
	"avenir-sync/internal/service"
	"avenir-sync/internal/ws"
)

// MemoryTransport is the in-process implementation bound directly to a
// backend core. Actions run synchronously through the same dispatcher the
// websocket session handler uses, and pushed events arrive through a hub
// registration, so semantics match the network path exactly.
type MemoryTransport struct {
	hub  *ws.Hub
	svc  *service.ChatService
	subs *subscribers

	mu        sync.Mutex
	identity  Identity
	writer    *memWriter
	connected bool
	closed    bool

	degraded chan struct{}
}

// NewMemoryTransport builds an in-process transport against a backend core.
func NewMemoryTransport(hub *ws.Hub, svc *service.ChatService) *MemoryTransport {
	return &MemoryTransport{
		hub:      hub,
		svc:      svc,
		subs:     newSubscribers(),
		degraded: make(chan struct{}),
	}
}

// memWriter receives hub fan-out for the bound identity.
type memWriter struct {
	subs *subscribers
}

func (w *memWriter) WriteEvent(ev models.EventFrame) error {
	w.subs.dispatch(ev)
	return nil
}

func (w *memWriter) Close() error { return nil }

// Connect registers the session with the hub. Idempotent.
func (t *MemoryTransport) Connect(_ context.Context, identity Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected || t.closed {
		return
	}
	t.identity = identity
	t.writer = &memWriter{subs: t.subs}
	t.hub.Add(identity.UserID, t.writer, ws.ConnInfo{
		UserID:      identity.UserID,
		Role:        identity.Role,
		ConnectedAt: time.Now(),
	})
	t.connected = true
	go t.subs.dispatch(models.EventFrame{Type: "connected"})
}

// Send runs the action synchronously against the backend core.
func (t *MemoryTransport) Send(ctx context.Context, action string, payload any) (models.EventFrame, error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return models.EventFrame{}, ErrNotConnected
	}
	userID := t.identity.UserID
	t.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return models.EventFrame{}, err
	}
	frame := models.ActionFrame{ID: uuid.NewString(), Action: action, Payload: body}

	ack := ws.Dispatch(ctx, t.svc, userID, frame)
	if !ack.OK {
		return ack, &RejectedError{Reason: ack.Error}
	}
	return ack, nil
}

// Disconnect removes the hub registration and clears subscriptions.
func (t *MemoryTransport) Disconnect() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	connected := t.connected
	t.connected = false
	writer := t.writer
	userID := t.identity.UserID
	t.mu.Unlock()

	if connected && writer != nil {
		t.hub.Remove(userID, writer)
	}
	t.subs.dispatch(models.EventFrame{Type: "disconnected"})
	t.subs.clear()
}

func (t *MemoryTransport) Degraded() <-chan struct{} { return t.degraded }

func (t *MemoryTransport) OnMessage(fn func(models.Message)) func()          { return onMessage(t.subs, fn) }
func (t *MemoryTransport) OnHelpRequest(fn func(models.HelpRequest)) func()  { return onHelpRequest(t.subs, fn) }
func (t *MemoryTransport) OnHelpAccepted(fn func(models.Conversation)) func() { return onHelpAccepted(t.subs, fn) }
func (t *MemoryTransport) OnRequestTaken(fn func(models.Conversation)) func() { return onRequestTaken(t.subs, fn) }
func (t *MemoryTransport) OnNotification(fn func(models.Notification)) func() { return onNotification(t.subs, fn) }
func (t *MemoryTransport) OnConnected(fn func()) func()                      { return onConnected(t.subs, fn) }
func (t *MemoryTransport) OnDisconnected(fn func()) func()                   { return onDisconnected(t.subs, fn) }

var _ Transport = (*MemoryTransport)(nil)
