package transport

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"avenir-sync/internal/models"
)

// WSTransport talks to the backend realtime socket. Connection loss triggers
// bounded exponential reconnect; once the attempt ceiling is hit the
// transport stays degraded for the rest of the session and the fallback
// poller carries the feed alone.
type WSTransport struct {
	url          string
	baseDelay    time.Duration
	maxAttempts  int
	sendTimeout  time.Duration
	subs         *subscribers
	degraded     chan struct{}
	degradedOnce sync.Once

	mu        sync.Mutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	identity  Identity
	connected bool
	closed    bool
	acks      map[string]chan models.EventFrame
}

// WSOptions tune reconnect behavior.
type WSOptions struct {
	BaseDelay   time.Duration
	MaxAttempts int
	SendTimeout time.Duration
}

// NewWSTransport builds a websocket transport for the given ws:// URL
// (without the /ws path).
func NewWSTransport(url string, opts WSOptions) *WSTransport {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	return &WSTransport{
		url:         url + "/ws",
		baseDelay:   opts.BaseDelay,
		maxAttempts: opts.MaxAttempts,
		sendTimeout: opts.SendTimeout,
		subs:        newSubscribers(),
		degraded:    make(chan struct{}),
		acks:        make(map[string]chan models.EventFrame),
	}
}

// Connect opens the socket. Calling while connected is a no-op; failure to
// reach the server leaves the transport disconnected and starts the bounded
// retry loop in the background.
func (t *WSTransport) Connect(ctx context.Context, identity Identity) {
	t.mu.Lock()
	if t.connected || t.closed {
		t.mu.Unlock()
		return
	}
	t.identity = identity
	t.mu.Unlock()

	if t.dial(ctx) {
		return
	}
	go t.retry(ctx)
}

func (t *WSTransport) dial(ctx context.Context) bool {
	_, span := otel.Tracer("avenir-sync/transport").Start(ctx, "transport.dial")
	defer span.End()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url+"?token="+t.identity.Token, nil)
	if err != nil {
		log.Printf("transport dial failed: %v", err)
		return false
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return true
	}
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	t.subs.dispatch(models.EventFrame{Type: "connected"})
	go t.readLoop(ctx, conn)
	return true
}

// retry re-dials with doubling delay up to the attempt ceiling, then marks
// the transport permanently degraded. Retrying forever would be unbounded
// background work against a server that already said no.
func (t *WSTransport) retry(ctx context.Context) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = t.baseDelay * 64
	policy.Reset()

	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		select {
		case <-time.After(policy.NextBackOff()):
		case <-ctx.Done():
			return
		}

		t.mu.Lock()
		if t.closed || t.connected {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		if t.dial(ctx) {
			return
		}
	}
	t.markDegraded()
}

func (t *WSTransport) markDegraded() {
	t.degradedOnce.Do(func() {
		log.Printf("transport degraded: reconnect budget exhausted")
		close(t.degraded)
	})
}

func (t *WSTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			t.connected = false
			t.conn = nil
			closed := t.closed
			t.failAcksLocked()
			t.mu.Unlock()

			t.subs.dispatch(models.EventFrame{Type: "disconnected"})
			if !closed {
				go t.retry(ctx)
			}
			return
		}

		var ev models.EventFrame
		if err := json.Unmarshal(data, &ev); err != nil {
			// A malformed frame must not take the listener down.
			continue
		}

		if ev.Type == models.EventAck {
			t.mu.Lock()
			ch, ok := t.acks[ev.AckID]
			if ok {
				delete(t.acks, ev.AckID)
			}
			t.mu.Unlock()
			if ok {
				ch <- ev
			}
			continue
		}

		t.subs.dispatch(ev)
	}
}

func (t *WSTransport) failAcksLocked() {
	for id, ch := range t.acks {
		close(ch)
		delete(t.acks, id)
	}
}

// Send dispatches an action and waits for the server ack.
func (t *WSTransport) Send(ctx context.Context, action string, payload any) (models.EventFrame, error) {
	t.mu.Lock()
	if !t.connected || t.conn == nil {
		t.mu.Unlock()
		return models.EventFrame{}, ErrNotConnected
	}
	conn := t.conn

	body, err := json.Marshal(payload)
	if err != nil {
		t.mu.Unlock()
		return models.EventFrame{}, err
	}
	frame := models.ActionFrame{ID: uuid.NewString(), Action: action, Payload: body}
	ackCh := make(chan models.EventFrame, 1)
	t.acks[frame.ID] = ackCh
	t.mu.Unlock()

	data, err := json.Marshal(frame)
	if err != nil {
		t.dropAck(frame.ID)
		return models.EventFrame{}, err
	}

	t.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	t.writeMu.Unlock()
	if err != nil {
		t.dropAck(frame.ID)
		return models.EventFrame{}, err
	}

	timeout := time.NewTimer(t.sendTimeout)
	defer timeout.Stop()

	select {
	case ack, ok := <-ackCh:
		if !ok {
			return models.EventFrame{}, ErrNotConnected
		}
		if !ack.OK {
			return ack, &RejectedError{Reason: ack.Error}
		}
		return ack, nil
	case <-timeout.C:
		t.dropAck(frame.ID)
		return models.EventFrame{}, context.DeadlineExceeded
	case <-ctx.Done():
		t.dropAck(frame.ID)
		return models.EventFrame{}, ctx.Err()
	}
}

func (t *WSTransport) dropAck(id string) {
	t.mu.Lock()
	delete(t.acks, id)
	t.mu.Unlock()
}

// Disconnect tears the connection down and clears every subscription so
// remounts cannot leak callbacks.
func (t *WSTransport) Disconnect() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.connected = false
	t.failAcksLocked()
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	t.subs.clear()
}

func (t *WSTransport) Degraded() <-chan struct{} { return t.degraded }

func (t *WSTransport) OnMessage(fn func(models.Message)) func()          { return onMessage(t.subs, fn) }
func (t *WSTransport) OnHelpRequest(fn func(models.HelpRequest)) func()  { return onHelpRequest(t.subs, fn) }
func (t *WSTransport) OnHelpAccepted(fn func(models.Conversation)) func() { return onHelpAccepted(t.subs, fn) }
func (t *WSTransport) OnRequestTaken(fn func(models.Conversation)) func() { return onRequestTaken(t.subs, fn) }
func (t *WSTransport) OnNotification(fn func(models.Notification)) func() { return onNotification(t.subs, fn) }
func (t *WSTransport) OnConnected(fn func()) func()                      { return onConnected(t.subs, fn) }
func (t *WSTransport) OnDisconnected(fn func()) func()                   { return onDisconnected(t.subs, fn) }

var _ Transport = (*WSTransport)(nil)
