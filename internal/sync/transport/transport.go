package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"avenir-sync/internal/models"
)

// ErrNotConnected is returned by Send when no live connection exists.
var ErrNotConnected = errors.New("transport not connected")

// RejectedError wraps a server-side rejection of an action.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("action rejected: %s", e.Reason)
}

// Identity binds a transport session to an authenticated user.
type Identity struct {
	UserID   int
	Username string
	Role     string
	Token    string
}

// Transport is the realtime channel abstraction. Exactly one implementation
// is chosen at construction time; everything downstream is implementation
// blind. Connect is idempotent and swallows connection failures into a
// disconnected state, Disconnect is safe to call repeatedly and clears all
// subscriptions.
type Transport interface {
	Connect(ctx context.Context, identity Identity)
	Disconnect()
	Send(ctx context.Context, action string, payload any) (models.EventFrame, error)

	OnMessage(fn func(models.Message)) func()
	OnHelpRequest(fn func(models.HelpRequest)) func()
	OnHelpAccepted(fn func(models.Conversation)) func()
	OnRequestTaken(fn func(models.Conversation)) func()
	OnNotification(fn func(models.Notification)) func()
	OnConnected(fn func()) func()
	OnDisconnected(fn func()) func()

	// Degraded is closed once the transport has exhausted its reconnect
	// budget and will not recover for this session.
	Degraded() <-chan struct{}
}

type subscriber struct {
	id int
	fn func(models.EventFrame)
}

// subscribers keeps callbacks per event type in registration order.
type subscribers struct {
	mu     sync.Mutex
	nextID int
	byType map[string][]subscriber
}

func newSubscribers() *subscribers {
	return &subscribers{byType: make(map[string][]subscriber)}
}

func (s *subscribers) add(eventType string, fn func(models.EventFrame)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.byType[eventType] = append(s.byType[eventType], subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.byType[eventType]
		for i, sub := range subs {
			if sub.id == id {
				s.byType[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

func (s *subscribers) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byType = make(map[string][]subscriber)
}

// dispatch fans an event out to its subscribers in registration order.
// Malformed events (missing the entity their type requires) are dropped so
// one bad payload cannot take the listeners down.
func (s *subscribers) dispatch(ev models.EventFrame) {
	if !normalize(&ev) {
		return
	}

	s.mu.Lock()
	subs := make([]subscriber, len(s.byType[ev.Type]))
	copy(subs, s.byType[ev.Type])
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}

// normalize validates the event shape and fills optional fields with defined
// fallbacks so downstream code never branches on absence.
func normalize(ev *models.EventFrame) bool {
	switch ev.Type {
	case models.EventNewMessage:
		return ev.Message != nil
	case models.EventHelpRequest:
		if ev.HelpRequest == nil {
			return false
		}
		if ev.HelpRequest.RequesterName == "" {
			ev.HelpRequest.RequesterName = "Client #" + strconv.Itoa(ev.HelpRequest.RequesterID)
		}
		if ev.HelpRequest.Status == "" {
			ev.HelpRequest.Status = models.ConversationPending
		}
		return true
	case models.EventHelpAccepted, models.EventRequestTaken:
		return ev.Conversation != nil
	case models.EventNotification:
		if ev.Notification == nil {
			return false
		}
		if ev.Notification.Category == "" {
			ev.Notification.Category = models.NotifyInfo
		}
		return true
	case "connected", "disconnected":
		return true
	default:
		return false
	}
}

// Helper wiring shared by implementations.

func onMessage(s *subscribers, fn func(models.Message)) func() {
	return s.add(models.EventNewMessage, func(ev models.EventFrame) { fn(*ev.Message) })
}

func onHelpRequest(s *subscribers, fn func(models.HelpRequest)) func() {
	return s.add(models.EventHelpRequest, func(ev models.EventFrame) { fn(*ev.HelpRequest) })
}

func onHelpAccepted(s *subscribers, fn func(models.Conversation)) func() {
	return s.add(models.EventHelpAccepted, func(ev models.EventFrame) { fn(*ev.Conversation) })
}

func onRequestTaken(s *subscribers, fn func(models.Conversation)) func() {
	return s.add(models.EventRequestTaken, func(ev models.EventFrame) { fn(*ev.Conversation) })
}

func onNotification(s *subscribers, fn func(models.Notification)) func() {
	return s.add(models.EventNotification, func(ev models.EventFrame) { fn(*ev.Notification) })
}

func onConnected(s *subscribers, fn func()) func() {
	return s.add("connected", func(models.EventFrame) { fn() })
}

func onDisconnected(s *subscribers, fn func()) func() {
	return s.add("disconnected", func(models.EventFrame) { fn() })
}
