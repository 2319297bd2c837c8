package handlers

import (
	"io"
	"sync"

	"github.com/gin-gonic/gin"

	"avenir-sync/internal/models"
	"avenir-sync/internal/observability"
)

// Broker fans created notifications out to per-user SSE subscribers.
type Broker struct {
	mu   sync.Mutex
	subs map[int]map[chan models.Notification]struct{}
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]map[chan models.Notification]struct{})}
}

// Publish delivers a notification to the owner's subscribers. Slow
// subscribers are skipped rather than blocking the caller.
func (b *Broker) Publish(n models.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[n.UserID] {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribe registers a stream for a user; cancel removes it.
func (b *Broker) Subscribe(userID int) (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, 16)
	b.mu.Lock()
	if _, ok := b.subs[userID]; !ok {
		b.subs[userID] = make(map[chan models.Notification]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subs, ok := b.subs[userID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subs, userID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Stream serves the SSE notification feed for the caller.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID := c.GetInt("userID")
	ch, cancel := h.broker.Subscribe(userID)
	defer cancel()

	observability.IncSSEActive()
	defer observability.DecSSEActive()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("notification", n)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
