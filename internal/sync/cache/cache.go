package cache

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"avenir-sync/internal/models"
)

// Cache is the client-held view of conversations, messages and
// notifications for one mounted view. It merges two inputs: full snapshots
// from the fallback poller and incremental push events from the transport.
// All entries are indexed by id; applying the same payload twice is a no-op
// and, when a snapshot and a push event disagree on the same id, the newer
// timestamp wins.
//
// The cache lives exactly as long as its view: Close makes every later
// mutation a no-op so late acks and stray poll results cannot resurrect it.
type Cache struct {
	mu     sync.Mutex
	closed bool
	selfID int

	conversations map[int]models.ConversationSummary
	messages      map[int]map[int]models.Message
	pending       map[string]models.Message
	notifications map[int]models.Notification

	// readMarkedAt records local optimistic mark-read actions so a stale
	// snapshot cannot bounce the unread count back up before the server
	// ack lands.
	readMarkedAt map[int]time.Time
}

// New creates a cache owned by the given user.
func New(selfID int) *Cache {
	return &Cache{
		selfID:        selfID,
		conversations: make(map[int]models.ConversationSummary),
		messages:      make(map[int]map[int]models.Message),
		pending:       make(map[string]models.Message),
		notifications: make(map[int]models.Notification),
		readMarkedAt:  make(map[int]time.Time),
	}
}

// Close tears the cache down; every mutation afterwards is a no-op.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// --- snapshots ---

// ApplyConversations merges a polled conversation snapshot. When complete is
// true, cached conversations absent from the snapshot are removed.
func (c *Cache) ApplyConversations(summaries []models.ConversationSummary, complete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	seen := make(map[int]struct{}, len(summaries))
	for _, incoming := range summaries {
		seen[incoming.ID] = struct{}{}
		existing, ok := c.conversations[incoming.ID]
		if ok && existing.UpdatedAt.After(incoming.UpdatedAt) {
			// A push event already delivered fresher state.
			continue
		}
		if markedAt, marked := c.readMarkedAt[incoming.ID]; marked {
			if incoming.LastMessage == nil || !incoming.LastMessage.CreatedAt.After(markedAt) {
				incoming.UnreadCount = 0
			}
		}
		c.conversations[incoming.ID] = incoming
	}

	if complete {
		for id := range c.conversations {
			if _, ok := seen[id]; !ok {
				delete(c.conversations, id)
			}
		}
	}
}

// ApplyMessages merges a polled message snapshot for one conversation.
func (c *Cache) ApplyMessages(conversationID int, msgs []models.Message, complete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	byID, ok := c.messages[conversationID]
	if !ok {
		byID = make(map[int]models.Message)
		c.messages[conversationID] = byID
	}

	seen := make(map[int]struct{}, len(msgs))
	for _, incoming := range msgs {
		seen[incoming.ID] = struct{}{}
		if existing, ok := byID[incoming.ID]; ok && existing.CreatedAt.After(incoming.CreatedAt) {
			continue
		}
		c.absorbMessageLocked(incoming)
	}

	if complete {
		for id := range byID {
			if _, ok := seen[id]; !ok {
				delete(byID, id)
			}
		}
	}
}

// ApplyNotifications merges a polled notification snapshot. complete must be
// false for unread-only fetches, which are partial by construction.
func (c *Cache) ApplyNotifications(list []models.Notification, complete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	seen := make(map[int]struct{}, len(list))
	for _, incoming := range list {
		seen[incoming.ID] = struct{}{}
		c.absorbNotificationLocked(incoming)
	}

	if complete {
		for id := range c.notifications {
			if _, ok := seen[id]; !ok {
				delete(c.notifications, id)
			}
		}
	}
}

// --- push events ---

// ApplyMessageEvent inserts or updates a pushed message. A pending entry
// with a matching client key is promoted by the confirmed copy.
func (c *Cache) ApplyMessageEvent(msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	_, dup := c.messages[msg.ConversationID][msg.ID]
	c.absorbMessageLocked(msg)

	if conv, ok := c.conversations[msg.ConversationID]; ok {
		if conv.LastMessage == nil || !conv.LastMessage.CreatedAt.After(msg.CreatedAt) {
			copied := msg
			conv.LastMessage = &copied
			if msg.CreatedAt.After(conv.UpdatedAt) {
				conv.UpdatedAt = msg.CreatedAt
			}
		}
		if !dup && msg.ReceiverID == c.selfID && !msg.Read {
			conv.UnreadCount++
		}
		c.conversations[msg.ConversationID] = conv
	}
}

// absorbMessageLocked stores a message by id, clearing any matching
// provisional entry. Duplicate identical payloads are no-ops.
func (c *Cache) absorbMessageLocked(msg models.Message) {
	byID, ok := c.messages[msg.ConversationID]
	if !ok {
		byID = make(map[int]models.Message)
		c.messages[msg.ConversationID] = byID
	}

	if msg.ClientKey != "" {
		delete(c.pending, msg.ClientKey)
	}

	existing, dup := byID[msg.ID]
	if dup {
		if existing.Read && !msg.Read {
			// Read state only moves forward locally.
			msg.Read = true
		}
		if existing.CreatedAt.After(msg.CreatedAt) {
			return
		}
	}
	byID[msg.ID] = msg
}

// ApplyConversationEvent merges a pushed conversation update under the
// timestamp tie-break.
func (c *Cache) ApplyConversationEvent(conv models.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	existing, ok := c.conversations[conv.ID]
	if ok && existing.UpdatedAt.After(conv.UpdatedAt) {
		return
	}

	summary := existing
	summary.Conversation = conv
	if !ok {
		summary = models.ConversationSummary{Conversation: conv}
	}
	c.conversations[conv.ID] = summary
}

// ApplyHelpRequestEvent records an incoming help request as a pending
// conversation (advisor view).
func (c *Cache) ApplyHelpRequestEvent(req models.HelpRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if existing, ok := c.conversations[req.ConversationID]; ok && existing.UpdatedAt.After(req.CreatedAt) {
		return
	}
	c.conversations[req.ConversationID] = models.ConversationSummary{
		Conversation: models.Conversation{
			ID:        req.ConversationID,
			ClientID:  req.RequesterID,
			Status:    models.ConversationPending,
			CreatedAt: req.CreatedAt,
			UpdatedAt: req.CreatedAt,
		},
		PeerName: req.RequesterName,
	}
}

// ApplyNotificationEvent inserts or updates a pushed notification.
func (c *Cache) ApplyNotificationEvent(n models.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.absorbNotificationLocked(n)
}

func (c *Cache) absorbNotificationLocked(incoming models.Notification) {
	existing, ok := c.notifications[incoming.ID]
	if ok {
		if existing.Read {
			// A read flag never reverts from client-side data.
			incoming.Read = true
		}
		if existing.CreatedAt.After(incoming.CreatedAt) {
			return
		}
		if notificationsEqual(existing, incoming) {
			return
		}
	}
	c.notifications[incoming.ID] = incoming
}

func notificationsEqual(a, b models.Notification) bool {
	return a.ID == b.ID &&
		a.UserID == b.UserID &&
		a.Category == b.Category &&
		a.Title == b.Title &&
		a.Body == b.Body &&
		a.Read == b.Read &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		bytes.Equal(a.Metadata, b.Metadata)
}

// --- optimistic entries ---

// InsertPending stores a provisional message keyed by its client key.
func (c *Cache) InsertPending(msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || msg.ClientKey == "" {
		return
	}
	c.pending[msg.ClientKey] = msg
}

// Promote replaces a provisional entry with the server-confirmed copy.
func (c *Cache) Promote(clientKey string, confirmed models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	delete(c.pending, clientKey)
	c.absorbMessageLocked(confirmed)
}

// Rollback removes a provisional entry and returns its content so the
// caller can restore the user's input.
func (c *Cache) Rollback(clientKey string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", false
	}
	msg, ok := c.pending[clientKey]
	if !ok {
		return "", false
	}
	delete(c.pending, clientKey)
	return msg.Content, true
}

// --- read state ---

// MarkConversationRead zeroes the unread count immediately, before any
// server acknowledgement.
func (c *Cache) MarkConversationRead(conversationID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.readMarkedAt[conversationID] = time.Now()
	if conv, ok := c.conversations[conversationID]; ok {
		conv.UnreadCount = 0
		c.conversations[conversationID] = conv
	}
	for id, msg := range c.messages[conversationID] {
		if msg.ReceiverID == c.selfID && !msg.Read {
			msg.Read = true
			c.messages[conversationID][id] = msg
		}
	}
}

// MarkNotificationRead flags a notification read locally; the flag never
// reverts afterwards.
func (c *Cache) MarkNotificationRead(notificationID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if n, ok := c.notifications[notificationID]; ok {
		n.Read = true
		c.notifications[notificationID] = n
	}
}

// MarkAllNotificationsRead flags every cached notification read.
func (c *Cache) MarkAllNotificationsRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for id, n := range c.notifications {
		n.Read = true
		c.notifications[id] = n
	}
}

// --- reads ---

// Conversations returns cached conversations, most recently updated first.
func (c *Cache) Conversations() []models.ConversationSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ConversationSummary, 0, len(c.conversations))
	for _, conv := range c.conversations {
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Conversation returns one cached conversation.
func (c *Cache) Conversation(id int) (models.ConversationSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[id]
	return conv, ok
}

// ActiveConversation returns the user's open (or, failing that, pending)
// conversation. The optimistic pipeline consults this at submit time to
// decide between a direct message and a help request.
func (c *Cache) ActiveConversation() (models.ConversationSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pending models.ConversationSummary
	havePending := false
	for _, conv := range c.conversations {
		if !conv.HasParticipant(c.selfID) {
			continue
		}
		switch conv.Status {
		case models.ConversationOpen:
			return conv, true
		case models.ConversationPending:
			if conv.ClientID == c.selfID {
				pending = conv
				havePending = true
			}
		}
	}
	return pending, havePending
}

// Messages returns the ordered history for a conversation, confirmed
// entries first, provisional entries appended in submit order.
func (c *Cache) Messages(conversationID int) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Message, 0, len(c.messages[conversationID]))
	for _, msg := range c.messages[conversationID] {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	provisional := make([]models.Message, 0, len(c.pending))
	for _, msg := range c.pending {
		if msg.ConversationID == conversationID || msg.ConversationID == 0 {
			provisional = append(provisional, msg)
		}
	}
	sort.Slice(provisional, func(i, j int) bool {
		return provisional[i].CreatedAt.Before(provisional[j].CreatedAt)
	})
	return append(out, provisional...)
}

// Notifications returns cached notifications, newest first.
func (c *Cache) Notifications() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Notification, 0, len(c.notifications))
	for _, n := range c.notifications {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// UnreadNotifications counts cached unread notifications.
func (c *Cache) UnreadNotifications() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, n := range c.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}
