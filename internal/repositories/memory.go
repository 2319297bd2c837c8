package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"avenir-sync/internal/models"
)

// MemoryStore is an in-memory implementation of every repository interface.
// It backs the server when no database is configured and serves as the
// constructed fake backend in tests: create one per test, seed it, throw it
// away. Nothing is shared between instances.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[int]models.Conversation
	messages      map[int]models.Message
	notifications map[int]models.Notification
	users         map[int]models.User
	nextConvID    int
	nextMsgID     int
	nextNotifID   int
	nextUserID    int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.conversations = make(map[int]models.Conversation)
	s.messages = make(map[int]models.Message)
	s.notifications = make(map[int]models.Notification)
	s.users = make(map[int]models.User)
	s.nextConvID = 1
	s.nextMsgID = 1
	s.nextNotifID = 1
	s.nextUserID = 1
}

// Reset drops all state, keeping the store usable.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// SeedUser inserts a user with a fixed id and returns it.
func (s *MemoryStore) SeedUser(username, role string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := models.User{ID: s.nextUserID, Username: username, Role: role}
	s.nextUserID++
	s.users[user.ID] = user
	return user
}

// CreateHelpConversation creates a pending conversation awaiting an advisor.
func (s *MemoryStore) CreateHelpConversation(_ context.Context, clientID int) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	conv := models.Conversation{
		ID:        s.nextConvID,
		ClientID:  clientID,
		Status:    models.ConversationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextConvID++
	s.conversations[conv.ID] = conv
	return conv, nil
}

// AcceptConversation assigns an advisor to a pending conversation.
func (s *MemoryStore) AcceptConversation(_ context.Context, conversationID int, advisorID int) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok || conv.Status != models.ConversationPending {
		return models.Conversation{}, ErrConversationNotFound
	}
	conv.AdvisorID = advisorID
	conv.Status = models.ConversationOpen
	conv.UpdatedAt = time.Now().UTC()
	s.conversations[conversationID] = conv
	return conv, nil
}

// TransferConversation reassigns an open conversation to another advisor.
func (s *MemoryStore) TransferConversation(_ context.Context, conversationID int, newAdvisorID int) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok || conv.Status != models.ConversationOpen {
		return models.Conversation{}, ErrConversationNotFound
	}
	conv.AdvisorID = newAdvisorID
	conv.UpdatedAt = time.Now().UTC()
	s.conversations[conversationID] = conv
	return conv, nil
}

// GetConversation fetches a conversation by id.
func (s *MemoryStore) GetConversation(_ context.Context, conversationID int) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// ListConversations returns conversations where the user participates.
func (s *MemoryStore) ListConversations(_ context.Context, userID int) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var convs []models.Conversation
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			convs = append(convs, conv)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].UpdatedAt.After(convs[j].UpdatedAt) })
	return convs, nil
}

// PendingConversations returns conversations not yet claimed by an advisor.
func (s *MemoryStore) PendingConversations(_ context.Context) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var convs []models.Conversation
	for _, conv := range s.conversations {
		if conv.Status == models.ConversationPending {
			convs = append(convs, conv)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].CreatedAt.Before(convs[j].CreatedAt) })
	return convs, nil
}

// CreateMessage stores a message and returns the server copy.
func (s *MemoryStore) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = s.nextMsgID
	s.nextMsgID++
	msg.Read = false
	msg.CreatedAt = time.Now().UTC()
	s.messages[msg.ID] = msg
	if conv, ok := s.conversations[msg.ConversationID]; ok {
		conv.UpdatedAt = msg.CreatedAt
		s.conversations[conv.ID] = conv
	}
	return msg, nil
}

// ListMessages returns ordered messages for a conversation.
func (s *MemoryStore) ListMessages(_ context.Context, conversationID int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var msgs []models.Message
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// LastMessage returns the newest message of a conversation, or nil.
func (s *MemoryStore) LastMessage(ctx context.Context, conversationID int) (*models.Message, error) {
	msgs, err := s.ListMessages(ctx, conversationID)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	last := msgs[len(msgs)-1]
	return &last, nil
}

// UnreadCount counts messages addressed to the user not yet read.
func (s *MemoryStore) UnreadCount(_ context.Context, conversationID int, userID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID && msg.ReceiverID == userID && !msg.Read {
			count++
		}
	}
	return count, nil
}

// MarkConversationRead flags every message addressed to the user as read.
func (s *MemoryStore) MarkConversationRead(_ context.Context, conversationID int, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, msg := range s.messages {
		if msg.ConversationID == conversationID && msg.ReceiverID == userID && !msg.Read {
			msg.Read = true
			s.messages[id] = msg
		}
	}
	return nil
}

// CreateNotification stores a notification for a user.
func (s *MemoryStore) CreateNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.nextNotifID
	s.nextNotifID++
	n.Read = false
	n.CreatedAt = time.Now().UTC()
	s.notifications[n.ID] = n
	return n, nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *MemoryStore) ListNotifications(_ context.Context, userID int, unreadOnly bool) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Notification
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// MarkNotificationRead flags a single notification as read for its owner.
func (s *MemoryStore) MarkNotificationRead(_ context.Context, notificationID int, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notificationID]
	if !ok || n.UserID != userID {
		return ErrNotificationNotFound
	}
	n.Read = true
	s.notifications[notificationID] = n
	return nil
}

// MarkAllNotificationsRead flags every notification of the user as read.
func (s *MemoryStore) MarkAllNotificationsRead(_ context.Context, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifications[id] = n
		}
	}
	return nil
}

// GetUser fetches a user by id.
func (s *MemoryStore) GetUser(_ context.Context, userID int) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

// GetUserByUsername fetches a user by username.
func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

// BulkUsers fetches multiple users at once.
func (s *MemoryStore) BulkUsers(_ context.Context, ids []int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

// CreateUser inserts a user.
func (s *MemoryStore) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.users {
		if existing.Username == user.Username {
			existing.Role = user.Role
			s.users[id] = existing
			return existing, nil
		}
	}
	user.ID = s.nextUserID
	s.nextUserID++
	s.users[user.ID] = user
	return user, nil
}

var _ ConversationRepository = (*MemoryStore)(nil)
var _ MessageRepository = (*MemoryStore)(nil)
var _ NotificationRepository = (*MemoryStore)(nil)
var _ UserRepository = (*MemoryStore)(nil)
