package service

import (
	"context"
	"errors"
	"fmt"

	"avenir-sync/internal/models"
	"avenir-sync/internal/repositories"
)

var (
	ErrNotParticipant     = errors.New("not a conversation participant")
	ErrConversationClosed = errors.New("conversation is closed")
	ErrForbidden          = errors.New("operation not allowed for role")
)

// EventSink receives domain events for fan-out to live sessions.
type EventSink interface {
	SendToUser(userID int, ev models.EventFrame)
	BroadcastToAdvisors(ev models.EventFrame)
}

// NotificationStream receives created notifications for server-push streams.
type NotificationStream interface {
	Publish(n models.Notification)
}

// ChatService owns the conversation workflow: help requests, assignment,
// messaging, read state and the notifications those transitions produce.
// REST handlers and realtime sessions both route through it.
type ChatService struct {
	convRepo  repositories.ConversationRepository
	msgRepo   repositories.MessageRepository
	notifRepo repositories.NotificationRepository
	userRepo  repositories.UserRepository
	sink      EventSink
	stream    NotificationStream
}

// NewChatService builds a ChatService. sink and stream may be nil.
func NewChatService(
	convRepo repositories.ConversationRepository,
	msgRepo repositories.MessageRepository,
	notifRepo repositories.NotificationRepository,
	userRepo repositories.UserRepository,
	sink EventSink,
	stream NotificationStream,
) *ChatService {
	return &ChatService{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		notifRepo: notifRepo,
		userRepo:  userRepo,
		sink:      sink,
		stream:    stream,
	}
}

// RequestHelp opens a pending conversation holding the first message and
// announces it to connected advisors.
func (s *ChatService) RequestHelp(ctx context.Context, requesterID int, clientKey, content string) (models.Conversation, models.Message, error) {
	conv, err := s.convRepo.CreateHelpConversation(ctx, requesterID)
	if err != nil {
		return models.Conversation{}, models.Message{}, fmt.Errorf("create help conversation: %w", err)
	}

	msg, err := s.msgRepo.CreateMessage(ctx, models.Message{
		ClientKey:      clientKey,
		ConversationID: conv.ID,
		SenderID:       requesterID,
		Content:        content,
	})
	if err != nil {
		return models.Conversation{}, models.Message{}, fmt.Errorf("store help message: %w", err)
	}

	requesterName := ""
	if requester, err := s.userRepo.GetUser(ctx, requesterID); err == nil {
		requesterName = requester.Username
	}

	if s.sink != nil {
		s.sink.BroadcastToAdvisors(models.EventFrame{
			Type: models.EventHelpRequest,
			HelpRequest: &models.HelpRequest{
				ConversationID: conv.ID,
				RequesterID:    requesterID,
				RequesterName:  requesterName,
				Content:        content,
				Status:         models.ConversationPending,
				CreatedAt:      conv.CreatedAt,
			},
		})
	}
	return conv, msg, nil
}

// AcceptHelp assigns the advisor to a pending conversation, informs the
// requester and withdraws the request from other advisors.
func (s *ChatService) AcceptHelp(ctx context.Context, advisorID int, conversationID int) (models.Conversation, error) {
	advisor, err := s.userRepo.GetUser(ctx, advisorID)
	if err != nil {
		return models.Conversation{}, err
	}
	if advisor.Role != models.RoleAdvisor {
		return models.Conversation{}, ErrForbidden
	}

	conv, err := s.convRepo.AcceptConversation(ctx, conversationID, advisorID)
	if err != nil {
		return models.Conversation{}, err
	}

	if s.sink != nil {
		s.sink.SendToUser(conv.ClientID, models.EventFrame{
			Type:         models.EventHelpAccepted,
			Conversation: &conv,
		})
		s.sink.BroadcastToAdvisors(models.EventFrame{
			Type:         models.EventRequestTaken,
			Conversation: &conv,
		})
	}

	_, _ = s.CreateNotification(ctx, models.Notification{
		UserID:   conv.ClientID,
		Category: models.NotifySuccess,
		Title:    "Advisor assigned",
		Body:     fmt.Sprintf("%s joined your conversation", advisor.Username),
	})
	return conv, nil
}

// Transfer reassigns an open conversation to another advisor.
func (s *ChatService) Transfer(ctx context.Context, advisorID int, conversationID int, newAdvisorID int, reason string) (models.Conversation, error) {
	current, err := s.convRepo.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if current.AdvisorID != advisorID {
		return models.Conversation{}, ErrForbidden
	}

	newAdvisor, err := s.userRepo.GetUser(ctx, newAdvisorID)
	if err != nil {
		return models.Conversation{}, err
	}
	if newAdvisor.Role != models.RoleAdvisor {
		return models.Conversation{}, ErrForbidden
	}

	conv, err := s.convRepo.TransferConversation(ctx, conversationID, newAdvisorID)
	if err != nil {
		return models.Conversation{}, err
	}

	if s.sink != nil {
		s.sink.SendToUser(conv.ClientID, models.EventFrame{
			Type:         models.EventHelpAccepted,
			Conversation: &conv,
		})
		s.sink.SendToUser(newAdvisorID, models.EventFrame{
			Type:         models.EventHelpAccepted,
			Conversation: &conv,
		})
	}

	body := fmt.Sprintf("Your conversation was transferred to %s", newAdvisor.Username)
	if reason != "" {
		body = fmt.Sprintf("%s: %s", body, reason)
	}
	_, _ = s.CreateNotification(ctx, models.Notification{
		UserID:   conv.ClientID,
		Category: models.NotifyInfo,
		Title:    "Conversation transferred",
		Body:     body,
	})
	return conv, nil
}

// SendMessage stores a message in an open conversation and pushes it to both
// participants' sessions.
func (s *ChatService) SendMessage(ctx context.Context, senderID int, conversationID int, clientKey, content string) (models.Message, error) {
	conv, err := s.convRepo.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if !conv.HasParticipant(senderID) {
		return models.Message{}, ErrNotParticipant
	}
	if conv.Status == models.ConversationClosed {
		return models.Message{}, ErrConversationClosed
	}

	msg, err := s.msgRepo.CreateMessage(ctx, models.Message{
		ClientKey:      clientKey,
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     conv.Peer(senderID),
		Content:        content,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}

	if s.sink != nil {
		event := models.EventFrame{Type: models.EventNewMessage, Message: &msg}
		if msg.ReceiverID != 0 {
			s.sink.SendToUser(msg.ReceiverID, event)
		}
		s.sink.SendToUser(senderID, event)
	}
	return msg, nil
}

// MarkConversationRead zeroes the caller's unread count for a conversation.
func (s *ChatService) MarkConversationRead(ctx context.Context, userID int, conversationID int) error {
	conv, err := s.convRepo.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return s.msgRepo.MarkConversationRead(ctx, conversationID, userID)
}

// Messages returns the ordered history of a conversation for a participant.
func (s *ChatService) Messages(ctx context.Context, userID int, conversationID int) ([]models.Message, error) {
	conv, err := s.convRepo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return s.msgRepo.ListMessages(ctx, conversationID)
}

// Summaries returns the user's conversations decorated with peer name,
// unread count and last-message preview. Advisors additionally see pending
// help requests.
func (s *ChatService) Summaries(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	convs, err := s.convRepo.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user, err := s.userRepo.GetUser(ctx, userID); err == nil && user.Role == models.RoleAdvisor {
		pending, err := s.convRepo.PendingConversations(ctx)
		if err != nil {
			return nil, err
		}
		for _, conv := range pending {
			if !conv.HasParticipant(userID) {
				convs = append(convs, conv)
			}
		}
	}

	peerIDs := make([]int, 0, len(convs))
	seen := map[int]struct{}{}
	for _, conv := range convs {
		peer := conv.Peer(userID)
		if peer == 0 {
			continue
		}
		if _, ok := seen[peer]; !ok {
			seen[peer] = struct{}{}
			peerIDs = append(peerIDs, peer)
		}
	}

	users, err := s.userRepo.BulkUsers(ctx, peerIDs)
	if err != nil {
		return nil, fmt.Errorf("load peers: %w", err)
	}
	nameByID := map[int]string{}
	for _, u := range users {
		nameByID[u.ID] = u.Username
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		unread, err := s.msgRepo.UnreadCount(ctx, conv.ID, userID)
		if err != nil {
			return nil, err
		}
		last, err := s.msgRepo.LastMessage(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.ConversationSummary{
			Conversation: conv,
			PeerName:     nameByID[conv.Peer(userID)],
			UnreadCount:  unread,
			LastMessage:  last,
		})
	}
	return summaries, nil
}
