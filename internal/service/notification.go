package service

import (
	"context"
	"fmt"

	"avenir-sync/internal/models"
)

// CreateNotification persists a notification and pushes it to the owner's
// live sessions and SSE streams.
func (s *ChatService) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.Category == "" {
		n.Category = models.NotifyInfo
	}
	out, err := s.notifRepo.CreateNotification(ctx, n)
	if err != nil {
		return models.Notification{}, fmt.Errorf("store notification: %w", err)
	}

	if s.sink != nil {
		s.sink.SendToUser(out.UserID, models.EventFrame{
			Type:         models.EventNotification,
			Notification: &out,
		})
	}
	if s.stream != nil {
		s.stream.Publish(out)
	}
	return out, nil
}

// Notifications lists a user's notifications.
func (s *ChatService) Notifications(ctx context.Context, userID int, unreadOnly bool) ([]models.Notification, error) {
	return s.notifRepo.ListNotifications(ctx, userID, unreadOnly)
}

// MarkNotificationRead flags one notification as read.
func (s *ChatService) MarkNotificationRead(ctx context.Context, userID int, notificationID int) error {
	return s.notifRepo.MarkNotificationRead(ctx, notificationID, userID)
}

// MarkAllNotificationsRead flags all of the user's notifications as read.
func (s *ChatService) MarkAllNotificationsRead(ctx context.Context, userID int) error {
	return s.notifRepo.MarkAllNotificationsRead(ctx, userID)
}
