package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"avenir-sync/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository abstracts notification persistence.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	ListNotifications(ctx context.Context, userID int, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID int, userID int) error
	MarkAllNotificationsRead(ctx context.Context, userID int) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, user_id, category, title, body, metadata, "read", created_at`

// CreateNotification stores a notification for a user.
func (r *NotificationRepo) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	var out models.Notification
	err := r.db.GetContext(ctx, &out,
		`INSERT INTO notifications (user_id, category, title, body, metadata)
         VALUES ($1, $2, $3, $4, $5) RETURNING `+notificationColumns,
		n.UserID, n.Category, n.Title, n.Body, n.Metadata)
	return out, err
}

// ListNotifications returns the user's notifications, newest first.
func (r *NotificationRepo) ListNotifications(ctx context.Context, userID int, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND "read" = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var list []models.Notification
	err := r.db.SelectContext(ctx, &list, query, userID)
	return list, err
}

// MarkNotificationRead flags a single notification as read for its owner.
func (r *NotificationRepo) MarkNotificationRead(ctx context.Context, notificationID int, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET "read" = TRUE WHERE id=$1 AND user_id=$2`, notificationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead flags every notification of the user as read.
func (r *NotificationRepo) MarkAllNotificationsRead(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET "read" = TRUE WHERE user_id=$1 AND "read" = FALSE`, userID)
	return err
}
