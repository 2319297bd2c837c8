package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"avenir-sync/internal/service"
)

// NotificationHandler serves the notification feed.
type NotificationHandler struct {
	svc    *service.ChatService
	broker *Broker
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(svc *service.ChatService, broker *Broker) *NotificationHandler {
	return &NotificationHandler{svc: svc, broker: broker}
}

// ListNotifications returns the caller's notifications, optionally unread only.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID := c.GetInt("userID")
	unreadOnly := c.Query("unread") == "true"

	list, err := h.svc.Notifications(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkRead flags a single notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, err := strconv.Atoi(c.Param("notification_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	userID := c.GetInt("userID")
	if err := h.svc.MarkNotificationRead(c.Request.Context(), userID, notificationID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead flags every notification of the caller as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetInt("userID")
	if err := h.svc.MarkAllNotificationsRead(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notifications read"})
		return
	}
	c.Status(http.StatusNoContent)
}
