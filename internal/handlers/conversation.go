package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"avenir-sync/internal/repositories"
	"avenir-sync/internal/service"
	"avenir-sync/internal/telemetry"
)

// ConversationHandler serves conversation endpoints.
type ConversationHandler struct {
	svc     *service.ChatService
	emitter *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(svc *service.ChatService, emitter *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{svc: svc, emitter: emitter}
}

// ListConversations returns the conversations visible to the caller.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	summaries, err := h.svc.Summaries(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// RequestHelp opens a pending conversation carrying the first message.
func (h *ConversationHandler) RequestHelp(c *gin.Context) {
	var req struct {
		Content   string `json:"content" binding:"required"`
		ClientKey string `json:"client_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	conv, msg, err := h.svc.RequestHelp(c.Request.Context(), userID, req.ClientKey, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create help request"})
		return
	}

	h.audit(c, "INFO", "help request created")
	c.JSON(http.StatusCreated, gin.H{"conversation": conv, "message": msg})
}

// AcceptConversation assigns the calling advisor to a pending conversation.
func (h *ConversationHandler) AcceptConversation(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	conv, err := h.svc.AcceptHelp(c.Request.Context(), userID, conversationID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	h.audit(c, "INFO", "help request accepted")
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// TransferConversation reassigns the conversation to another advisor.
func (h *ConversationHandler) TransferConversation(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		NewAdvisorID int    `json:"new_advisor_id" binding:"required"`
		Reason       string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	conv, err := h.svc.Transfer(c.Request.Context(), userID, conversationID, req.NewAdvisorID, req.Reason)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	h.audit(c, "INFO", "conversation transferred")
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// GetMessages returns the ordered history of a conversation.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	msgs, err := h.svc.Messages(c.Request.Context(), userID, conversationID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message and broadcasts it to live sessions.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Content   string `json:"content" binding:"required"`
		ClientKey string `json:"client_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.svc.SendMessage(c.Request.Context(), userID, conversationID, req.ClientKey, req.Content)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead zeroes the caller's unread count for the conversation.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.svc.MarkConversationRead(c.Request.Context(), userID, conversationID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ConversationHandler) audit(c *gin.Context, level, text string) {
	if h.emitter == nil {
		return
	}
	h.emitter.Emit(c.Request.Context(), level, text, requestIDFromContext(c), auditUserID(c))
}

func conversationIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrConversationNotFound),
		errors.Is(err, repositories.ErrNotificationNotFound),
		errors.Is(err, repositories.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotParticipant), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrConversationClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
