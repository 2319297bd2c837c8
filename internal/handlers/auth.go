package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"avenir-sync/internal/auth"
	"avenir-sync/internal/repositories"
)

// AuthHandler mints session tokens for seeded users. Credential checking
// lives in the bank's identity service; this backend only needs an identity
// to bind sessions to.
type AuthHandler struct {
	users  repositories.UserRepository
	tokens *auth.Tokens
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(users repositories.UserRepository, tokens *auth.Tokens) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

// Login issues a token for a known username.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	token, err := h.tokens.Mint(user.ID, user.Username, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mint token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
