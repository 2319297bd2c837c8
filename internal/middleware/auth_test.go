package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"avenir-sync/internal/auth"
)

func setupAuthRouter(tokens *auth.Tokens) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt("userID"), "role": c.GetString("role")})
	})
	return r
}

func TestAuthMiddlewareAcceptsBearerHeader(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	router := setupAuthRouter(tokens)

	signed, err := tokens.Mint(7, "camille", "client")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":7`)
}

func TestAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	router := setupAuthRouter(tokens)

	signed, err := tokens.Mint(7, "camille", "client")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me?token="+signed, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	router := setupAuthRouter(auth.NewTokens("secret", time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	router := setupAuthRouter(tokens)

	signed, err := tokens.Mint(7, "camille", "client")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token "+signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsForgedToken(t *testing.T) {
	router := setupAuthRouter(auth.NewTokens("secret", time.Hour))

	forged, err := auth.NewTokens("other", time.Hour).Mint(7, "camille", "client")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
