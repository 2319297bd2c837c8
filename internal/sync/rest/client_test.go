package rest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"avenir-sync/internal/auth"
	"avenir-sync/internal/models"
	"avenir-sync/internal/repositories"
	"avenir-sync/internal/server"
)

func startBackend(t *testing.T) (*Client, *repositories.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repositories.NewMemoryStore()
	srv := server.New(server.Deps{
		Conversations: store,
		Messages:      store,
		Notifications: store,
		Users:         store,
		Tokens:        auth.NewTokens("test-secret", time.Hour),
	})
	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)
	return New(ts.URL), store
}

func TestLoginAndSnapshotRoundTrip(t *testing.T) {
	client, store := startBackend(t)
	store.SeedUser("camille", models.RoleClient)
	ctx := context.Background()

	user, token, err := client.Login(ctx, "camille")
	require.NoError(t, err)
	require.Equal(t, "camille", user.Username)
	require.NotEmpty(t, token)
	client.SetToken(token)

	conv, msg, err := client.RequestHelp(ctx, "k1", "I lost my card")
	require.NoError(t, err)
	require.Equal(t, models.ConversationPending, conv.Status)
	require.Equal(t, "k1", msg.ClientKey)

	summaries, err := client.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, conv.ID, summaries[0].ID)

	msgs, err := client.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "I lost my card", msgs[0].Content)

	posted, err := client.PostMessage(ctx, conv.ID, "k2", "any update?")
	require.NoError(t, err)
	require.Equal(t, "k2", posted.ClientKey)

	require.NoError(t, client.MarkConversationRead(ctx, conv.ID))
}

func TestLoginUnknownUser(t *testing.T) {
	client, _ := startBackend(t)
	_, _, err := client.Login(context.Background(), "nobody")
	var status *StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, 401, status.Code)
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	client, store := startBackend(t)
	store.SeedUser("camille", models.RoleClient)

	_, err := client.Conversations(context.Background())
	var status *StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, 401, status.Code)
}

func TestFetchSyncConfigDefaults(t *testing.T) {
	client, store := startBackend(t)
	store.SeedUser("camille", models.RoleClient)
	ctx := context.Background()

	_, token, err := client.Login(ctx, "camille")
	require.NoError(t, err)
	client.SetToken(token)

	cfg, err := client.FetchSyncConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, 30, cfg.ConversationPollSeconds)
	require.Equal(t, 10, cfg.MessagePollSeconds)
	require.Equal(t, 45, cfg.NotificationPollSeconds)
}

func TestNotificationEndpoints(t *testing.T) {
	client, store := startBackend(t)
	user := store.SeedUser("camille", models.RoleClient)
	ctx := context.Background()

	_, token, err := client.Login(ctx, "camille")
	require.NoError(t, err)
	client.SetToken(token)

	_, err = store.CreateNotification(ctx, models.Notification{UserID: user.ID, Category: models.NotifyInfo, Title: "first"})
	require.NoError(t, err)
	second, err := store.CreateNotification(ctx, models.Notification{UserID: user.ID, Category: models.NotifyAlert, Title: "second"})
	require.NoError(t, err)

	list, err := client.Notifications(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, client.MarkNotificationRead(ctx, second.ID))
	unread, err := client.Notifications(ctx, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, "first", unread[0].Title)

	require.NoError(t, client.MarkAllNotificationsRead(ctx))
	unread, err = client.Notifications(ctx, true)
	require.NoError(t, err)
	require.Empty(t, unread)
}
