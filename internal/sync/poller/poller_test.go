package poller

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
	"avenir-sync/internal/sync/cache"
	"avenir-sync/internal/sync/rest"
)

type fixture struct {
	store *repositories.MemoryStore
	srv   *server.Server
	rest  *rest.Client
	user  models.User
}

func startFixture(t *testing.T) *fixture {
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

	store.SeedUser("camille", models.RoleClient)
	client := rest.New(ts.URL)
	user, token, err := client.Login(context.Background(), "camille")
	require.NoError(t, err)
	client.SetToken(token)

	return &fixture{store: store, srv: srv, rest: client, user: user}
}

func fastIntervals() Intervals {
	return Intervals{
		Conversations: 20 * time.Millisecond,
		Messages:      20 * time.Millisecond,
		Notifications: 20 * time.Millisecond,
	}
}

func TestPollerConvergesWithoutPush(t *testing.T) {
	f := startFixture(t)
	ctx := context.Background()

	// State created entirely server-side, no realtime channel involved.
	conv, _, err := f.srv.Svc.RequestHelp(ctx, f.user.ID, "k1", "need help")
	require.NoError(t, err)
	_, err = f.store.CreateNotification(ctx, models.Notification{UserID: f.user.ID, Category: models.NotifyInfo, Title: "welcome"})
	require.NoError(t, err)

	c := cache.New(f.user.ID)
	p := New(f.rest, c, fastIntervals())
	p.Start(ctx)
	defer p.Stop()

	require.Eventually(t, func() bool {
		_, ok := c.Conversation(conv.ID)
		return ok && len(c.Notifications()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		msgs := c.Messages(conv.ID)
		return len(msgs) == 1 && msgs[0].Content == "need help"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPollerPicksUpLaterChanges(t *testing.T) {
	f := startFixture(t)
	ctx := context.Background()

	c := cache.New(f.user.ID)
	p := New(f.rest, c, fastIntervals())
	p.Start(ctx)
	defer p.Stop()

	require.Eventually(t, func() bool {
		return len(c.Conversations()) == 0
	}, time.Second, 10*time.Millisecond)

	conv, _, err := f.srv.Svc.RequestHelp(ctx, f.user.ID, "k1", "later")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := c.Conversation(conv.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPollerStopIsIdempotent(t *testing.T) {
	f := startFixture(t)
	c := cache.New(f.user.ID)
	p := New(f.rest, c, fastIntervals())

	p.Start(context.Background())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	f := startFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	c := cache.New(f.user.ID)
	p := New(f.rest, c, fastIntervals())
	p.Start(ctx)
	cancel()

	// A conversation created after cancellation never shows up.
	conv, _, err := f.srv.Svc.RequestHelp(context.Background(), f.user.ID, "k1", "too late")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	_, ok := c.Conversation(conv.ID)
	require.False(t, ok)
}
