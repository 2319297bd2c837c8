package engine

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
	"avenir-sync/internal/sync/poller"
	"avenir-sync/internal/sync/transport"
)

type fixture struct {
	store *repositories.MemoryStore
	srv   *server.Server
	url   string
}

func startBackend(t *testing.T) *fixture {
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
	store.SeedUser("alice", models.RoleAdvisor)
	return &fixture{store: store, srv: srv, url: ts.URL}
}

func fastIntervals() poller.Intervals {
	return poller.Intervals{
		Conversations: 25 * time.Millisecond,
		Messages:      25 * time.Millisecond,
		Notifications: 25 * time.Millisecond,
	}
}

func (f *fixture) memoryEngine(t *testing.T, username string) *Engine {
	t.Helper()
	e := New(f.url, Options{
		Factory: func() transport.Transport {
			return transport.NewMemoryTransport(f.srv.Hub, f.srv.Svc)
		},
		Intervals: fastIntervals(),
	})
	require.NoError(t, e.Start(context.Background(), username))
	t.Cleanup(e.Close)
	return e
}

func TestHelpRequestLifecycle(t *testing.T) {
	f := startBackend(t)
	client := f.memoryEngine(t, "camille")
	advisor := f.memoryEngine(t, "alice")

	// No conversation exists yet, so the submit opens a help request.
	res, err := client.Submit(context.Background(), "Hello, I need help with my savings plan")
	require.NoError(t, err)
	require.NotNil(t, res.Conversation)
	convID := res.Conversation.ID

	// The advisor sees the pending request through push.
	require.Eventually(t, func() bool {
		conv, ok := advisor.Cache().Conversation(convID)
		return ok && conv.Status == models.ConversationPending
	}, 2*time.Second, 10*time.Millisecond)

	_, err = advisor.Accept(context.Background(), convID)
	require.NoError(t, err)

	// The client sees the conversation open and an assignment notification.
	require.Eventually(t, func() bool {
		conv, ok := client.Cache().Conversation(convID)
		return ok && conv.Status == models.ConversationOpen
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		for _, n := range client.Cache().Notifications() {
			if n.Category == models.NotifySuccess {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// The next submit goes into the now-open conversation.
	res, err = client.Submit(context.Background(), "Thanks for picking this up")
	require.NoError(t, err)
	require.Equal(t, convID, res.Message.ConversationID)

	require.Eventually(t, func() bool {
		msgs := advisor.Cache().Messages(convID)
		return len(msgs) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPushAndPollConvergeToSameState(t *testing.T) {
	f := startBackend(t)
	client := f.memoryEngine(t, "camille")

	res, err := client.Submit(context.Background(), "first message")
	require.NoError(t, err)
	convID := res.Conversation.ID

	// Push already delivered everything; let several poll cycles repeat the
	// same payloads on top.
	time.Sleep(150 * time.Millisecond)

	require.Len(t, client.Cache().Messages(convID), 1)
	convs := client.Cache().Conversations()
	require.Len(t, convs, 1)
	require.Equal(t, convID, convs[0].ID)
}

func TestDegradedTransportStillConverges(t *testing.T) {
	f := startBackend(t)

	e := New(f.url, Options{
		Factory: func() transport.Transport {
			// Dead realtime endpoint with a tiny reconnect budget.
			return transport.NewWSTransport("ws://127.0.0.1:1", transport.WSOptions{
				BaseDelay:   5 * time.Millisecond,
				MaxAttempts: 2,
			})
		},
		Intervals: fastIntervals(),
	})
	require.NoError(t, e.Start(context.Background(), "camille"))
	t.Cleanup(e.Close)

	require.Eventually(t, e.Degraded, 3*time.Second, 10*time.Millisecond)

	// Server-side state still reaches the cache through polling.
	user, err := f.store.GetUserByUsername(context.Background(), "camille")
	require.NoError(t, err)
	conv, _, err := f.srv.Svc.RequestHelp(context.Background(), user.ID, "k1", "created server-side")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := e.Cache().Conversation(conv.ID)
		return ok
	}, 3*time.Second, 10*time.Millisecond)
}

func TestNotificationReadStateMonotonic(t *testing.T) {
	f := startBackend(t)
	client := f.memoryEngine(t, "camille")
	ctx := context.Background()

	user, err := f.store.GetUserByUsername(ctx, "camille")
	require.NoError(t, err)
	n, err := f.srv.Svc.CreateNotification(ctx, models.Notification{
		UserID:   user.ID,
		Category: models.NotifyLoan,
		Title:    "Rate changed",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return client.Cache().UnreadNotifications() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.MarkNotificationRead(ctx, n.ID))
	require.Equal(t, 0, client.Cache().UnreadNotifications())

	// Poll cycles keep running; the read flag must not flip back.
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 0, client.Cache().UnreadNotifications())
}

func TestEngineCloseStopsMutations(t *testing.T) {
	f := startBackend(t)
	client := f.memoryEngine(t, "camille")
	ctx := context.Background()

	res, err := client.Submit(ctx, "before close")
	require.NoError(t, err)
	convID := res.Conversation.ID

	c := client.Cache()
	client.Close()

	user, err := f.store.GetUserByUsername(ctx, "camille")
	require.NoError(t, err)
	_, err = f.srv.Svc.SendMessage(ctx, user.ID, convID, "k9", "after close")
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	require.Len(t, c.Messages(convID), 1)
}

func TestStartTwiceFails(t *testing.T) {
	f := startBackend(t)
	e := f.memoryEngine(t, "camille")
	require.Error(t, e.Start(context.Background(), "camille"))
}

func TestStartUnknownUserFails(t *testing.T) {
	f := startBackend(t)
	e := New(f.url, Options{
		Factory: func() transport.Transport {
			return transport.NewMemoryTransport(f.srv.Hub, f.srv.Svc)
		},
		Intervals: fastIntervals(),
	})
	require.Error(t, e.Start(context.Background(), "nobody"))
}
