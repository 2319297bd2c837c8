package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"avenir-sync/internal/models"
)

func TestHelpConversationLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	client := store.SeedUser("camille", models.RoleClient)
	advisor := store.SeedUser("alice", models.RoleAdvisor)

	conv, err := store.CreateHelpConversation(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, models.ConversationPending, conv.Status)
	require.Zero(t, conv.AdvisorID)

	pending, err := store.PendingConversations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	accepted, err := store.AcceptConversation(ctx, conv.ID, advisor.ID)
	require.NoError(t, err)
	require.Equal(t, models.ConversationOpen, accepted.Status)
	require.Equal(t, advisor.ID, accepted.AdvisorID)

	// Accepting twice fails; the request is gone.
	_, err = store.AcceptConversation(ctx, conv.ID, advisor.ID)
	require.ErrorIs(t, err, ErrConversationNotFound)

	pending, err = store.PendingConversations(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestTransferRequiresOpenConversation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	client := store.SeedUser("camille", models.RoleClient)
	store.SeedUser("alice", models.RoleAdvisor)
	other := store.SeedUser("bob", models.RoleAdvisor)

	conv, err := store.CreateHelpConversation(ctx, client.ID)
	require.NoError(t, err)

	_, err = store.TransferConversation(ctx, conv.ID, other.ID)
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMessagesKeepClientKeyAndUpdateConversation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	client := store.SeedUser("camille", models.RoleClient)
	advisor := store.SeedUser("alice", models.RoleAdvisor)

	conv, err := store.CreateHelpConversation(ctx, client.ID)
	require.NoError(t, err)
	before := conv.UpdatedAt

	msg, err := store.CreateMessage(ctx, models.Message{
		ClientKey:      "k1",
		ConversationID: conv.ID,
		SenderID:       client.ID,
		ReceiverID:     advisor.ID,
		Content:        "hello",
	})
	require.NoError(t, err)
	require.Equal(t, "k1", msg.ClientKey)
	require.False(t, msg.Read)

	updated, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.False(t, updated.UpdatedAt.Before(before))

	last, err := store.LastMessage(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, msg.ID, last.ID)

	empty, err := store.LastMessage(ctx, 999)
	require.NoError(t, err)
	require.Nil(t, empty)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	client := store.SeedUser("camille", models.RoleClient)
	advisor := store.SeedUser("alice", models.RoleAdvisor)

	conv, err := store.CreateHelpConversation(ctx, client.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = store.CreateMessage(ctx, models.Message{
			ConversationID: conv.ID,
			SenderID:       advisor.ID,
			ReceiverID:     client.ID,
			Content:        "ping",
		})
		require.NoError(t, err)
	}

	count, err := store.UnreadCount(ctx, conv.ID, client.ID)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// The sender has nothing unread.
	count, err = store.UnreadCount(ctx, conv.ID, advisor.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, store.MarkConversationRead(ctx, conv.ID, client.ID))
	count, err = store.UnreadCount(ctx, conv.ID, client.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestNotificationOwnership(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	owner := store.SeedUser("camille", models.RoleClient)
	stranger := store.SeedUser("bob", models.RoleClient)

	n, err := store.CreateNotification(ctx, models.Notification{UserID: owner.ID, Category: models.NotifyInfo, Title: "t"})
	require.NoError(t, err)

	err = store.MarkNotificationRead(ctx, n.ID, stranger.ID)
	require.ErrorIs(t, err, ErrNotificationNotFound)

	require.NoError(t, store.MarkNotificationRead(ctx, n.ID, owner.ID))
	unread, err := store.ListNotifications(ctx, owner.ID, true)
	require.NoError(t, err)
	require.Empty(t, unread)
}

func TestCreateUserUpserts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.CreateUser(ctx, models.User{Username: "camille", Role: models.RoleClient})
	require.NoError(t, err)
	second, err := store.CreateUser(ctx, models.User{Username: "camille", Role: models.RoleAdvisor})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, models.RoleAdvisor, second.Role)
}

func TestResetClearsState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	user := store.SeedUser("camille", models.RoleClient)
	_, err := store.CreateHelpConversation(ctx, user.ID)
	require.NoError(t, err)

	store.Reset()

	_, err = store.GetUser(ctx, user.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
	convs, err := store.ListConversations(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, convs)

	// Ids start over after a reset.
	again := store.SeedUser("camille", models.RoleClient)
	require.Equal(t, 1, again.ID)
}
