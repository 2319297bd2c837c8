package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"avenir-sync/internal/models"
	"avenir-sync/internal/sync/transport"
)

type trackedTransport struct {
	connects    int
	disconnects int
	identity    transport.Identity
}

func (f *trackedTransport) Connect(_ context.Context, id transport.Identity) {
	f.connects++
	f.identity = id
}
func (f *trackedTransport) Disconnect() { f.disconnects++ }
func (f *trackedTransport) Send(context.Context, string, any) (models.EventFrame, error) {
	return models.EventFrame{}, transport.ErrNotConnected
}
func (f *trackedTransport) OnMessage(func(models.Message)) func()           { return func() {} }
func (f *trackedTransport) OnHelpRequest(func(models.HelpRequest)) func()   { return func() {} }
func (f *trackedTransport) OnHelpAccepted(func(models.Conversation)) func() { return func() {} }
func (f *trackedTransport) OnRequestTaken(func(models.Conversation)) func() { return func() {} }
func (f *trackedTransport) OnNotification(func(models.Notification)) func() { return func() {} }
func (f *trackedTransport) OnConnected(func()) func()                       { return func() {} }
func (f *trackedTransport) OnDisconnected(func()) func()                    { return func() {} }
func (f *trackedTransport) Degraded() <-chan struct{}                       { return nil }

var _ transport.Transport = (*trackedTransport)(nil)

func trackingFactory() (Factory, *[]*trackedTransport) {
	created := []*trackedTransport{}
	factory := func() transport.Transport {
		tr := &trackedTransport{}
		created = append(created, tr)
		return tr
	}
	return factory, &created
}

func TestBindConnectsOnce(t *testing.T) {
	factory, created := trackingFactory()
	b := NewBinding(factory)

	id := transport.Identity{UserID: 1, Username: "camille"}
	b.Bind(context.Background(), id)
	b.Bind(context.Background(), id)

	require.Len(t, *created, 1)
	require.Equal(t, 1, (*created)[0].connects)

	bound, ok := b.Identity()
	require.True(t, ok)
	require.Equal(t, 1, bound.UserID)
}

func TestRebindReplacesSession(t *testing.T) {
	factory, created := trackingFactory()
	b := NewBinding(factory)

	b.Bind(context.Background(), transport.Identity{UserID: 1})
	b.Bind(context.Background(), transport.Identity{UserID: 2})

	require.Len(t, *created, 2)
	require.Equal(t, 1, (*created)[0].disconnects)
	require.Equal(t, 1, (*created)[1].connects)
	require.Equal(t, 0, (*created)[1].disconnects)

	bound, _ := b.Identity()
	require.Equal(t, 2, bound.UserID)
}

func TestUnbindDisconnects(t *testing.T) {
	factory, created := trackingFactory()
	b := NewBinding(factory)

	b.Bind(context.Background(), transport.Identity{UserID: 1})
	b.Unbind()
	b.Unbind()

	require.Equal(t, 1, (*created)[0].disconnects)
	_, ok := b.Current()
	require.False(t, ok)
}

func TestOnBindRunsBeforeConnect(t *testing.T) {
	factory, created := trackingFactory()
	b := NewBinding(factory)

	var connectsAtHook int
	b.OnBind(func(tr transport.Transport, id transport.Identity) {
		connectsAtHook = tr.(*trackedTransport).connects
		require.Equal(t, 3, id.UserID)
	})

	b.Bind(context.Background(), transport.Identity{UserID: 3})
	require.Equal(t, 0, connectsAtHook)
	require.Equal(t, 1, (*created)[0].connects)
}

func TestRebindRunsHooksAgain(t *testing.T) {
	factory, _ := trackingFactory()
	b := NewBinding(factory)

	calls := 0
	b.OnBind(func(transport.Transport, transport.Identity) { calls++ })

	b.Bind(context.Background(), transport.Identity{UserID: 1})
	b.Bind(context.Background(), transport.Identity{UserID: 2})
	require.Equal(t, 2, calls)
}
