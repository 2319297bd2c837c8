package session

import (
	"context"
	"sync"

	"avenir-sync/internal/sync/transport"
)

// Factory produces a fresh transport for each bound session. Transports are
// single-use: Disconnect is terminal, so rebinding always starts from a new
// instance.
type Factory func() transport.Transport

// Binding owns the transport lifecycle. It is the only caller of Connect
// and Disconnect, which keeps the invariant of at most one live session per
// authenticated identity in one place. An identity change tears the old
// session down before the new one comes up.
type Binding struct {
	factory Factory

	mu        sync.Mutex
	transport transport.Transport
	identity  transport.Identity
	bound     bool
	onBind    []func(t transport.Transport, id transport.Identity)
}

// NewBinding builds a Binding around a transport factory.
func NewBinding(factory Factory) *Binding {
	return &Binding{factory: factory}
}

// OnBind registers a hook invoked with each fresh transport before it
// connects, so subscribers are in place when the first event arrives.
func (b *Binding) OnBind(fn func(t transport.Transport, id transport.Identity)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onBind = append(b.onBind, fn)
}

// Bind attaches the session to an identity. Binding the already-bound
// identity is a no-op; a different identity replaces the session.
func (b *Binding) Bind(ctx context.Context, identity transport.Identity) {
	b.mu.Lock()
	if b.bound && b.identity.UserID == identity.UserID {
		b.mu.Unlock()
		return
	}
	old := b.transport
	wasBound := b.bound

	t := b.factory()
	b.transport = t
	b.identity = identity
	b.bound = true
	hooks := make([]func(transport.Transport, transport.Identity), len(b.onBind))
	copy(hooks, b.onBind)
	b.mu.Unlock()

	if wasBound && old != nil {
		old.Disconnect()
	}
	for _, fn := range hooks {
		fn(t, identity)
	}
	t.Connect(ctx, identity)
}

// Unbind tears the session down. Idempotent.
func (b *Binding) Unbind() {
	b.mu.Lock()
	if !b.bound {
		b.mu.Unlock()
		return
	}
	t := b.transport
	b.transport = nil
	b.bound = false
	b.identity = transport.Identity{}
	b.mu.Unlock()

	if t != nil {
		t.Disconnect()
	}
}

// Current returns the live transport, if any.
func (b *Binding) Current() (transport.Transport, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transport, b.bound
}

// Identity returns the bound identity, if any.
func (b *Binding) Identity() (transport.Identity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identity, b.bound
}
