package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"avenir-sync/internal/models"
	"avenir-sync/internal/sync/cache"
	"avenir-sync/internal/sync/pipeline"
	"avenir-sync/internal/sync/poller"
	"avenir-sync/internal/sync/rest"
	"avenir-sync/internal/sync/session"
	"avenir-sync/internal/sync/sse"
	"avenir-sync/internal/sync/transport"
)

// Engine is the embeddable sync layer: one instance per authenticated user,
// composing the realtime transport, the reconciliation cache, the optimistic
// pipeline and the fallback poller. Push keeps the cache fresh; polling
// guarantees convergence when push is down.
type Engine struct {
	baseURL string
	client  *rest.Client
	binding *session.Binding
	opts    Options

	mu       sync.Mutex
	cache    *cache.Cache
	pipeline *pipeline.Pipeline
	poller   *poller.Poller
	identity transport.Identity
	cancel   context.CancelFunc
	started  bool

	degraded atomic.Bool
}

// Options tune the engine.
type Options struct {
	// Factory builds the transport for each session. Defaults to a
	// websocket transport against BaseURL.
	Factory session.Factory

	// Intervals configure the fallback poller feeds.
	Intervals poller.Intervals

	// NotificationStream additionally consumes the server-sent notification
	// stream. Useful when the chosen transport does not carry notification
	// pushes, or as a second feed for notification-only surfaces.
	NotificationStream bool
}

// New builds an engine against a backend base URL.
func New(baseURL string, opts Options) *Engine {
	if opts.Factory == nil {
		wsURL := "ws" + baseURL[len("http"):]
		opts.Factory = func() transport.Transport {
			return transport.NewWSTransport(wsURL, transport.WSOptions{})
		}
	}
	e := &Engine{
		baseURL: baseURL,
		client:  rest.New(baseURL),
		opts:    opts,
	}
	e.binding = session.NewBinding(e.buildTransport)
	e.binding.OnBind(e.wire)
	return e
}

func (e *Engine) buildTransport() transport.Transport {
	return e.opts.Factory()
}

// wire attaches the cache to a fresh transport's event feed.
func (e *Engine) wire(t transport.Transport, _ transport.Identity) {
	e.mu.Lock()
	c := e.cache
	e.mu.Unlock()
	if c == nil {
		return
	}

	t.OnMessage(c.ApplyMessageEvent)
	t.OnHelpRequest(c.ApplyHelpRequestEvent)
	t.OnHelpAccepted(c.ApplyConversationEvent)
	t.OnRequestTaken(c.ApplyConversationEvent)
	t.OnNotification(c.ApplyNotificationEvent)

	go func() {
		<-t.Degraded()
		e.degraded.Store(true)
		log.Printf("sync engine degraded, polling carries the feed")
	}()
}

// Start authenticates and brings the sync layer up. It returns once the
// session is bound and the poller is running; the first snapshots arrive
// asynchronously.
func (e *Engine) Start(ctx context.Context, username string) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.mu.Unlock()

	user, token, err := e.client.Login(ctx, username)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	e.client.SetToken(token)

	identity := transport.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Token:    token,
	}

	intervals := e.opts.Intervals
	if intervals == (poller.Intervals{}) {
		// No local override; adopt the cadence the server advertises.
		if cfg, err := e.client.FetchSyncConfig(ctx); err == nil {
			intervals = poller.Intervals{
				Conversations: time.Duration(cfg.ConversationPollSeconds) * time.Second,
				Messages:      time.Duration(cfg.MessagePollSeconds) * time.Second,
				Notifications: time.Duration(cfg.NotificationPollSeconds) * time.Second,
			}
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.identity = identity
	e.cache = cache.New(user.ID)
	e.poller = poller.New(e.client, e.cache, intervals)
	e.cancel = cancel
	e.started = true
	e.mu.Unlock()

	e.binding.Bind(ctx, identity)

	e.mu.Lock()
	t, _ := e.binding.Current()
	e.pipeline = pipeline.New(t, e.cache, user.ID)
	e.poller.Start(runCtx)
	c := e.cache
	e.mu.Unlock()

	if e.opts.NotificationStream {
		go sse.New(e.baseURL, token).Listen(runCtx, c.ApplyNotificationEvent)
	}
	return nil
}

// Close tears the engine down: poller stopped, session unbound, cache
// closed so late events cannot mutate it.
func (e *Engine) Close() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	c := e.cache
	p := e.poller
	cancel := e.cancel
	e.mu.Unlock()

	if p != nil {
		p.Stop()
	}
	if cancel != nil {
		cancel()
	}
	e.binding.Unbind()
	if c != nil {
		c.Close()
	}
}

// Degraded reports whether the realtime channel gave up for this session.
func (e *Engine) Degraded() bool { return e.degraded.Load() }

// Cache exposes the reconciliation cache for reads.
func (e *Engine) Cache() *cache.Cache {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache
}

// Identity returns the authenticated user this engine is bound to.
func (e *Engine) Identity() transport.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

// Submit sends content optimistically; see pipeline.Pipeline.Submit.
func (e *Engine) Submit(ctx context.Context, content string) (pipeline.Result, error) {
	p := e.currentPipeline()
	if p == nil {
		return pipeline.Result{}, fmt.Errorf("engine not started")
	}
	return p.Submit(ctx, content)
}

// MarkConversationRead zeroes the unread count locally and server-side.
func (e *Engine) MarkConversationRead(ctx context.Context, conversationID int) error {
	p := e.currentPipeline()
	if p == nil {
		return fmt.Errorf("engine not started")
	}
	return p.MarkConversationRead(ctx, conversationID)
}

// Accept assigns the bound advisor to a pending help request.
func (e *Engine) Accept(ctx context.Context, conversationID int) (models.Conversation, error) {
	p := e.currentPipeline()
	if p == nil {
		return models.Conversation{}, fmt.Errorf("engine not started")
	}
	return p.Accept(ctx, conversationID)
}

// Transfer hands a conversation to another advisor.
func (e *Engine) Transfer(ctx context.Context, conversationID, newAdvisorID int, reason string) (models.Conversation, error) {
	p := e.currentPipeline()
	if p == nil {
		return models.Conversation{}, fmt.Errorf("engine not started")
	}
	return p.Transfer(ctx, conversationID, newAdvisorID, reason)
}

// MarkNotificationRead flags a notification read locally first, then
// server-side.
func (e *Engine) MarkNotificationRead(ctx context.Context, notificationID int) error {
	c := e.Cache()
	if c == nil {
		return fmt.Errorf("engine not started")
	}
	c.MarkNotificationRead(notificationID)
	return e.client.MarkNotificationRead(ctx, notificationID)
}

// MarkAllNotificationsRead flags every notification read locally first,
// then server-side.
func (e *Engine) MarkAllNotificationsRead(ctx context.Context) error {
	c := e.Cache()
	if c == nil {
		return fmt.Errorf("engine not started")
	}
	c.MarkAllNotificationsRead()
	return e.client.MarkAllNotificationsRead(ctx)
}

func (e *Engine) currentPipeline() *pipeline.Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline
}
