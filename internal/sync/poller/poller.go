package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"avenir-sync/internal/models"
	"avenir-sync/internal/observability"
	"avenir-sync/internal/sync/cache"
	"avenir-sync/internal/sync/rest"
)

// Intervals configure the three polling feeds.
type Intervals struct {
	Conversations time.Duration
	Messages      time.Duration
	Notifications time.Duration
}

// Defaults mirror the production feed cadence.
func (iv *Intervals) applyDefaults() {
	if iv.Conversations <= 0 {
		iv.Conversations = 30 * time.Second
	}
	if iv.Messages <= 0 {
		iv.Messages = 10 * time.Second
	}
	if iv.Notifications <= 0 {
		iv.Notifications = 45 * time.Second
	}
}

// Poller is the fallback convergence path. It refreshes the cache from REST
// snapshots on fixed intervals so state converges even when the realtime
// channel is down. Each feed runs independently; one failing fetch never
// blocks the others.
type Poller struct {
	client    *rest.Client
	cache     *cache.Cache
	intervals Intervals

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// New builds a poller feeding the given cache.
func New(client *rest.Client, c *cache.Cache, intervals Intervals) *Poller {
	intervals.applyDefaults()
	return &Poller{client: client, cache: c, intervals: intervals}
}

// Start launches the feeds. Each fires once immediately, then on its
// interval until the context is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	go p.run(ctx, "conversations", p.intervals.Conversations, p.pollConversations)
	go p.run(ctx, "messages", p.intervals.Messages, p.pollMessages)
	go p.run(ctx, "notifications", p.intervals.Notifications, p.pollNotifications)
}

// Stop halts all feeds. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.cancel()
	p.running = false
}

func (p *Poller) run(ctx context.Context, feed string, interval time.Duration, poll func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			observability.IncPollRun(feed, "error")
			log.Printf("poll %s failed: %v", feed, err)
		} else {
			observability.IncPollRun(feed, "ok")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) pollConversations(ctx context.Context) error {
	summaries, err := p.client.Conversations(ctx)
	if err != nil {
		return err
	}
	p.cache.ApplyConversations(summaries, true)
	return nil
}

// pollMessages refreshes history for every cached conversation. Histories
// are full snapshots, so entries deleted server-side drop out here.
func (p *Poller) pollMessages(ctx context.Context) error {
	var firstErr error
	for _, conv := range p.cache.Conversations() {
		if conv.Status == models.ConversationPending {
			continue
		}
		msgs, err := p.client.Messages(ctx, conv.ID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		p.cache.ApplyMessages(conv.ID, msgs, true)
	}
	return firstErr
}

func (p *Poller) pollNotifications(ctx context.Context) error {
	list, err := p.client.Notifications(ctx, false)
	if err != nil {
		return err
	}
	p.cache.ApplyNotifications(list, true)
	return nil
}
