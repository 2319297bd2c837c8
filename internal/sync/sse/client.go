package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"avenir-sync/internal/models"
)

// Client consumes the notification event stream. It is the push channel for
// users who only care about notifications; the read loop reconnects with
// exponential backoff until the context is cancelled.
type Client struct {
	url   string
	token string
	http  *http.Client
}

// New builds a stream client for the given http:// base URL.
func New(baseURL, token string) *Client {
	return &Client{
		url:   baseURL + "/notifications/stream",
		token: token,
		// No client timeout: the stream stays open until cancelled.
		http: &http.Client{},
	}
}

// Listen consumes the stream and invokes fn for every notification until the
// context is cancelled. Connection failures trigger backoff and reconnect.
func (c *Client) Listen(ctx context.Context, fn func(models.Notification)) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0

	for {
		started := time.Now()
		err := c.consume(ctx, fn)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("notification stream closed: %v", err)
		}
		if time.Since(started) > time.Minute {
			// The stream held for a while; start the backoff over.
			policy.Reset()
		}

		select {
		case <-time.After(policy.NextBackOff()):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) consume(ctx context.Context, fn func(models.Notification)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "notification" && data != "" {
				var n models.Notification
				if err := json.Unmarshal([]byte(data), &n); err == nil {
					fn(n)
				}
			}
			event, data = "", ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(line[len("data:"):])
		}
	}
	return scanner.Err()
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "stream rejected with status " + http.StatusText(e.code)
}
