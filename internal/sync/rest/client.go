package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"avenir-sync/internal/models"
)

// Client fetches snapshots over the REST surface. The fallback poller uses
// it to converge state when the realtime channel is down, and the session
// layer uses it for authentication.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a snapshot client for the given http:// base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) { c.token = token }

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Login exchanges a username for a session token.
func (c *Client) Login(ctx context.Context, username string) (models.User, string, error) {
	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"username": username}, &resp)
	if err != nil {
		return models.User{}, "", err
	}
	return resp.User, resp.Token, nil
}

// SyncConfig is the server-advertised fallback polling cadence.
type SyncConfig struct {
	ConversationPollSeconds int `json:"conversation_poll_seconds"`
	MessagePollSeconds      int `json:"message_poll_seconds"`
	NotificationPollSeconds int `json:"notification_poll_seconds"`
}

// FetchSyncConfig retrieves the polling cadence the server wants clients
// to use.
func (c *Client) FetchSyncConfig(ctx context.Context) (SyncConfig, error) {
	var cfg SyncConfig
	if err := c.do(ctx, http.MethodGet, "/sync/config", nil, &cfg); err != nil {
		return SyncConfig{}, err
	}
	return cfg, nil
}

// Conversations fetches the caller's conversation list.
func (c *Client) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// Messages fetches the full history of one conversation.
func (c *Client) Messages(ctx context.Context, conversationID int) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	path := fmt.Sprintf("/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Notifications fetches the caller's notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	path := "/notifications"
	if unreadOnly {
		path += "?unread=true"
	}
	var resp struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// RequestHelp opens a pending conversation through the REST path.
func (c *Client) RequestHelp(ctx context.Context, clientKey, content string) (models.Conversation, models.Message, error) {
	var resp struct {
		Conversation models.Conversation `json:"conversation"`
		Message      models.Message      `json:"message"`
	}
	body := map[string]string{"content": content, "client_key": clientKey}
	if err := c.do(ctx, http.MethodPost, "/conversations/help", body, &resp); err != nil {
		return models.Conversation{}, models.Message{}, err
	}
	return resp.Conversation, resp.Message, nil
}

// PostMessage sends a message through the REST path.
func (c *Client) PostMessage(ctx context.Context, conversationID int, clientKey, content string) (models.Message, error) {
	var msg models.Message
	path := fmt.Sprintf("/conversations/%d/messages", conversationID)
	body := map[string]string{"content": content, "client_key": clientKey}
	if err := c.do(ctx, http.MethodPost, path, body, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkConversationRead zeroes the caller's unread count server-side.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID int) error {
	path := fmt.Sprintf("/conversations/%d/read", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// MarkNotificationRead flags one notification read server-side.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID int) error {
	path := fmt.Sprintf("/notifications/%d/read", notificationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// MarkAllNotificationsRead flags every notification read server-side.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/read-all", nil, nil)
}
