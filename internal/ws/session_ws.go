package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"avenir-sync/internal/auth"
	"avenir-sync/internal/models"
	"avenir-sync/internal/observability"
	"avenir-sync/internal/service"
)

// SessionHandler upgrades realtime socket connections and serves actions.
type SessionHandler struct {
	hub    *Hub
	svc    *service.ChatService
	tokens *auth.Tokens
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(hub *Hub, svc *service.ChatService, tokens *auth.Tokens) *SessionHandler {
	return &SessionHandler{hub: hub, svc: svc, tokens: tokens}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, registers the session and serves the
// action loop until the peer goes away.
func (h *SessionHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("avenir-sync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Authorization")
		if len(token) > 7 {
			token = token[7:]
		}
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	info := newConnInfo(c.Request, claims.UserID, claims.Role, traceID)
	writer := newConnWriter(conn)
	h.hub.Add(claims.UserID, writer, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	observability.PublishSessionEvent(ctx, info.sessionEvent("ws_connect", ""), info.headers())

	go func() {
		var closeReason string
		defer func() {
			h.hub.Remove(claims.UserID, writer)
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			observability.PublishSessionEvent(ctx, info.sessionEvent("ws_disconnect", closeReason), info.headers())
			conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("ws_error")
				}
				return
			}

			var frame models.ActionFrame
			if err := json.Unmarshal(data, &frame); err != nil || frame.Action == "" {
				// One malformed frame must not kill the session.
				observability.IncWSEvent("ws_bad_frame")
				continue
			}

			ack := Dispatch(ctx, h.svc, claims.UserID, frame)
			if err := writer.WriteEvent(ack); err != nil {
				closeReason = err.Error()
				return
			}
		}
	}()
}
