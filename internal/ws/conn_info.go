package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"avenir-sync/internal/observability"
)

// ConnInfo carries per-session metadata for lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      int
	Role        string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnInfo(r *http.Request, userID int, role, traceID string) ConnInfo {
	meta := observability.MetaFromRequest(r)
	return ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		Role:        role,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

// sessionEvent builds the published envelope for this session.
func (info ConnInfo) sessionEvent(name, reason string) observability.SessionEvent {
	return observability.SessionEvent{
		Schema: 1,
		Name:   name,
		Session: observability.SessionDetail{
			ConnID:     info.ConnID,
			DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
			Reason:     reason,
		},
		Actor: observability.ActorDetail{
			UserID:   info.UserID,
			DeviceID: info.DeviceID,
			IP:       info.IP,
		},
	}
}

// headers returns the correlation headers recorded at connect time.
func (info ConnInfo) headers() map[string]string {
	return observability.TraceHeaders(info.RequestID, info.TraceID)
}
