package observability

// SessionEvent is the envelope pushed onto the event exchange when a
// realtime session connects, disconnects or fails a write.
type SessionEvent struct {
	Schema  int           `json:"schema"`
	Name    string        `json:"event"`
	Session SessionDetail `json:"session"`
	Actor   ActorDetail   `json:"actor"`
}

type SessionDetail struct {
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

type ActorDetail struct {
	UserID   int    `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
	IP       string `json:"ip,omitempty"`
}

// TraceHeaders builds the correlation headers attached to published events.
func TraceHeaders(requestID, traceID string) map[string]string {
	headers := make(map[string]string, 2)
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["x-trace-id"] = traceID
	}
	return headers
}
