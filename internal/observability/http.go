package observability

import (
	"net"
	"net/http"
	"strings"
)

// ClientMeta is the per-request metadata attached to realtime sessions.
type ClientMeta struct {
	DeviceID  string
	RequestID string
	IP        string
}

// MetaFromRequest extracts device, request and address metadata from the
// upgrade request.
func MetaFromRequest(r *http.Request) ClientMeta {
	return ClientMeta{
		DeviceID:  r.Header.Get("X-Device-Id"),
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        clientIP(r),
	}
}

// clientIP prefers the first X-Forwarded-For hop over the socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
