package observability

import (
	"net"
	"net/http"
	"strings"
)

// RequestMeta carries the per-request identifiers a session records at
// handshake time.
type RequestMeta struct {
	RequestID string
	DeviceID  string
	ClientIP  string
}

// MetaFromRequest extracts the request id, device id and client address from
// an upgrade request. The client address prefers the first hop of
// X-Forwarded-For over the socket peer.
func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{
		RequestID: r.Header.Get("X-Request-Id"),
		DeviceID:  r.Header.Get("X-Device-Id"),
		ClientIP:  clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
