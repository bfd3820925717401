package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/lending/internal/core"
)

// WithRequestMetadata records the client as the operator of any job the
// request starts.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithOperator(ctx, clientIP(r))
}

// clientIP returns the host part of RemoteAddr, already rewritten by
// TrustedRealIP for proxied requests.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
