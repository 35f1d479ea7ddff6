// Package identity resolves the opaque partition keys the rate limiter
// charges against: "user:<id>" for authenticated callers, "ip:<address>" for
// anonymous ones. The user id rides the request context, put there by
// whatever authentication middleware runs earlier in the chain.
package identity

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Identifier prefixes. The limiter treats the whole string as opaque; the
// prefixes only keep user and IP key spaces from colliding.
const (
	UserPrefix = "user:"
	IPPrefix   = "ip:"
)

// userIDKey is the private context key type for the authenticated user id.
// A private type prevents collisions with other context keys.
type userIDKey struct{}

// WithUserID returns a context carrying the authenticated caller's id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromContext returns the authenticated user id and whether one is set.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// ForUser builds the partition key for an authenticated caller.
func ForUser(id string) string {
	return UserPrefix + id
}

// ForIP builds the partition key for an anonymous caller.
func ForIP(addr string) string {
	return IPPrefix + addr
}

// ClientIP extracts the caller's address from a request, preferring the
// first hop of X-Forwarded-For when a proxy or load balancer is in front.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port, or empty; use it as-is.
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	return host
}

// FromRequest resolves the partition key for a request: the authenticated
// user when the context carries one, otherwise the client IP.
func FromRequest(r *http.Request) string {
	if id, ok := UserIDFromContext(r.Context()); ok {
		return ForUser(id)
	}
	return ForIP(ClientIP(r))
}

// FromContext resolves a partition key without an HTTP request, for non-HTTP
// transports. fallback is used as the address when no user id is present.
func FromContext(ctx context.Context, fallback string) string {
	if id, ok := UserIDFromContext(ctx); ok {
		return ForUser(id)
	}
	if fallback == "" {
		fallback = "unknown"
	}
	return ForIP(fallback)
}
