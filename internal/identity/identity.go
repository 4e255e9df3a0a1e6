// Package identity resolves the caller's user and tab session from request
// headers set by the authenticated edge.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
)

const (
	UserHeaderName        = "X-User-ID"
	SessionHeaderName     = "X-Session-ID"
	DefaultSessionIDValue = "default"
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// WithUser returns a context carrying userID and sessionID.
func WithUser(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func sanitizeUserID(id string) string {
	id = strings.TrimSpace(id)
	if !idPattern.MatchString(id) {
		return ""
	}
	return id
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !idPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

// Middleware injects the caller identity. Requests without a valid user
// header pass through with an empty user id; handlers decide whether the
// body may supply one.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := sanitizeUserID(r.Header.Get(UserHeaderName))
			sid := r.Header.Get(SessionHeaderName)
			if sid == "" {
				sid = r.URL.Query().Get("session_id")
			}
			ctx := WithUser(r.Context(), userID, sanitizeSessionID(sid))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
