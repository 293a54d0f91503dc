package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/futig/docchat/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type sessionIDKey struct{}

const webSessionPrefix = "web_"

// Session makes sure every request carries a session cookie and puts the
// session id into the request context. The cookie lives as long as the
// server-side session.
func Session(cookieName string, ttl time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
				sessionID = cookie.Value
			} else {
				sessionID = webSessionPrefix + uuid.New().String()
				ctxzap.Info(r.Context(), "new web session", zap.String("session_id", sessionID))
			}

			// Refreshed on every request to match the sliding expiration.
			http.SetCookie(w, &http.Cookie{
				Name:     cookieName,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), sessionIDKey{}, sessionID)
			ctx = logger.WithSession(ctx, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID returns the session id set by Session.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// WithSessionID stores a session id in ctx.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}
