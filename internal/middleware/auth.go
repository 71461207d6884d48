package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"connectrpc.com/connect"

	"github.com/mmynk/receiptsplit/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// SessionKey is the context key for the authenticated session.
const SessionKey contextKey = "session"

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// GetSession extracts the session from the context.
// Returns nil if the request was not authenticated.
func GetSession(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(SessionKey).(*auth.Session)
	return session
}

// GetSessionID returns the session ID from the context, or "".
func GetSessionID(ctx context.Context) string {
	if session := GetSession(ctx); session != nil {
		return session.ID
	}
	return ""
}

// RequireSession returns an interceptor that validates the session cookie
// (or Bearer token) and rejects unauthenticated calls. Procedures listed in
// public skip the check.
func RequireSession(authn *auth.Authenticator, public ...string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if slices.Contains(public, req.Spec().Procedure) {
				return next(ctx, req)
			}

			token := auth.TokenFromHeader(req.Header())
			if token == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			session, err := authn.Verify(token)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithSession(ctx, session), req)
		}
	}
}

// RequireSessionHTTP is the plain HTTP counterpart of RequireSession. It
// answers 401 with {"error":"Unauthorized"}.
func RequireSessionHTTP(authn *auth.Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromHeader(r.Header)
		if token == "" {
			unauthorized(w)
			return
		}
		session, err := authn.Verify(token)
		if err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
