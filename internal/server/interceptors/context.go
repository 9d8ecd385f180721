package interceptors

import (
	"context"

	"nexus-auth/backend/internal/authz"
	sessiondomain "nexus-auth/backend/internal/session/domain"
)

type contextKey struct{ name string }

var (
	sessionKey = contextKey{"session"}
	authzKey   = contextKey{"authorization"}
)

// WithSession returns a context carrying the caller's session record and,
// when it was resolved, their authorization. Handlers read these via
// GetSession, GetUserID, GetToken and GetAuthorization.
func WithSession(ctx context.Context, s *sessiondomain.LoginUser, a *authz.Authorization) context.Context {
	if s != nil {
		ctx = context.WithValue(ctx, sessionKey, s)
	}
	if a != nil {
		ctx = context.WithValue(ctx, authzKey, a)
	}
	return ctx
}

// GetSession returns the session record from context and true if set; otherwise nil, false.
func GetSession(ctx context.Context) (*sessiondomain.LoginUser, bool) {
	s, ok := ctx.Value(sessionKey).(*sessiondomain.LoginUser)
	return s, ok && s != nil
}

// GetUserID returns the caller's user id from context and true if set; otherwise 0, false.
func GetUserID(ctx context.Context) (int64, bool) {
	s, ok := GetSession(ctx)
	if !ok {
		return 0, false
	}
	return s.UserID, true
}

// GetToken returns the caller's bearer token from context and true if set; otherwise "", false.
func GetToken(ctx context.Context) (string, bool) {
	s, ok := GetSession(ctx)
	if !ok || s.Token == "" {
		return "", false
	}
	return s.Token, true
}

// GetAuthorization returns the authorization resolved by the gate, if any.
func GetAuthorization(ctx context.Context) (*authz.Authorization, bool) {
	a, ok := ctx.Value(authzKey).(*authz.Authorization)
	return a, ok && a != nil
}
