package session

import (
	"context"
)

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithContext sets the Session in the given context
func WithContext(r context.Context, s *Session) context.Context {
	return context.WithValue(r, sessionCtxKey, s)
}

// FromContext finds the session from the context.
func FromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok
}

// Can is a convenience function to check capabilities directly from the
// standard context.
func Can(ctx context.Context, policy *Policy, capability string) bool {
	s, ok := FromContext(ctx)
	if !ok || s == nil {
		return false
	}

	switch capability {
	case "authenticated":
		return policy.IsAuthenticated(*s)
	case "admin":
		return policy.IsAdmin(*s)
	case "premium":
		return policy.IsPremium(*s)
	default:
		return false
	}
}
