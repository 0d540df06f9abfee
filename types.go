package session

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Credential is the raw identity reported by the external provider. A nil
// credential in a subscription callback means the provider has no signed-in
// user.
type Credential struct {
	IdentityID  string
	Email       string
	DisplayName string
	AvatarURL   string
	Phone       string
}

// IdentityAdapter wraps the external identity provider.
type IdentityAdapter interface {
	// Subscribe registers a listener invoked whenever the provider reports a
	// credential appearing, disappearing, or rotating. The current credential
	// state is delivered immediately on registration. Returns an unsubscribe
	// handle.
	Subscribe(fn func(*Credential)) func()

	// Token returns a short-lived bearer token, transparently refreshing when
	// expired or when forceRefresh is set. A missing credential yields an
	// empty token and a nil error; callers treat that as unauthenticated,
	// not as a failure to retry.
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

// Entitlement is the authorization record stored by the backend, separate
// from identity.
type Entitlement struct {
	Role      UserRole
	IsPremium bool
}

// EntitlementResolver looks up the backend authorization record for a stable
// identity key. Implementations must be idempotent: repeated calls with the
// same key and no backend change yield the same result and never create
// duplicate records.
type EntitlementResolver interface {
	Resolve(ctx context.Context, key string, profile *Credential) (*Entitlement, error)
}

// SnapshotStore persists the last known session for degraded offline
// bootstrap. Implementations live outside this package (see bootstrap).
type SnapshotStore interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}

// Config holds session options
type Config interface {
	GetBaseURL() string
	GetPrivilegedEmails() []string
	GetRequestTimeout() time.Duration
}

// DefaultLogger returns the fallback stdout logger used when no Logger is
// provided.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
