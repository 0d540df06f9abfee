package session

import (
	"fmt"
	"strings"
	"time"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default least-privilege role
	RoleUser UserRole = "user"
	// RoleAdmin grants access to moderation surfaces
	RoleAdmin UserRole = "admin"
)

// State is the session lifecycle state.
type State string

const (
	// StateUnresolved is the initial state, before the identity provider has
	// reported anything.
	StateUnresolved State = "unresolved"
	// StateResolving means a credential is known and the entitlement lookup
	// is in flight.
	StateResolving State = "resolving"
	// StateReady means the session is fully populated, possibly with
	// least-privilege defaults if resolution failed.
	StateReady State = "ready"
	// StateAnonymous means the provider reported no credential.
	StateAnonymous State = "anonymous"
)

// Session is the merged, in-memory view of identity and entitlement. It is
// owned by the Store; consumers receive copies and must never mutate shared
// state directly.
//
// Role and IsPremium are always considered stale relative to IdentityID; a
// consumer that needs a guaranteed-fresh value calls Store.RefreshEntitlement
// rather than reading a cached field.
type Session struct {
	State       State      `json:"state"`
	IdentityID  string     `json:"identity_id,omitempty"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	BearerToken string     `json:"-"`
	Role        UserRole   `json:"role,omitempty"`
	IsPremium   bool       `json:"is_premium,omitempty"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

// AnonymousSession returns the canonical signed-out session value.
func AnonymousSession() Session {
	return Session{State: StateAnonymous, Role: RoleUser}
}

// EnsureState defaults a zero state to unresolved.
func (s *Session) EnsureState() {
	if s.State == "" {
		s.State = StateUnresolved
	}
}

// HasIdentity reports whether a provider credential backs this session.
func (s Session) HasIdentity() bool {
	return s.IdentityID != ""
}

// IdentityKey is the stable key used for entitlement lookups: the email when
// present, the provider id otherwise.
func (s Session) IdentityKey() string {
	if s.Email != "" {
		return strings.ToLower(s.Email)
	}
	return s.IdentityID
}

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a UserRole, defaulting to RoleUser.
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	if IsValidRole(role) {
		return role, true
	}
	return RoleUser, false
}

// TODO: enable only in development!
func (s Session) String() string {
	syncedAt := "<nil>"
	if s.SyncedAt != nil {
		syncedAt = s.SyncedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"state=%s identity=%s email=%s role=%s premium=%t synced=%s",
		s.State,
		s.IdentityID,
		s.Email,
		s.Role,
		s.IsPremium,
		syncedAt,
	)
}

// sessionFromCredential builds a resolving session from a provider
// credential, before entitlements are known.
func sessionFromCredential(cred *Credential) Session {
	if cred == nil {
		return AnonymousSession()
	}
	return Session{
		State:       StateResolving,
		IdentityID:  cred.IdentityID,
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
		AvatarURL:   cred.AvatarURL,
		Phone:       cred.Phone,
		Role:        RoleUser,
	}
}
