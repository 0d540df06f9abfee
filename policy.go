package session

import "strings"

// AccessDecision is a pure projection of a Session. It is derived on demand
// and never cached.
type AccessDecision struct {
	IsAuthenticated bool `json:"is_authenticated"`
	IsAdmin         bool `json:"is_admin"`
	IsPremium       bool `json:"is_premium"`
}

// Policy centralizes the capability predicates used by route guards and
// conditional UI. Given the same Session value every predicate returns the
// same result with no side effects.
//
// The privileged-address list is a deliberate escape hatch for bootstrap and
// ops access: an account on it is treated as admin regardless of the role the
// backend resolved. It lives here, and only here, so the check cannot drift
// between consumers.
type Policy struct {
	privileged map[string]struct{}
}

// NewPolicy creates a Policy with the given privileged addresses. Comparison
// is case-insensitive.
func NewPolicy(privilegedEmails ...string) *Policy {
	p := &Policy{privileged: map[string]struct{}{}}
	for _, email := range privilegedEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		p.privileged[email] = struct{}{}
	}
	return p
}

// NewPolicyFromConfig creates a Policy from a Config.
func NewPolicyFromConfig(cfg Config) *Policy {
	if cfg == nil {
		return NewPolicy()
	}
	return NewPolicy(cfg.GetPrivilegedEmails()...)
}

// IsAuthenticated reports whether the session represents a signed-in user.
// Unresolved, resolving and anonymous sessions all fail closed.
func (p *Policy) IsAuthenticated(s Session) bool {
	return s.State == StateReady && s.HasIdentity()
}

// IsAdmin reports whether the session may access admin surfaces: either the
// resolved role is admin or the email is on the privileged list.
func (p *Policy) IsAdmin(s Session) bool {
	if !p.IsAuthenticated(s) {
		return false
	}
	if s.Role == RoleAdmin {
		return true
	}
	return p.isPrivileged(s.Email)
}

// IsPremium reports whether the session carries the premium entitlement.
func (p *Policy) IsPremium(s Session) bool {
	return p.IsAuthenticated(s) && s.IsPremium
}

// Decide projects the session into an AccessDecision.
func (p *Policy) Decide(s Session) AccessDecision {
	return AccessDecision{
		IsAuthenticated: p.IsAuthenticated(s),
		IsAdmin:         p.IsAdmin(s),
		IsPremium:       p.IsPremium(s),
	}
}

func (p *Policy) isPrivileged(email string) bool {
	if email == "" || len(p.privileged) == 0 {
		return false
	}
	_, ok := p.privileged[strings.ToLower(email)]
	return ok
}
