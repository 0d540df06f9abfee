package session

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthenticated        = "SESSION_UNAUTHENTICATED"
	TextCodeToggleInFlight         = "TOGGLE_IN_FLIGHT"
	TextCodeToggleFailed           = "TOGGLE_FAILED"
	TextCodeEntitlementUnavailable = "ENTITLEMENT_UNAVAILABLE"
	TextCodeEntitlementNotFound    = "ENTITLEMENT_RECORD_NOT_FOUND"
	TextCodeStaleResolution        = "STALE_RESOLUTION"
	TextCodeAdminRequired          = "ADMIN_REQUIRED"
	TextCodePremiumRequired        = "PREMIUM_REQUIRED"
	TextCodeNoCredential           = "NO_LIVE_CREDENTIAL"
)

// ErrUnauthenticated is returned when a gated action is attempted with no
// ready session. It is surfaced as a sign-in prompt, never retried.
var ErrUnauthenticated = errors.New("sign in required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrToggleInFlight is returned when an operation of the same kind on the
// same item is already in flight. Callers ignore it silently.
var ErrToggleInFlight = errors.New("toggle already in progress", errors.CategoryConflict).
	WithTextCode(TextCodeToggleInFlight).
	WithCode(errors.CodeConflict)

// ErrToggleFailed is returned when the backend rejected or timed out a toggle
// mutation; the optimistic state has already been rolled back.
var ErrToggleFailed = errors.New("toggle mutation failed", errors.CategoryOperation).
	WithTextCode(TextCodeToggleFailed).
	WithCode(errors.CodeBadRequest)

// ErrEntitlementUnavailable is returned when the backend was unreachable or
// errored while resolving role/premium state.
var ErrEntitlementUnavailable = errors.New("entitlement backend unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeEntitlementUnavailable).
	WithCode(errors.CodeBadRequest)

// ErrEntitlementNotFound is returned when no authorization record exists for
// the identity, even after a registration attempt.
var ErrEntitlementNotFound = errors.New("entitlement record not found", errors.CategoryNotFound).
	WithTextCode(TextCodeEntitlementNotFound).
	WithCode(errors.CodeNotFound)

// ErrStaleResolution marks a resolver result that arrived after the identity
// changed. It is dropped internally and never surfaced to consumers.
var ErrStaleResolution = errors.New("stale entitlement resolution", errors.CategoryConflict).
	WithTextCode(TextCodeStaleResolution).
	WithCode(errors.CodeConflict)

// ErrAdminRequired is returned by guards protecting admin surfaces.
var ErrAdminRequired = errors.New("admin access required", errors.CategoryAuthz).
	WithTextCode(TextCodeAdminRequired).
	WithCode(errors.CodeForbidden)

// ErrPremiumRequired is returned by guards protecting premium content.
var ErrPremiumRequired = errors.New("premium access required", errors.CategoryAuthz).
	WithTextCode(TextCodePremiumRequired).
	WithCode(errors.CodeForbidden)

// ErrNoCredential is returned by adapters when an operation needs a live
// credential and none is present.
var ErrNoCredential = errors.New("no live credential", errors.CategoryAuth).
	WithTextCode(TextCodeNoCredential).
	WithCode(errors.CodeUnauthorized)

// IsUnauthenticated will check for the sign-in-required error
func IsUnauthenticated(err error) bool {
	return hasTextCode(err, TextCodeUnauthenticated)
}

// IsToggleInFlight will check for the duplicate-toggle error
func IsToggleInFlight(err error) bool {
	return hasTextCode(err, TextCodeToggleInFlight)
}

// IsStaleResolution will check for the stale resolver result marker
func IsStaleResolution(err error) bool {
	return hasTextCode(err, TextCodeStaleResolution)
}

// IsEntitlementNotFound will check for a missing authorization record
func IsEntitlementNotFound(err error) bool {
	return hasTextCode(err, TextCodeEntitlementNotFound)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
