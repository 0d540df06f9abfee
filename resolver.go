package session

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-session/client"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
)

// EntitlementAPI is the slice of the backend client the resolver needs.
type EntitlementAPI interface {
	UserStatus(ctx context.Context, email string) (*client.StatusResponse, error)
	UpsertUser(ctx context.Context, req client.UpsertUserRequest) (*client.StatusResponse, error)
}

// Resolver resolves backend authorization records by identity key, issuing an
// idempotent registration call when no record exists yet.
//
// Concurrent Resolve calls for the same key share a single network lookup;
// the second caller waits for and reuses the first result instead of issuing
// a duplicate request.
type Resolver struct {
	api    EntitlementAPI
	logger Logger

	mu      sync.Mutex
	pending map[string]*resolveCall
}

type resolveCall struct {
	done chan struct{}
	ent  *Entitlement
	err  error
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger overrides the resolver logger.
func WithResolverLogger(l Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a backend-backed EntitlementResolver.
func NewResolver(api EntitlementAPI, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		api:     api,
		logger:  defLogger{},
		pending: map[string]*resolveCall{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

var _ EntitlementResolver = (*Resolver)(nil)

// Resolve looks up the authorization record for the given identity key. When
// the backend has no record it registers the user with best-effort profile
// data, then retries the lookup once. Transport failures return an error so
// the store can degrade to least-privilege defaults.
func (r *Resolver) Resolve(ctx context.Context, key string, profile *Credential) (*Entitlement, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return nil, ErrEntitlementNotFound
	}

	r.mu.Lock()
	if call, ok := r.pending[key]; ok {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.ent, call.err
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.CategoryOperation, "context cancelled during entitlement resolution")
		}
	}

	call := &resolveCall{done: make(chan struct{})}
	r.pending[key] = call
	r.mu.Unlock()

	call.ent, call.err = r.resolve(ctx, key, profile)
	close(call.done)

	r.mu.Lock()
	delete(r.pending, key)
	r.mu.Unlock()

	return call.ent, call.err
}

func (r *Resolver) resolve(ctx context.Context, key string, profile *Credential) (*Entitlement, error) {
	status, err := r.api.UserStatus(ctx, key)
	if err == nil {
		return entitlementFromStatus(status), nil
	}

	if !client.IsRecordNotFound(err) {
		r.logger.Warn("entitlement lookup failed: %v", err)
		return nil, wrapUnavailable(err)
	}

	// No record yet: register with best-effort profile data, then retry the
	// lookup once. The backend upserts, so repeats never duplicate records.
	status, err = r.api.UpsertUser(ctx, r.upsertRequest(key, profile))
	if err != nil {
		r.logger.Warn("entitlement registration failed: %v", err)
		return nil, wrapUnavailable(err)
	}
	if status != nil && status.Role != "" {
		return entitlementFromStatus(status), nil
	}

	status, err = r.api.UserStatus(ctx, key)
	if err != nil {
		if client.IsRecordNotFound(err) {
			return nil, ErrEntitlementNotFound
		}
		return nil, wrapUnavailable(err)
	}

	return entitlementFromStatus(status), nil
}

func (r *Resolver) upsertRequest(key string, profile *Credential) client.UpsertUserRequest {
	req := client.UpsertUserRequest{Email: key}

	if profile != nil {
		req.IdentityID = profile.IdentityID
		req.Name = profile.DisplayName
		req.PhotoURL = profile.AvatarURL
		if profile.Email != "" {
			req.Email = strings.ToLower(profile.Email)
		}
		req.Phone = r.normalizePhone(profile.Phone)
	}

	// Providers without a stable subject still need a deterministic identity
	// key, so repeated registrations converge on the same record.
	if req.IdentityID == "" {
		if id, err := hashid.NewUUID(req.Email); err == nil {
			req.IdentityID = id.String()
		}
	}

	return req
}

func (r *Resolver) normalizePhone(phone string) string {
	if phone == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(phone, "US")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		r.logger.Debug("dropping invalid profile phone: %s", phone)
		return ""
	}

	return phonenumbers.Format(parsed, phonenumbers.E164)
}

func entitlementFromStatus(status *client.StatusResponse) *Entitlement {
	if status == nil {
		return &Entitlement{Role: RoleUser}
	}

	role, ok := ParseRole(status.Role)
	if !ok {
		role = RoleUser
	}

	return &Entitlement{
		Role:      role,
		IsPremium: status.IsPremium,
	}
}

func wrapUnavailable(err error) error {
	return errors.Wrap(err, ErrEntitlementUnavailable.Category, ErrEntitlementUnavailable.Message).
		WithTextCode(ErrEntitlementUnavailable.TextCode)
}
