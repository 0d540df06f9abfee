package session

import (
	"context"
	"sync"
	"time"
)

// Subscriber receives a copy of the Session after every transition.
// Callbacks run synchronously relative to the transition, in transition
// order, so a subscriber never observes state older than what it was just
// notified about.
type Subscriber func(Session)

// Store owns the merged Session. It is the single writer; every other
// component reads through Current or a subscription.
//
// State machine:
//
//	Unresolved -> Resolving -> Ready
//	Unresolved -> Anonymous          (adapter reports no credential)
//	Ready      -> Resolving          (RefreshEntitlement, keeps known fields)
//	Ready/Anonymous -> Unresolved    (SignOut)
type Store struct {
	adapter   IdentityAdapter
	resolver  EntitlementResolver
	snapshots SnapshotStore
	logger    Logger
	timeout   time.Duration
	now       func() time.Time

	mu          sync.Mutex
	session     Session
	subscribers map[int]Subscriber
	nextSubID   int
	unsubscribe func()
	started     bool

	// notifyMu serializes subscriber dispatch so notifications arrive in
	// transition order even when transitions race across goroutines.
	notifyMu sync.Mutex
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithStoreLogger overrides the store logger.
func WithStoreLogger(l Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSnapshots enables the degraded offline bootstrap path: the last known
// session is persisted on every successful resolution and primed on Start
// when the adapter has no live credential yet.
func WithSnapshots(snapshots SnapshotStore) StoreOption {
	return func(s *Store) {
		s.snapshots = snapshots
	}
}

// WithStoreTimeout bounds each entitlement resolution.
func WithStoreTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewStore creates a session Store bound to the given adapter and resolver.
func NewStore(adapter IdentityAdapter, resolver EntitlementResolver, opts ...StoreOption) *Store {
	s := &Store{
		adapter:     adapter,
		resolver:    resolver,
		logger:      defLogger{},
		timeout:     DefaultRequestTimeout,
		now:         time.Now,
		session:     Session{State: StateUnresolved, Role: RoleUser},
		subscribers: map[int]Subscriber{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start primes the session from the offline snapshot when available and then
// subscribes to the identity adapter. The context governs background
// resolution work for the lifetime of the store.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.primeFromSnapshot(ctx)

	// Subscribe delivers the current credential synchronously, which re-enters
	// the store, so the handle cannot be taken while holding s.mu.
	unsubscribe := s.adapter.Subscribe(func(cred *Credential) {
		s.handleCredential(ctx, cred)
	})

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	return nil
}

// Stop detaches from the identity adapter. The last session value remains
// readable but no further transitions occur.
func (s *Store) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.started = false
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Current returns a copy of the session.
func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Subscribe registers a subscriber and immediately delivers the current
// session. Returns an unsubscribe handle.
func (s *Store) Subscribe(fn Subscriber) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	current := s.session
	s.mu.Unlock()

	s.notifyMu.Lock()
	fn(current)
	s.notifyMu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// SignOut destroys the session and clears the offline snapshot.
func (s *Store) SignOut(ctx context.Context) {
	s.transition(func(sess *Session) bool {
		*sess = Session{State: StateUnresolved, Role: RoleUser}
		return true
	})

	if s.snapshots != nil {
		if err := s.snapshots.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear session snapshot: %v", err)
		}
	}
}

// RefreshEntitlement re-resolves role and premium state for the current
// identity. The previously known values keep serving readers until the
// resolution completes (stale-while-revalidate). This is the only
// guaranteed-fresh read path; cached Role/IsPremium fields are always
// considered stale.
func (s *Store) RefreshEntitlement(ctx context.Context) error {
	s.mu.Lock()
	if s.session.State != StateReady || !s.session.HasIdentity() {
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	cred := credentialFromSession(s.session)
	s.mu.Unlock()

	s.transition(func(sess *Session) bool {
		sess.State = StateResolving
		return true
	})

	s.resolveEntitlement(ctx, cred)
	return nil
}

// TokenSource adapts the store's identity adapter into the token callback
// shape the backend client consumes. The token is re-minted before each
// authorized request rather than read from the cached session field.
func (s *Store) TokenSource() func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return s.adapter.Token(ctx, false)
	}
}

// handleCredential applies an adapter credential event. Events are applied
// in arrival order; last writer wins on identity.
func (s *Store) handleCredential(ctx context.Context, cred *Credential) {
	if cred == nil {
		s.transition(func(sess *Session) bool {
			*sess = AnonymousSession()
			return true
		})
		return
	}

	s.transition(func(sess *Session) bool {
		next := sessionFromCredential(cred)
		// Credential rotation for the same identity keeps the last known
		// entitlements while the refresh is in flight.
		if sess.IdentityID == cred.IdentityID {
			next.Role = sess.Role
			next.IsPremium = sess.IsPremium
			next.SyncedAt = sess.SyncedAt
		}
		next.BearerToken = sess.BearerToken
		*sess = next
		return true
	})

	go s.resolveEntitlement(ctx, cred)
}

// resolveEntitlement resolves entitlements for the captured credential and
// applies the result unless the identity changed while the call was in
// flight, in which case the result is dropped silently.
func (s *Store) resolveEntitlement(ctx context.Context, cred *Credential) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	token, err := s.adapter.Token(ctx, false)
	if err != nil {
		s.logger.Warn("failed to mint bearer token: %v", err)
		token = ""
	}

	key := credentialKey(cred)
	ent, resolveErr := s.resolver.Resolve(ctx, key, cred)

	applied := s.transition(func(sess *Session) bool {
		if sess.IdentityID != cred.IdentityID {
			return false
		}

		sess.State = StateReady
		sess.BearerToken = token

		if resolveErr != nil || ent == nil {
			// Degrade to least privilege and stay usable; admin and premium
			// surfaces fail closed.
			sess.Role = RoleUser
			sess.IsPremium = false
			return true
		}

		now := s.now()
		sess.Role = ent.Role
		sess.IsPremium = ent.IsPremium
		sess.SyncedAt = &now
		return true
	})

	if !applied {
		s.logger.Debug("dropping stale resolution for %s: %s", key, ErrStaleResolution.Message)
		return
	}

	if resolveErr != nil {
		s.logger.Warn("entitlement resolution degraded to defaults: %v", resolveErr)
		return
	}

	s.saveSnapshot(ctx)
}

// transition mutates the session under lock and notifies subscribers when
// the mutator reports it applied. A false return from the mutator marks a
// dropped update (stale resolution, superseded bootstrap) and suppresses
// notification.
func (s *Store) transition(mutate func(*Session) bool) bool {
	s.mu.Lock()
	applied := mutate(&s.session)
	after := s.session
	subs := make([]Subscriber, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if !applied {
		return false
	}

	s.notifyMu.Lock()
	for _, fn := range subs {
		fn(after)
	}
	s.notifyMu.Unlock()

	return true
}

func (s *Store) primeFromSnapshot(ctx context.Context) {
	if s.snapshots == nil {
		return
	}

	token, err := s.adapter.Token(ctx, false)
	if err == nil && token != "" {
		// Live credential available; the adapter subscription will drive the
		// normal resolution path.
		return
	}

	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load session snapshot: %v", err)
		return
	}
	if snap == nil || !snap.HasIdentity() {
		return
	}

	s.logger.Info("bootstrapping degraded session for %s from snapshot", snap.IdentityKey())
	s.transition(func(sess *Session) bool {
		if sess.State != StateUnresolved {
			return false
		}
		*sess = *snap
		sess.State = StateReady
		return true
	})
}

func (s *Store) saveSnapshot(ctx context.Context) {
	if s.snapshots == nil {
		return
	}

	if err := s.snapshots.Save(ctx, s.Current()); err != nil {
		s.logger.Warn("failed to save session snapshot: %v", err)
	}
}

func credentialFromSession(s Session) *Credential {
	return &Credential{
		IdentityID:  s.IdentityID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		AvatarURL:   s.AvatarURL,
		Phone:       s.Phone,
	}
}

func credentialKey(cred *Credential) string {
	if cred == nil {
		return ""
	}
	if cred.Email != "" {
		return cred.Email
	}
	return cred.IdentityID
}
