package session_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-session"
	"github.com/goliatone/go-session/client"
)

// stubAdapter drives credential events manually and serves canned tokens.
type stubAdapter struct {
	mu         sync.Mutex
	token      string
	tokenErr   error
	tokenCalls int
	listener   func(*session.Credential)
	current    *session.Credential
}

func (a *stubAdapter) Subscribe(fn func(*session.Credential)) func() {
	a.mu.Lock()
	a.listener = fn
	current := a.current
	a.mu.Unlock()

	fn(current)
	return func() {
		a.mu.Lock()
		a.listener = nil
		a.mu.Unlock()
	}
}

func (a *stubAdapter) Token(ctx context.Context, forceRefresh bool) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokenCalls++
	return a.token, a.tokenErr
}

// Emit simulates the provider reporting a credential change.
func (a *stubAdapter) Emit(cred *session.Credential) {
	a.mu.Lock()
	a.current = cred
	fn := a.listener
	a.mu.Unlock()

	if fn != nil {
		fn(cred)
	}
}

// stubResolver returns scripted entitlements and records calls.
type stubResolver struct {
	mu    sync.Mutex
	ent   *session.Entitlement
	err   error
	calls int
	keys  []string
	block chan struct{}
}

func (r *stubResolver) Resolve(ctx context.Context, key string, profile *session.Credential) (*session.Entitlement, error) {
	r.mu.Lock()
	r.calls++
	r.keys = append(r.keys, key)
	block := r.block
	ent, err := r.ent, r.err
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if ent == nil && err == nil {
		return &session.Entitlement{Role: session.RoleUser}, nil
	}
	return ent, err
}

func (r *stubResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// stubSnapshots is an in-memory session.SnapshotStore.
type stubSnapshots struct {
	mu         sync.Mutex
	saved      *session.Session
	loadErr    error
	saveCalls  int
	clearCalls int
}

func (s *stubSnapshots) Save(ctx context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	copied := sess
	s.saved = &copied
	return nil
}

func (s *stubSnapshots) Load(ctx context.Context) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.saved == nil {
		return nil, nil
	}
	copied := *s.saved
	return &copied, nil
}

func (s *stubSnapshots) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	s.saved = nil
	return nil
}

// stubEntitlementAPI scripts the backend user endpoints.
type stubEntitlementAPI struct {
	mu          sync.Mutex
	status      *client.StatusResponse
	statusErr   error
	statusCalls int
	upserts     []client.UpsertUserRequest
	upsertErr   error

	// afterUpsert replaces statusErr once an upsert lands, mirroring the
	// backend creating the record.
	afterUpsert *client.StatusResponse
}

func (a *stubEntitlementAPI) UserStatus(ctx context.Context, email string) (*client.StatusResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statusCalls++
	if a.statusErr != nil {
		return nil, a.statusErr
	}
	return a.status, nil
}

func (a *stubEntitlementAPI) UpsertUser(ctx context.Context, req client.UpsertUserRequest) (*client.StatusResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.upserts = append(a.upserts, req)
	if a.upsertErr != nil {
		return nil, a.upsertErr
	}
	if a.afterUpsert != nil {
		a.status = a.afterUpsert
		a.statusErr = nil
	}
	return a.status, nil
}

// stubInteractionAPI scripts the lesson interaction endpoints.
type stubInteractionAPI struct {
	mu            sync.Mutex
	like          *client.LikeResponse
	likeErr       error
	likeCalls     int
	favorite      *client.FavoriteResponse
	favoriteErr   error
	favoriteCalls int
	reports       []client.ReportRequest
	reportErr     error
	block         chan struct{}
}

func (a *stubInteractionAPI) ToggleLike(ctx context.Context, lessonID string) (*client.LikeResponse, error) {
	a.mu.Lock()
	a.likeCalls++
	block := a.block
	res, err := a.like, a.likeErr
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, err
}

func (a *stubInteractionAPI) ToggleFavorite(ctx context.Context, lessonID, userID string) (*client.FavoriteResponse, error) {
	a.mu.Lock()
	a.favoriteCalls++
	block := a.block
	res, err := a.favorite, a.favoriteErr
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, err
}

func (a *stubInteractionAPI) SubmitReport(ctx context.Context, lessonID string, req client.ReportRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, req)
	return a.reportErr
}

// testLogger drops all output so test runs stay quiet.
type testLogger struct{}

func (testLogger) Debug(format string, args ...any) {}
func (testLogger) Info(format string, args ...any)  {}
func (testLogger) Warn(format string, args ...any)  {}
func (testLogger) Error(format string, args ...any) {}
