package oidc

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-session"
	"golang.org/x/oauth2"
)

// idTokenClaims are the profile claims carried by a provider ID token.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Name        string `json:"name"`
	Picture     string `json:"picture"`
	PhoneNumber string `json:"phone_number"`
}

// Adapter verifies provider ID tokens against the tenant JWKS and exposes
// the resulting credential stream through session.IdentityAdapter. Bearer
// tokens for backend calls are minted lazily from the stored refresh token.
type Adapter struct {
	config Config
	logger session.Logger
	jwks   *keyfunc.JWKS
	oauth  *oauth2.Config

	mu          sync.Mutex
	credential  *session.Credential
	refresh     string
	tokenSource oauth2.TokenSource

	subMu       sync.Mutex
	subscribers map[int]func(*session.Credential)
	nextSubID   int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(logger session.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New builds an Adapter and starts the JWKS background refresh.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	a := &Adapter{
		config:      cfg,
		logger:      session.DefaultLogger(),
		subscribers: map[int]func(*session.Credential){},
	}

	for _, opt := range opts {
		opt(a)
	}

	refreshInterval := cfg.RefreshInterval
	if refreshInterval == 0 {
		refreshInterval = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshInterval:   refreshInterval,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			a.logger.Error("background JWKS refresh failed: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("oidc: failed to load JWK Set: %w", err)
	}
	a.jwks = jwks

	if cfg.TokenURL != "" {
		a.oauth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: cfg.TokenURL,
			},
		}
	}

	return a, nil
}

// SetCredential verifies a provider ID token and publishes the credential it
// carries to every subscriber. The refresh token, when present, backs later
// Token calls.
func (a *Adapter) SetCredential(idToken, refreshToken string) error {
	cred, err := a.verify(idToken)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.credential = cred
	a.refresh = refreshToken
	a.tokenSource = nil
	a.mu.Unlock()

	a.broadcast(cred)
	return nil
}

// ClearCredential drops the current credential and publishes a signed-out
// state to every subscriber.
func (a *Adapter) ClearCredential() {
	a.mu.Lock()
	a.credential = nil
	a.refresh = ""
	a.tokenSource = nil
	a.mu.Unlock()

	a.broadcast(nil)
}

// Subscribe implements session.IdentityAdapter. The callback fires once with
// the current credential before any change notifications.
func (a *Adapter) Subscribe(fn func(*session.Credential)) func() {
	a.subMu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = fn

	a.mu.Lock()
	current := cloneCredential(a.credential)
	a.mu.Unlock()

	fn(current)
	a.subMu.Unlock()

	return func() {
		a.subMu.Lock()
		delete(a.subscribers, id)
		a.subMu.Unlock()
	}
}

// Token implements session.IdentityAdapter. It returns an empty token with a
// nil error when no credential is loaded, so callers can treat the session as
// unauthenticated without branching on error types.
func (a *Adapter) Token(ctx context.Context, forceRefresh bool) (string, error) {
	a.mu.Lock()
	if a.credential == nil {
		a.mu.Unlock()
		return "", nil
	}

	if a.oauth == nil || a.refresh == "" {
		a.mu.Unlock()
		return "", fmt.Errorf("oidc: no token endpoint configured")
	}

	if forceRefresh || a.tokenSource == nil {
		base := a.oauth.TokenSource(a.callContext(ctx), &oauth2.Token{
			RefreshToken: a.refresh,
		})
		a.tokenSource = oauth2.ReuseTokenSource(nil, base)
	}
	source := a.tokenSource
	a.mu.Unlock()

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("oidc: failed to mint bearer token: %w", err)
	}

	return token.AccessToken, nil
}

// Close stops the JWKS background refresh.
func (a *Adapter) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}

func (a *Adapter) verify(idToken string) (*session.Credential, error) {
	claims := &idTokenClaims{}

	opts := []jwt.ParserOption{}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}
	if len(a.config.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(a.config.Audience[0]))
	}

	token, err := jwt.ParseWithClaims(idToken, claims, a.jwks.Keyfunc, opts...)
	if err != nil {
		return nil, normalizeParseError(err)
	}
	if !token.Valid {
		return nil, session.ErrNoCredential
	}

	identityID := claims.Subject
	if identityID == "" && claims.Email == "" {
		return nil, fmt.Errorf("oidc: ID token carries neither sub nor email")
	}

	return &session.Credential{
		IdentityID:  identityID,
		Email:       strings.ToLower(strings.TrimSpace(claims.Email)),
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
		Phone:       claims.PhoneNumber,
	}, nil
}

func (a *Adapter) broadcast(cred *session.Credential) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	for _, fn := range a.subscribers {
		fn(cloneCredential(cred))
	}
}

// callContext injects the configured HTTP client into oauth2 token calls.
func (a *Adapter) callContext(ctx context.Context) context.Context {
	if a.config.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.config.HTTPClient)
}

func normalizeParseError(err error) error {
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("oidc: ID token expired: %w", err)
	}
	return fmt.Errorf("oidc: invalid ID token: %w", err)
}

func cloneCredential(cred *session.Credential) *session.Credential {
	if cred == nil {
		return nil
	}
	clone := *cred
	return &clone
}

var _ session.IdentityAdapter = (*Adapter)(nil)
