package oidc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-session"
	"github.com/goliatone/go-session/provider/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// the JWKS serves an oct key holding "secret-key-bytes" so tests can sign
// HS256 tokens locally
const signingSecret = "secret-key-bytes"

func newJWKSServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{
				{
					"kty": "oct",
					"kid": "local-jwk",
					"k":   "c2VjcmV0LWtleS1ieXRlcw",
					"alg": "HS256",
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = "local-jwk"
	signed, err := token.SignedString([]byte(signingSecret))
	require.NoError(t, err)
	return signed
}

func newAdapter(t *testing.T, cfg oidc.Config) *oidc.Adapter {
	t.Helper()
	adapter, err := oidc.New(cfg)
	require.NoError(t, err)
	t.Cleanup(adapter.Close)
	return adapter
}

func TestNewRequiresJWKSURL(t *testing.T) {
	_, err := oidc.New(oidc.Config{})
	assert.Error(t, err)
}

func TestSetCredentialPublishesProfile(t *testing.T) {
	jwks := newJWKSServer(t)
	adapter := newAdapter(t, oidc.Config{JWKSURL: jwks.URL})

	var events []*session.Credential
	unsubscribe := adapter.Subscribe(func(cred *session.Credential) {
		events = append(events, cred)
	})
	defer unsubscribe()

	// immediate delivery of the signed-out state
	require.Len(t, events, 1)
	assert.Nil(t, events[0])

	idToken := signIDToken(t, jwt.MapClaims{
		"sub":     "auth0|123",
		"email":   "Alice@Example.com",
		"name":    "Alice",
		"picture": "https://cdn.example.com/alice.png",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	require.NoError(t, adapter.SetCredential(idToken, "refresh-1"))

	require.Len(t, events, 2)
	cred := events[1]
	require.NotNil(t, cred)
	assert.Equal(t, "auth0|123", cred.IdentityID)
	assert.Equal(t, "alice@example.com", cred.Email, "email is normalized")
	assert.Equal(t, "Alice", cred.DisplayName)
	assert.Equal(t, "https://cdn.example.com/alice.png", cred.AvatarURL)
}

func TestSetCredentialRejectsExpiredToken(t *testing.T) {
	jwks := newJWKSServer(t)
	adapter := newAdapter(t, oidc.Config{JWKSURL: jwks.URL})

	idToken := signIDToken(t, jwt.MapClaims{
		"sub": "auth0|123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	err := adapter.SetCredential(idToken, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSetCredentialRejectsTamperedToken(t *testing.T) {
	jwks := newJWKSServer(t)
	adapter := newAdapter(t, oidc.Config{JWKSURL: jwks.URL})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "auth0|123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "local-jwk"
	signed, err := token.SignedString([]byte("wrong-secret-bytes!!"))
	require.NoError(t, err)

	assert.Error(t, adapter.SetCredential(signed, ""))
}

func TestSetCredentialValidatesIssuer(t *testing.T) {
	jwks := newJWKSServer(t)
	adapter := newAdapter(t, oidc.Config{
		JWKSURL: jwks.URL,
		Issuer:  "https://id.example.com/",
	})

	good := signIDToken(t, jwt.MapClaims{
		"sub": "auth0|123",
		"iss": "https://id.example.com/",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, adapter.SetCredential(good, ""))

	bad := signIDToken(t, jwt.MapClaims{
		"sub": "auth0|123",
		"iss": "https://evil.example.com/",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	assert.Error(t, adapter.SetCredential(bad, ""))
}

func TestClearCredentialBroadcastsNil(t *testing.T) {
	jwks := newJWKSServer(t)
	adapter := newAdapter(t, oidc.Config{JWKSURL: jwks.URL})

	idToken := signIDToken(t, jwt.MapClaims{
		"sub": "auth0|123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, adapter.SetCredential(idToken, "refresh-1"))

	var events []*session.Credential
	adapter.Subscribe(func(cred *session.Credential) {
		events = append(events, cred)
	})

	// current credential delivered on subscribe
	require.Len(t, events, 1)
	require.NotNil(t, events[0])

	adapter.ClearCredential()
	require.Len(t, events, 2)
	assert.Nil(t, events[1])
}

func TestTokenWithoutCredential(t *testing.T) {
	jwks := newJWKSServer(t)
	adapter := newAdapter(t, oidc.Config{JWKSURL: jwks.URL})

	// unauthenticated is an empty token, not an error
	token, err := adapter.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenMintsFromRefreshToken(t *testing.T) {
	jwks := newJWKSServer(t)

	mints := 0
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))

		mints++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "minted-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokens.Close()

	adapter := newAdapter(t, oidc.Config{
		JWKSURL:  jwks.URL,
		TokenURL: tokens.URL,
		ClientID: "client-1",
	})

	idToken := signIDToken(t, jwt.MapClaims{
		"sub": "auth0|123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, adapter.SetCredential(idToken, "refresh-1"))

	token, err := adapter.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "minted-token", token)

	// cached source serves the second call without another mint
	token, err = adapter.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "minted-token", token)
	assert.Equal(t, 1, mints)

	// forceRefresh drops the cached source
	_, err = adapter.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, mints)
}

func TestTokenAfterClearCredential(t *testing.T) {
	jwks := newJWKSServer(t)
	adapter := newAdapter(t, oidc.Config{JWKSURL: jwks.URL, TokenURL: "https://id.example.com/oauth/token"})

	idToken := signIDToken(t, jwt.MapClaims{
		"sub": "auth0|123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, adapter.SetCredential(idToken, "refresh-1"))

	adapter.ClearCredential()

	token, err := adapter.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, token)
}
