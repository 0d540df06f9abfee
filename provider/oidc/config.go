// Package oidc implements session.IdentityAdapter against an OIDC-style
// identity provider: credentials are provider-issued ID tokens verified
// through the tenant JWKS, and short-lived bearer tokens are minted through
// the provider token endpoint.
package oidc

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config holds provider configuration for credential verification and token
// minting.
type Config struct {
	// JWKSURL is the provider JWK Set endpoint used to verify ID tokens.
	JWKSURL string

	// TokenURL is the provider token endpoint used to mint bearer tokens
	// from a refresh token.
	TokenURL string

	// ClientID is the application client ID.
	ClientID string

	// ClientSecret is the application client secret (optional for public
	// clients).
	ClientSecret string

	// Issuer validates the iss claim when set.
	Issuer string

	// Audience validates the aud claim when set.
	Audience []string

	// RefreshInterval is how often the JWKS cache refreshes in the
	// background. Default: 1 hour.
	RefreshInterval time.Duration

	// HTTPClient overrides the client used for token endpoint calls.
	HTTPClient *http.Client
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWKSURL) == "" {
		return fmt.Errorf("oidc: JWKS URL is required")
	}
	return nil
}
