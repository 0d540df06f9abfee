// Package client is the REST surface of the lessons backend consumed by the
// session subsystem: entitlement status, user upsert, and the per-lesson
// interaction mutations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeRecordNotFound = "BACKEND_RECORD_NOT_FOUND"
	TextCodeRequestFailed  = "BACKEND_REQUEST_FAILED"
	TextCodeBadStatus      = "BACKEND_BAD_STATUS"
)

// ErrRecordNotFound is returned when the backend has no record for the
// requested resource (HTTP 404).
var ErrRecordNotFound = errors.New("backend record not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(errors.CodeNotFound)

// TokenSource supplies the bearer token attached to authorized calls. An
// empty token means the call goes out unauthenticated and the backend is
// expected to reject or degrade.
type TokenSource func(ctx context.Context) (string, error)

// Config holds backend client configuration.
type Config struct {
	BaseURL     string
	TokenSource TokenSource
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// Client talks to the lessons backend.
type Client struct {
	baseURL     string
	tokenSource TokenSource
	httpClient  *http.Client
}

// New creates a backend client. A zero timeout defaults to 10s so an
// unreachable backend never blocks consumers indefinitely.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("client base URL is required", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:     base,
		tokenSource: cfg.TokenSource,
		httpClient:  httpClient,
	}, nil
}

// StatusResponse is the backend authorization record.
type StatusResponse struct {
	Role      string `json:"role"`
	IsPremium bool   `json:"isPremium"`
}

// UpsertUserRequest registers or refreshes a user record. The backend applies
// upsert semantics so the call is safe to repeat.
type UpsertUserRequest struct {
	IdentityID string `json:"identityId"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	PhotoURL   string `json:"photoURL,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// LikeResponse is the server-confirmed like state for the caller.
type LikeResponse struct {
	LikeCount int  `json:"likeCount"`
	Liked     bool `json:"liked"`
}

// FavoriteResponse is the server-confirmed favorite state for the caller.
type FavoriteResponse struct {
	FavoritesCount int  `json:"favoritesCount"`
	IsFavorite     bool `json:"isFavorite"`
}

// ReportRequest submits a moderation report for a lesson.
type ReportRequest struct {
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

// UserStatus fetches the authorization record by email. A 404 maps to
// ErrRecordNotFound so callers can trigger registration.
func (c *Client) UserStatus(ctx context.Context, email string) (*StatusResponse, error) {
	endpoint := c.baseURL + "/users/status?" + url.Values{"email": {email}}.Encode()

	out := &StatusResponse{}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertUser registers or refreshes the caller's user record.
func (c *Client) UpsertUser(ctx context.Context, req UpsertUserRequest) (*StatusResponse, error) {
	out := &StatusResponse{}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/users", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleLike toggles the caller's like on a lesson and returns the confirmed
// counts.
func (c *Client) ToggleLike(ctx context.Context, lessonID string) (*LikeResponse, error) {
	endpoint := fmt.Sprintf("%s/lessons/%s/like", c.baseURL, url.PathEscape(lessonID))

	out := &LikeResponse{}
	if err := c.do(ctx, http.MethodPost, endpoint, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleFavorite toggles the caller's favorite on a lesson and returns the
// confirmed counts.
func (c *Client) ToggleFavorite(ctx context.Context, lessonID, userID string) (*FavoriteResponse, error) {
	endpoint := fmt.Sprintf("%s/lessons/%s/toggle-favorite", c.baseURL, url.PathEscape(lessonID))

	out := &FavoriteResponse{}
	body := map[string]string{"userId": userID}
	if err := c.do(ctx, http.MethodPatch, endpoint, body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitReport files a moderation report. The response body is only an
// acknowledgement and is discarded.
func (c *Client) SubmitReport(ctx context.Context, lessonID string, req ReportRequest) error {
	endpoint := fmt.Sprintf("%s/lessons/%s/report", c.baseURL, url.PathEscape(lessonID))
	return c.do(ctx, http.MethodPost, endpoint, req, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokenSource != nil {
		token, err := c.tokenSource(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryAuth, "failed to mint bearer token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "backend request failed").
			WithTextCode(TextCodeRequestFailed).
			WithMetadata(map[string]any{
				"method":   method,
				"endpoint": endpoint,
			})
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrRecordNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.New("backend returned unexpected status", errors.CategoryOperation).
			WithTextCode(TextCodeBadStatus).
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{
				"method":   method,
				"endpoint": endpoint,
				"status":   resp.StatusCode,
				"body":     string(msg),
			})
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to decode backend response").
			WithTextCode(TextCodeRequestFailed)
	}

	return nil
}

// IsRecordNotFound will check for the 404 mapping
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeRecordNotFound
	}
	return false
}

// IsTransportError will check for network-level request failures
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeRequestFailed
	}
	return false
}
