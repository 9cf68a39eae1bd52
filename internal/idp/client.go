// Package idp is a thin client for the hosted auth provider's REST API.
// It covers the five remote operations the gateway needs: authorize-URL
// construction, PKCE code exchange, token verification, the password
// grant, and the signup/recover endpoints.
package idp

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
)

// requestTimeout bounds every provider call. The callback handler blocks
// the browser's redirect while the exchange runs, so an unresponsive
// provider must fail the request rather than hold it.
const requestTimeout = 10 * time.Second

// provider is the single supported social login provider.
const provider = "google"

// Session is the credential set returned by the provider's token
// endpoint. The refresh token is opaque storage only; the gateway never
// parses it.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// User is the principal subset of the provider's user object that the
// gateway consumes.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthError is a non-2xx response from the provider's auth API. These
// are business failures (bad credentials, expired code), not system
// faults, and carry the provider's body for diagnosis.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// Detail returns the provider's error body as JSON, wrapping non-JSON
// bodies so callers can always relay a structured detail field.
func (e *AuthError) Detail() json.RawMessage {
	if json.Valid([]byte(e.Body)) {
		return json.RawMessage(e.Body)
	}
	wrapped, err := json.Marshal(map[string]string{"message": e.Body})
	if err != nil {
		return json.RawMessage(`{"message":"unreadable provider error"}`)
	}
	return wrapped
}

// Client calls the provider's auth API with the publishable key. It is
// immutable after construction and safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a provider client. baseURL is the provider's root URL
// without a trailing slash; apiKey is the publishable key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// AuthorizeURL builds the provider's authorize endpoint URL for a PKCE
// authorization code flow. appBaseURL is this gateway's own base URL;
// the callback lands on {appBaseURL}/auth/callback. The anti-CSRF state
// rides the provider-native state parameter, which the provider echoes
// back on the callback.
func (c *Client) AuthorizeURL(appBaseURL, challenge, state string) string {
	params := url.Values{}
	params.Set("provider", provider)
	params.Set("redirect_to", appBaseURL+"/auth/callback")
	params.Set("state", state)
	params.Set("code_challenge", challenge)
	params.Set("code_challenge_method", "S256")
	return c.baseURL + "/auth/v1/authorize?" + params.Encode()
}

// AuthorizeEndpoint returns the bare authorize endpoint URL, used by the
// consent relay which forwards its own query parameters.
func (c *Client) AuthorizeEndpoint() string {
	return c.baseURL + "/auth/v1/authorize"
}

// ExchangeCode exchanges an authorization code for a session using the
// PKCE grant. Returns *AuthError for provider rejections.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	session, err := c.postForSession(ctx, "/auth/v1/token?grant_type=pkce", map[string]any{
		"auth_code":     code,
		"code_verifier": verifier,
	})
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}
	return session, nil
}

// PasswordSignIn performs the password grant. Returns *AuthError for
// provider rejections (e.g. invalid credentials).
func (c *Client) PasswordSignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.postForSession(ctx, "/auth/v1/token?grant_type=password", map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("password signin: %w", err)
	}
	return session, nil
}

// SignUp registers a new user. No session is returned: the provider
// sends a confirmation email whose link lands on redirectTo.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) error {
	resp, err := c.postJSON(ctx, "/auth/v1/signup", map[string]any{
		"email":       email,
		"password":    password,
		"data":        map[string]any{},
		"redirect_to": redirectTo,
	})
	if err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &AuthError{Status: resp.StatusCode, Body: readLimited(resp.Body, 4096)}
	}
	return nil
}

// RequestPasswordReset asks the provider to send a password reset email
// whose link lands on redirectTo.
func (c *Client) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	resp, err := c.postJSON(ctx, "/auth/v1/recover", map[string]any{
		"email":       email,
		"redirect_to": redirectTo,
	})
	if err != nil {
		return fmt.Errorf("password reset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &AuthError{Status: resp.StatusCode, Body: readLimited(resp.Body, 4096)}
	}
	return nil
}

// VerifyToken resolves the principal for an access token via the
// provider's user-info endpoint. An invalid or expired token is an
// expected condition, not a fault, so any failure returns nil.
func (c *Client) VerifyToken(ctx context.Context, accessToken string) *User {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil
	}
	if user.ID == "" {
		return nil
	}
	return &user
}

// Health probes the provider's auth health endpoint. It distinguishes
// an unreachable provider from a misconfigured key, which present
// identically as sign-in failures otherwise.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &AuthError{Status: resp.StatusCode, Body: readLimited(resp.Body, 2048)}
	}
	return nil
}

func (c *Client) postForSession(ctx context.Context, path string, payload map[string]any) (*Session, error) {
	resp, err := c.postJSON(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &AuthError{Status: resp.StatusCode, Body: readLimited(resp.Body, 4096)}
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decoding session response: %w", err)
	}
	if session.AccessToken == "" {
		return nil, &AuthError{Status: resp.StatusCode, Body: `{"message":"no access_token in session response"}`}
	}
	return &session, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload map[string]any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling provider: %w", err)
	}
	return resp, nil
}

// readLimited reads up to limit bytes and returns the content, turning
// read failures into a descriptive placeholder instead of silencing
// them. Intended for response bodies destined for error messages.
func readLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return string(body)
}

// NormalizeEmail normalizes an email address before it is sent to the
// provider: trimmed and lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
