// Package cookie owns the gateway's cookie lifecycle: the long-lived
// session pair and the short-lived login-attempt trio.
package cookie

import (
	"net/http"

	"github.com/neko-rr/auth-front/internal/log"
)

// Cookie names. The sb- prefix matches what provider client libraries
// expect, so a browser session set here is visible to them.
const (
	AccessToken    = "sb-access-token"
	RefreshToken   = "sb-refresh-token"
	OAuthState     = "sb-oauth-state"
	PKCEVerifier   = "sb-pkce-verifier"
	RedirectTarget = "sb-redirect-to"
)

// attemptMaxAge bounds one login attempt. Long enough for a slow
// provider consent page, short enough that a stale attempt cannot be
// replayed later.
const attemptMaxAge = 600

// Policy carries the deployment-level cookie flags shared by every
// cookie the gateway sets.
type Policy struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// Manager sets and clears cookies under a fixed policy.
type Manager struct {
	policy Policy
}

// NewManager creates a cookie manager with the given policy.
func NewManager(policy Policy) *Manager {
	return &Manager{policy: policy}
}

// SetSession sets the access-token cookie (self-expiring with the token
// when expiresIn is positive) and, if present, the refresh-token cookie
// with session-length lifetime.
func (m *Manager) SetSession(w http.ResponseWriter, accessToken, refreshToken string, expiresIn int) {
	m.set(w, AccessToken, accessToken, true, expiresIn)
	if refreshToken != "" {
		m.set(w, RefreshToken, refreshToken, true, 0)
	}

	log.LogTraceWithFields("cookie", "Session cookies set", map[string]any{
		"expiresIn": expiresIn,
		"secure":    m.policy.Secure,
	})
}

// ClearSession removes both session cookies. Safe to call when no
// session was ever issued.
func (m *Manager) ClearSession(w http.ResponseWriter) {
	m.clear(w, AccessToken, true)
	m.clear(w, RefreshToken, true)
	log.LogTraceWithFields("cookie", "Session cookies cleared", nil)
}

// SetAttempt persists one login attempt: the state token and redirect
// target are readable by client script (not secret), the PKCE verifier
// is HttpOnly.
func (m *Manager) SetAttempt(w http.ResponseWriter, state, verifier, redirectTo string) {
	m.set(w, OAuthState, state, false, attemptMaxAge)
	m.set(w, RedirectTarget, redirectTo, false, attemptMaxAge)
	m.set(w, PKCEVerifier, verifier, true, attemptMaxAge)
}

// ClearAttempt removes all three attempt cookies, regardless of whether
// the attempt succeeded. A half-used attempt must never be replayable.
func (m *Manager) ClearAttempt(w http.ResponseWriter) {
	m.clear(w, OAuthState, false)
	m.clear(w, RedirectTarget, false)
	m.clear(w, PKCEVerifier, true)
}

// ClearAdoptionResidue removes the attempt cookies a client-driven
// session adoption leaves behind (state and redirect; the verifier was
// never issued to that flow).
func (m *Manager) ClearAdoptionResidue(w http.ResponseWriter) {
	m.clear(w, OAuthState, false)
	m.clear(w, RedirectTarget, false)
}

func (m *Manager) set(w http.ResponseWriter, name, value string, httpOnly bool, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.policy.Domain,
		HttpOnly: httpOnly,
		Secure:   m.policy.Secure,
		SameSite: m.policy.SameSite,
		MaxAge:   maxAge,
	})
}

func (m *Manager) clear(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   m.policy.Domain,
		HttpOnly: httpOnly,
		Secure:   m.policy.Secure,
		SameSite: m.policy.SameSite,
		MaxAge:   -1,
	})
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
