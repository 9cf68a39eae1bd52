// Package attempt models one OAuth login attempt. All attempt state
// lives in the browser's cookies; the server keeps nothing, so Begin
// and Complete are pure functions over generated and received values.
package attempt

import (
	"errors"
	"fmt"

	"github.com/neko-rr/auth-front/internal/pkce"
	"github.com/neko-rr/auth-front/internal/redirect"
)

var (
	// ErrStateMismatch means the state returned by the provider does not
	// match the state issued at login, or either side is missing.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrMissingVerifier means the PKCE verifier cookie is absent, so the
	// code exchange cannot be bound to this attempt.
	ErrMissingVerifier = errors.New("missing pkce verifier")
)

// Attempt holds the values persisted as cookies for one login attempt.
type Attempt struct {
	State      string
	Verifier   string
	Challenge  string
	RedirectTo string
}

// Begin starts a login attempt: a fresh state token, a fresh PKCE pair,
// and the sanitized post-login redirect target.
func Begin(baseURL, redirectTarget string) (*Attempt, error) {
	state, err := pkce.GenerateStateToken()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	verifier, err := pkce.GenerateVerifier()
	if err != nil {
		return nil, fmt.Errorf("generating pkce verifier: %w", err)
	}

	return &Attempt{
		State:      state,
		Verifier:   verifier,
		Challenge:  pkce.Challenge(verifier),
		RedirectTo: redirect.Sanitize(baseURL, redirectTarget),
	}, nil
}

// Complete validates the callback against the stored attempt and
// returns the verifier for the code exchange. The caller must clear
// all attempt cookies whatever the outcome; a half-used attempt is
// never valid again.
func Complete(receivedState, storedState, storedVerifier string) (string, error) {
	if receivedState == "" || storedState == "" || receivedState != storedState {
		return "", ErrStateMismatch
	}
	if storedVerifier == "" {
		return "", ErrMissingVerifier
	}
	return storedVerifier, nil
}
