package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/neko-rr/auth-front/internal/attempt"
	"github.com/neko-rr/auth-front/internal/cookie"
	"github.com/neko-rr/auth-front/internal/hostmatch"
	"github.com/neko-rr/auth-front/internal/idp"
	jsonwriter "github.com/neko-rr/auth-front/internal/json"
	"github.com/neko-rr/auth-front/internal/log"
	"github.com/neko-rr/auth-front/internal/redirect"
)

// ProviderClient is the slice of the auth provider the handlers need.
type ProviderClient interface {
	AuthorizeURL(appBaseURL, challenge, state string) string
	AuthorizeEndpoint() string
	ExchangeCode(ctx context.Context, code, verifier string) (*idp.Session, error)
	PasswordSignIn(ctx context.Context, email, password string) (*idp.Session, error)
	SignUp(ctx context.Context, email, password, redirectTo string) error
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
	VerifyToken(ctx context.Context, accessToken string) *idp.User
	Health(ctx context.Context) error
}

// AuthHandlers implements the browser-facing auth endpoints.
type AuthHandlers struct {
	provider   ProviderClient
	configured bool
	appBaseURL string
	cookies    *cookie.Manager
}

// NewAuthHandlers creates handlers backed by the given provider client.
// configured reports whether the provider URL and key were present at
// startup; when false, endpoints that need the provider fail per request
// instead of the process refusing to start.
func NewAuthHandlers(provider ProviderClient, configured bool, appBaseURL string, cookies *cookie.Manager) *AuthHandlers {
	return &AuthHandlers{
		provider:   provider,
		configured: configured,
		appBaseURL: appBaseURL,
		cookies:    cookies,
	}
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// requestBaseURL resolves the origin to hand to the provider as the
// callback base, rejecting requests whose Host header does not match the
// configured application URL.
func (h *AuthHandlers) requestBaseURL(r *http.Request) (string, error) {
	return hostmatch.BaseURL(h.appBaseURL, requestScheme(r), r.Host)
}

// LoginPage serves the sign-in page. An optional redirect_to query
// parameter is sanitized and threaded through the flow.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	target := "/"
	if base, err := h.requestBaseURL(r); err == nil {
		target = redirect.Sanitize(base, r.URL.Query().Get("redirect_to"))
	}
	renderPage(w, http.StatusOK, "login.html", loginPageData{RedirectTo: target})
}

// StartLogin begins the authorization code flow: it mints the state and
// PKCE verifier, stores them in attempt cookies, and redirects the
// browser to the provider's authorize endpoint.
func (h *AuthHandlers) StartLogin(w http.ResponseWriter, r *http.Request) {
	if !h.configured {
		renderErrorPage(w, http.StatusInternalServerError,
			"Sign-in unavailable",
			"The auth provider URL and key are not configured on this server.")
		return
	}
	baseURL, err := h.requestBaseURL(r)
	if err != nil {
		renderErrorPage(w, http.StatusBadRequest,
			"Unexpected host",
			"This request arrived with a Host header that does not match the configured application URL.")
		return
	}

	att, err := attempt.Begin(baseURL, r.URL.Query().Get("redirect_to"))
	if err != nil {
		log.LogErrorWithFields("auth", "failed to begin sign-in attempt", map[string]any{
			"error": err.Error(),
		})
		renderErrorPage(w, http.StatusInternalServerError,
			"Sign-in unavailable",
			"Could not start the sign-in flow. Try again in a moment.")
		return
	}

	h.cookies.SetAttempt(w, att.State, att.Verifier, att.RedirectTo)
	http.Redirect(w, r, h.provider.AuthorizeURL(baseURL, att.Challenge, att.State), http.StatusFound)
}

// Callback completes the authorization code flow. Attempt cookies are
// cleared on every terminal path so a failed attempt cannot be replayed.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	baseURL, err := h.requestBaseURL(r)
	if err != nil {
		renderErrorPage(w, http.StatusBadRequest,
			"Unexpected host",
			"This request arrived with a Host header that does not match the configured application URL.")
		return
	}

	q := r.URL.Query()
	if provErr := q.Get("error"); provErr != "" {
		h.cookies.ClearAttempt(w)
		msg := provErr
		if desc := q.Get("error_description"); desc != "" {
			msg += ": " + desc
		}
		renderErrorPage(w, http.StatusBadRequest, "Sign-in was not completed", msg)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.cookies.ClearAttempt(w)
		renderErrorPage(w, http.StatusBadRequest,
			"Sign-in was not completed",
			"The provider did not return an authorization code.")
		return
	}

	storedState, _ := cookie.Get(r, cookie.OAuthState)
	storedVerifier, _ := cookie.Get(r, cookie.PKCEVerifier)
	verifier, err := attempt.Complete(q.Get("state"), storedState, storedVerifier)
	if err != nil {
		h.cookies.ClearAttempt(w)
		switch {
		case errors.Is(err, attempt.ErrStateMismatch):
			renderErrorPage(w, http.StatusBadRequest,
				"Sign-in attempt expired",
				"The state of this sign-in attempt does not match the one that started it.",
				"Make sure cookies are enabled for this site.",
				"Start the sign-in again from a single tab.")
		default:
			renderErrorPage(w, http.StatusBadRequest,
				"Sign-in attempt expired",
				"The sign-in attempt is missing its verification cookie. It may have taken longer than 10 minutes.")
		}
		return
	}

	session, err := h.provider.ExchangeCode(r.Context(), code, verifier)
	if err != nil {
		h.cookies.ClearAttempt(w)
		log.LogErrorWithFields("auth", "code exchange failed", map[string]any{
			"error": err.Error(),
		})
		renderErrorPage(w, http.StatusBadRequest,
			"Sign-in was not completed",
			"The provider rejected the authorization code. Start the sign-in again.")
		return
	}

	target := "/"
	if stored, err := cookie.Get(r, cookie.RedirectTarget); err == nil {
		target = redirect.Sanitize(baseURL, stored)
	}

	h.cookies.SetSession(w, session.AccessToken, session.RefreshToken, session.ExpiresIn)
	h.cookies.ClearAttempt(w)
	http.Redirect(w, r, target, http.StatusFound)
}

type adoptRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// checkRequestHost enforces the Host defense on the JSON endpoints:
// a mismatched Host must never mint cookies, which would scope them to
// the wrong origin. Returns the resolved base URL on success.
func (h *AuthHandlers) checkRequestHost(w http.ResponseWriter, r *http.Request) (string, bool) {
	baseURL, err := h.requestBaseURL(r)
	if err != nil {
		jsonwriter.WriteBadRequest(w, "request host does not match the configured application URL")
		return "", false
	}
	return baseURL, true
}

// AdoptSession accepts tokens obtained client-side (for example from the
// URL fragment after email confirmation) and promotes them to cookies,
// verifying the access token against the provider first.
func (h *AuthHandlers) AdoptSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.checkRequestHost(w, r); !ok {
		return
	}

	var req adoptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonwriter.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if req.AccessToken == "" {
		jsonwriter.WriteBadRequest(w, "access_token is required")
		return
	}
	user := h.provider.VerifyToken(r.Context(), req.AccessToken)
	if user == nil {
		jsonwriter.WriteUnauthorized(w, "the access token is not valid")
		return
	}
	h.cookies.SetSession(w, req.AccessToken, req.RefreshToken, req.ExpiresIn)
	h.cookies.ClearAdoptionResidue(w)
	jsonwriter.Write(w, map[string]any{"ok": true})
}

type emailRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RedirectTo string `json:"redirect_to"`
}

func (h *AuthHandlers) decodeEmailRequest(w http.ResponseWriter, r *http.Request, needPassword bool) (emailRequest, bool) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonwriter.WriteBadRequest(w, "invalid JSON body")
		return req, false
	}
	req.Email = idp.NormalizeEmail(req.Email)
	if req.Email == "" || (needPassword && req.Password == "") {
		if needPassword {
			jsonwriter.WriteBadRequest(w, "email and password are required")
		} else {
			jsonwriter.WriteBadRequest(w, "email is required")
		}
		return req, false
	}
	return req, true
}

// writeProviderError maps a provider failure to a response: rejections
// relay the provider's body as detail, transport failures are a 500.
func writeProviderError(w http.ResponseWriter, kind string, err error) {
	var authErr *idp.AuthError
	if errors.As(err, &authErr) {
		jsonwriter.WriteErrorDetail(w, http.StatusBadRequest, kind, authErr.Detail())
		return
	}
	log.LogErrorWithFields("auth", "provider request failed", map[string]any{
		"kind":  kind,
		"error": err.Error(),
	})
	jsonwriter.WriteInternalServerError(w, "could not reach the auth provider")
}

// EmailSignIn signs in with email and password and sets session cookies.
func (h *AuthHandlers) EmailSignIn(w http.ResponseWriter, r *http.Request) {
	if !h.configured {
		jsonwriter.WriteInternalServerError(w, "auth provider is not configured")
		return
	}
	if _, ok := h.checkRequestHost(w, r); !ok {
		return
	}
	req, ok := h.decodeEmailRequest(w, r, true)
	if !ok {
		return
	}
	session, err := h.provider.PasswordSignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeProviderError(w, "signin_failed", err)
		return
	}
	h.cookies.SetSession(w, session.AccessToken, session.RefreshToken, session.ExpiresIn)
	h.cookies.ClearAttempt(w)
	jsonwriter.Write(w, map[string]any{"ok": true})
}

// EmailSignUp registers a new account. No session is issued; the user
// must confirm their email and sign in.
func (h *AuthHandlers) EmailSignUp(w http.ResponseWriter, r *http.Request) {
	if !h.configured {
		jsonwriter.WriteInternalServerError(w, "auth provider is not configured")
		return
	}
	baseURL, ok := h.checkRequestHost(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeEmailRequest(w, r, true)
	if !ok {
		return
	}
	if err := h.provider.SignUp(r.Context(), req.Email, req.Password, confirmRedirect(baseURL, req.RedirectTo)); err != nil {
		writeProviderError(w, "signup_failed", err)
		return
	}
	jsonwriter.Write(w, map[string]any{
		"ok":      true,
		"message": "Signed up. Confirm your email address before signing in.",
	})
}

// EmailReset requests a password reset email.
func (h *AuthHandlers) EmailReset(w http.ResponseWriter, r *http.Request) {
	if !h.configured {
		jsonwriter.WriteInternalServerError(w, "auth provider is not configured")
		return
	}
	baseURL, ok := h.checkRequestHost(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeEmailRequest(w, r, false)
	if !ok {
		return
	}
	if err := h.provider.RequestPasswordReset(r.Context(), req.Email, confirmRedirect(baseURL, req.RedirectTo)); err != nil {
		writeProviderError(w, "reset_failed", err)
		return
	}
	jsonwriter.Write(w, map[string]any{
		"ok":      true,
		"message": "Password reset email sent.",
	})
}

// confirmRedirect builds the absolute URL the provider sends the user
// back to from confirmation and reset emails. Confirmation lands on the
// login page unless the caller asked for somewhere specific.
func confirmRedirect(baseURL, target string) string {
	if target == "" {
		target = "/login"
	}
	return baseURL + redirect.Sanitize(baseURL, target)
}

// Logout clears the session cookies. The POST form returns JSON for the
// page script; the GET form exists for plain links and bookmarks.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSession(w)
	jsonwriter.Write(w, map[string]any{"ok": true})
}

func (h *AuthHandlers) LogoutRedirect(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Consent renders an approval page for third-party OAuth clients
// authorizing against this deployment, relaying the request parameters
// to the provider on approval.
func (h *AuthHandlers) Consent(w http.ResponseWriter, r *http.Request) {
	if !h.configured {
		renderErrorPage(w, http.StatusInternalServerError,
			"Authorization unavailable",
			"The auth provider URL and key are not configured on this server.")
		return
	}
	if _, err := h.requestBaseURL(r); err != nil {
		renderErrorPage(w, http.StatusBadRequest,
			"Unexpected host",
			"This request arrived with a Host header that does not match the configured application URL.")
		return
	}

	q := r.URL.Query()
	approve := url.Values{}
	approve.Set("client_id", q.Get("client_id"))
	approve.Set("redirect_uri", q.Get("redirect_uri"))
	responseType := q.Get("response_type")
	if responseType == "" {
		responseType = "code"
	}
	approve.Set("response_type", responseType)
	if state := q.Get("state"); state != "" {
		approve.Set("state", state)
	}
	if scope := q.Get("scope"); scope != "" {
		approve.Set("scope", scope)
	}
	if challenge := q.Get("code_challenge"); challenge != "" {
		approve.Set("code_challenge", challenge)
		method := q.Get("code_challenge_method")
		if method == "" {
			method = "S256"
		}
		approve.Set("code_challenge_method", method)
	}

	denyURL := "/"
	if redirectURI := q.Get("redirect_uri"); redirectURI != "" {
		deny := url.Values{}
		deny.Set("error", "access_denied")
		if state := q.Get("state"); state != "" {
			deny.Set("state", state)
		}
		denyURL = redirectURI + "?" + deny.Encode()
	}

	renderPage(w, http.StatusOK, "consent.html", consentPageData{
		ClientID:   q.Get("client_id"),
		Scope:      q.Get("scope"),
		ApproveURL: h.provider.AuthorizeEndpoint() + "?" + approve.Encode(),
		DenyURL:    denyURL,
	})
}

// Health reports process liveness. With ?probe=1 it also checks the
// provider's auth health endpoint, separating "provider unreachable"
// from "provider rejecting credentials" when diagnosing sign-in issues.
func (h *AuthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("probe") == "" {
		jsonwriter.Write(w, map[string]any{"status": "ok"})
		return
	}

	providerReport := map[string]any{"configured": h.configured}
	if h.configured {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.provider.Health(ctx); err != nil {
			providerReport["reachable"] = false
			providerReport["error"] = err.Error()
		} else {
			providerReport["reachable"] = true
		}
	}
	jsonwriter.Write(w, map[string]any{
		"status":   "ok",
		"provider": providerReport,
	})
}
