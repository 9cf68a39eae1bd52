package server

import (
	"context"
	"net/http"
	"time"

	"github.com/neko-rr/auth-front/internal/cookie"
	"github.com/neko-rr/auth-front/internal/idp"
	"github.com/neko-rr/auth-front/internal/log"
	"github.com/neko-rr/auth-front/internal/principal"
)

// MiddlewareFunc wraps an http.Handler with additional behavior.
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware applies middlewares so the first listed runs outermost.
func ChainMiddleware(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// responseWriterDelegator records the status code for request logging.
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// NewLoggerMiddleware logs each request with method, path, status and
// duration.
func NewLoggerMiddleware(component string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			delegator := &responseWriterDelegator{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(delegator, r)
			log.LogDebugWithFields(component, "request completed", map[string]any{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   delegator.status,
				"duration": time.Since(start).String(),
			})
		})
	}
}

// NewRecoverMiddleware converts handler panics into 500 responses.
func NewRecoverMiddleware(component string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.LogErrorWithFields(component, "panic in handler", map[string]any{
						"path":  r.URL.Path,
						"panic": rec,
					})
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NewSecurityHeadersMiddleware sets baseline browser hardening headers on
// every response.
func NewSecurityHeadersMiddleware() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}

// TokenVerifier checks an access token against the auth provider. A nil
// result means the token did not resolve to a user.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, accessToken string) *idp.User
}

// NewGateMiddleware enforces authentication on every non-public path. It
// also intercepts the provider's bad_oauth_state error on any path, since
// the provider redirects wherever the stale attempt pointed.
//
// Requests that pass the gate carry the verified principal in their
// context.
func NewGateMiddleware(verifier TokenVerifier, cookies *cookie.Manager, public *PublicPaths) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("error_code") == "bad_oauth_state" {
				cookies.ClearAttempt(w)
				renderErrorPage(w, http.StatusBadRequest,
					"Sign-in attempt expired",
					"The sign-in attempt is no longer valid. This usually happens when the flow was restarted in another tab or took too long.",
					"Make sure cookies are enabled for this site.",
					"Start the sign-in again from a single tab.",
				)
				return
			}

			if public.IsPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, err := cookie.Get(r, cookie.AccessToken)
			if err != nil || token == "" {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			user := verifier.VerifyToken(r.Context(), token)
			if user == nil {
				cookies.ClearSession(w)
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			ctx := principal.WithPrincipal(r.Context(), principal.Principal{
				ID:          user.ID,
				Email:       user.Email,
				AccessToken: token,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
