package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neko-rr/auth-front/internal/principal"
)

// NewRouter assembles the gateway's HTTP surface. Every request passes
// through the gate; app handles whatever the auth routes do not claim.
func NewRouter(h *AuthHandlers, gate MiddlewareFunc, app http.Handler) http.Handler {
	if app == nil {
		app = DefaultAppHandler()
	}

	r := chi.NewRouter()
	r.Use(NewRecoverMiddleware("server"))
	r.Use(NewLoggerMiddleware("server"))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(gate)

	r.Get("/login", h.LoginPage)
	r.Get("/logout", h.LogoutRedirect)
	r.Get("/health", h.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.StartLogin)
		r.Get("/callback", h.Callback)
		r.Post("/session", h.AdoptSession)
		r.Post("/logout", h.Logout)
		r.Post("/email/signin", h.EmailSignIn)
		r.Post("/email/signup", h.EmailSignUp)
		r.Post("/email/reset", h.EmailReset)
	})

	r.Get("/oauth/consent", h.Consent)

	r.Handle("/*", app)
	return r
}

// DefaultAppHandler is the placeholder protected surface used when no
// downstream application handler is mounted. It exists so the gateway is
// exercisable end to end on its own.
func DefaultAppHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal.FromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("signed in as " + p.Email + "\n"))
	})
}
