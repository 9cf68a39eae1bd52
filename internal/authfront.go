package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neko-rr/auth-front/internal/config"
	"github.com/neko-rr/auth-front/internal/cookie"
	"github.com/neko-rr/auth-front/internal/idp"
	"github.com/neko-rr/auth-front/internal/log"
	"github.com/neko-rr/auth-front/internal/server"
)

// AuthFront is the assembled gateway: the auth endpoints, the request
// gate, and the protected application behind it.
type AuthFront struct {
	config     config.Config
	httpServer *server.HTTPServer
}

// NewAuthFront builds the gateway from configuration. app is the
// protected application handler; pass nil to use the built-in
// placeholder.
func NewAuthFront(cfg config.Config, app http.Handler) (*AuthFront, error) {
	configured := cfg.ProviderURL != "" && cfg.PublishableKey != ""
	if !configured {
		log.LogWarnWithFields("authfront", "auth provider not configured, sign-in endpoints will fail per request", map[string]any{
			"provider_url_set": cfg.ProviderURL != "",
			"key_set":          cfg.PublishableKey != "",
		})
	} else {
		log.LogInfoWithFields("authfront", "Building auth gateway", map[string]any{
			"provider_url": cfg.ProviderURL,
			"key":          cfg.PublishableKey.MaskTail(),
			"secret_key":   cfg.SecretKey.MaskTail(),
			"app_base_url": cfg.AppBaseURL,
		})
	}

	provider := idp.New(cfg.ProviderURL, string(cfg.PublishableKey))
	cookies := cookie.NewManager(cookie.Policy{
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
		Domain:   cfg.CookieDomain,
	})

	handlers := server.NewAuthHandlers(provider, configured, cfg.AppBaseURL, cookies)
	gate := server.NewGateMiddleware(provider, cookies, server.DefaultPublicPaths())
	router := server.NewRouter(handlers, gate, app)

	return &AuthFront{
		config:     cfg,
		httpServer: server.NewHTTPServer(router, cfg.Addr),
	}, nil
}

// Run starts the gateway and blocks until a shutdown signal or a server
// error, then shuts down gracefully.
func (a *AuthFront) Run() error {
	log.LogInfoWithFields("authfront", "Starting auth gateway", map[string]any{
		"addr": a.config.Addr,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := a.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("authfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("authfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("authfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	log.LogInfoWithFields("authfront", "Shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}
