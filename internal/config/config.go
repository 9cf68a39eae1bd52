// Package config loads the gateway configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// MaskTail returns a masked representation keeping the last four
// characters for log diagnostics. Never returns the full value.
func (s Secret) MaskTail() string {
	if s == "" {
		return ""
	}
	str := string(s)
	if len(str) < 4 {
		return "***" + str
	}
	return "***" + str[len(str)-4:]
}

// Config is the process-wide, read-only gateway configuration.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string

	// ProviderURL is the identity provider's base URL.
	ProviderURL string

	// PublishableKey is the provider API key safe to expose to browsers.
	PublishableKey Secret

	// SecretKey is the provider admin key. Never sent to browsers and
	// never attached to outbound requests made on a user's behalf.
	SecretKey Secret

	// AppBaseURL is the canonical public URL of this application. When
	// set, inbound request hosts must match it exactly.
	AppBaseURL string

	CookieSecure   bool
	CookieSameSite http.SameSite
	CookieDomain   string
}

// rawEnv holds unprocessed environment values, including the legacy
// aliases the deployment tooling still sets.
type rawEnv struct {
	Addr                 string `env:"ADDR" envDefault:":8050"`
	PublicProviderURL    string `env:"PUBLIC_SUPABASE_URL"`
	ProviderURL          string `env:"SUPABASE_URL"`
	PublicPublishableKey string `env:"PUBLIC_SUPABASE_PUBLISHABLE_DEFAULT_KEY"`
	PublishableKey       string `env:"SUPABASE_KEY"`
	SecretKey            string `env:"SUPABASE_SECRET_DEFAULT_KEY"`
	AppBaseURL           string `env:"APP_BASE_URL"`
	CookieSecure         bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieSameSite       string `env:"COOKIE_SAMESITE" envDefault:"Lax"`
	CookieDomain         string `env:"COOKIE_DOMAIN"`
}

// Load reads configuration from the environment. If envFile is non-empty
// it is loaded first without overriding variables already set.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		// Missing file is fine: production sets real env vars.
		_ = godotenv.Load(envFile)
	}

	var raw rawEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	cfg := Config{
		Addr:           raw.Addr,
		ProviderURL:    strings.TrimSuffix(coalesce(raw.PublicProviderURL, raw.ProviderURL), "/"),
		PublishableKey: Secret(coalesce(raw.PublicPublishableKey, raw.PublishableKey)),
		SecretKey:      Secret(raw.SecretKey),
		AppBaseURL:     strings.TrimSuffix(raw.AppBaseURL, "/"),
		CookieSecure:   raw.CookieSecure,
		CookieDomain:   raw.CookieDomain,
	}

	sameSite, err := parseSameSite(raw.CookieSameSite)
	if err != nil {
		return Config{}, err
	}
	cfg.CookieSameSite = sameSite

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures. The provider URL and key are deliberately not
// required here: the login handlers report their absence per-request so
// the rest of the app can still serve.
func (c Config) Validate() error {
	if c.AppBaseURL != "" {
		parsed, err := url.Parse(c.AppBaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("APP_BASE_URL %q is not an absolute URL", c.AppBaseURL)
		}
	}
	if c.ProviderURL != "" {
		if _, err := url.Parse(c.ProviderURL); err != nil {
			return fmt.Errorf("provider URL %q is invalid: %w", c.ProviderURL, err)
		}
	}
	return nil
}

func parseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "lax", "":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("invalid COOKIE_SAMESITE value: %s", s)
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
