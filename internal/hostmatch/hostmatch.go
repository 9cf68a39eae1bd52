// Package hostmatch resolves the canonical base URL for a request and
// defends against Host header spoofing. Cookies scoped to the wrong host
// are a common source of silent login loops, so a mismatch is an error
// rather than a fallback.
package hostmatch

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrUnconfigured is returned when no base URL is configured and the
// request host is not a recognized local development host.
var ErrUnconfigured = fmt.Errorf("app base URL is not configured")

// BaseURL returns the canonical base URL for a request.
//
// When appBaseURL is configured it is authoritative: the request's Host
// must match its host:port exactly, otherwise an error is returned. When
// it is not configured, loopback hosts (127.0.0.1, localhost) are allowed
// for development and the base URL is derived from the request.
func BaseURL(appBaseURL, scheme, requestHost string) (string, error) {
	if appBaseURL != "" {
		parsed, err := url.Parse(appBaseURL)
		if err != nil || parsed.Host == "" {
			return "", fmt.Errorf("app base URL %q is invalid", appBaseURL)
		}
		if requestHost != parsed.Host {
			return "", fmt.Errorf("host mismatch: expected=%s actual=%s", parsed.Host, requestHost)
		}
		return strings.TrimSuffix(appBaseURL, "/"), nil
	}

	if isLoopback(requestHost) {
		return fmt.Sprintf("%s://%s", scheme, requestHost), nil
	}

	return "", ErrUnconfigured
}

func isLoopback(host string) bool {
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		h = host
	}
	return h == "127.0.0.1" || h == "localhost"
}
