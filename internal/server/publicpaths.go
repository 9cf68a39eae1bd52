package server

import "strings"

// PublicPaths is the allow-list of paths that bypass the request gate.
// Keeping it a standalone value makes the list auditable and testable
// apart from the router wiring.
type PublicPaths struct {
	prefixes []string
	exact    map[string]struct{}
}

// NewPublicPaths builds a matcher from prefix patterns and exact paths.
func NewPublicPaths(prefixes []string, exact []string) *PublicPaths {
	exactSet := make(map[string]struct{}, len(exact))
	for _, p := range exact {
		exactSet[p] = struct{}{}
	}
	return &PublicPaths{prefixes: prefixes, exact: exactSet}
}

// DefaultPublicPaths returns the gateway's fixed allow-list: the auth
// endpoints themselves, static assets, and the framework-internal asset
// paths the protected UI loads before any user code runs.
func DefaultPublicPaths() *PublicPaths {
	return NewPublicPaths(
		[]string{
			"/auth/login",
			"/auth/callback",
			"/auth/session",
			"/auth/logout",
			"/auth/email/signin",
			"/auth/email/signup",
			"/auth/email/reset",
			"/oauth/consent",
			"/assets/",
			"/static/",
			"/_dash-component-suites/",
			"/_dash-layout",
			"/_dash-dependencies",
			"/_favicon.ico",
		},
		[]string{
			"/login",
			"/logout",
			"/health",
		},
	)
}

// IsPublic reports whether a request path may pass the gate without
// authentication.
func (p *PublicPaths) IsPublic(path string) bool {
	if _, ok := p.exact[path]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
