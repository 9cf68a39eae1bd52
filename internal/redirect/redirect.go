// Package redirect constrains post-login redirect targets to same-origin
// paths, preventing open redirects through client-writable cookies or
// query parameters.
package redirect

import (
	"net/url"
	"strings"
)

// Sanitize returns a safe same-origin redirect target. Absolute URLs are
// only accepted when their host:port matches baseURL exactly, and are
// rebuilt as path+query+fragment so the scheme and host can never leak
// into a Location header. Relative targets are normalized to start with
// a slash. Empty or unparseable input falls back to "/".
func Sanitize(baseURL, target string) string {
	if target == "" {
		return "/"
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "/"
	}

	if parsed.Scheme != "" || parsed.Host != "" {
		base, err := url.Parse(baseURL)
		if err != nil || parsed.Host != base.Host {
			return "/"
		}
		path := parsed.Path
		if path == "" {
			path = "/"
		}
		var b strings.Builder
		b.WriteString(path)
		if parsed.RawQuery != "" {
			b.WriteString("?")
			b.WriteString(parsed.RawQuery)
		}
		if parsed.Fragment != "" {
			b.WriteString("#")
			b.WriteString(parsed.Fragment)
		}
		return b.String()
	}

	if !strings.HasPrefix(target, "/") {
		return "/" + target
	}
	return target
}
