package netutil

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateDownloadURL checks that a catalog-supplied download location is
// an absolute http(s) URL with a host. Download URLs arrive from untrusted
// manifests and must never smuggle in another scheme.
func ValidateDownloadURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid download url %q: %w", raw, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("invalid download url %q: scheme %q not allowed", raw, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid download url %q: missing host", raw)
	}
	return nil
}

// StripCredentials removes user:password@ from a URL for safe logging.
// Returns the input unchanged when it cannot be parsed.
func StripCredentials(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}

// NormalizeURL returns a stable form suitable for cache keys: lowercased
// scheme and host, default ports and credentials removed, sorted query.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.User = nil
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	host := parsed.Hostname()
	port := parsed.Port()
	if (parsed.Scheme == "https" && port == "443") ||
		(parsed.Scheme == "http" && port == "80") {
		parsed.Host = host
	}

	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}
	if parsed.RawQuery != "" {
		parsed.RawQuery = parsed.Query().Encode()
	}
	return parsed.String()
}
