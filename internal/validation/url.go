// Package validation checks user supplied URLs before they reach the
// fetcher or the origin checks.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// dangerous characters are rejected anywhere in a URL. They have no place in
// a project base URL and usually point at a shell quoting mistake.
const dangerous = ";&|`$()<>\"'\\\n\r "

// ValidateURL validates an http or https URL with a host, such as
// project.base_url.
func ValidateURL(rawURL string) error {
	if i := strings.IndexAny(rawURL, dangerous); i >= 0 {
		return fmt.Errorf("URL contains dangerous character: %q", rawURL[i])
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}
	if parsed.User != nil {
		return fmt.Errorf("URL must not contain credentials")
	}

	return nil
}

// ValidateOrigin validates a browser origin: scheme, host and optional port,
// without path, query or fragment.
func ValidateOrigin(origin string) error {
	if err := ValidateURL(origin); err != nil {
		return err
	}

	parsed, _ := url.Parse(origin)
	if strings.TrimSuffix(parsed.Path, "/") != "" || parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("origin %q must not have a path, query or fragment", origin)
	}

	return nil
}
