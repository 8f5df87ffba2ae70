// Package security validates externally sourced values before the protocol
// acts on them: the subscriber number handed in by the caller and the URLs
// scraped out of carrier responses.
package security

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validator checks protocol inputs. Extracted URLs come from carrier
// responses, so they are validated before any POST is issued to them.
type Validator struct {
	allowInsecure bool
}

// NewValidator creates a validator. allowInsecure permits plain-http
// endpoint URLs; carrier gateways historically serve the provisioning flow
// over http.
func NewValidator(allowInsecure bool) *Validator {
	return &Validator{allowInsecure: allowInsecure}
}

// ValidateSubscriberNumber checks that number looks like a phone number:
// optional leading +, then 7 to 15 digits.
func (v *Validator) ValidateSubscriberNumber(number string) error {
	digits := strings.TrimPrefix(number, "+")
	if len(digits) < 7 || len(digits) > 15 {
		slog.Error("security_number_validation_failed", "reason", "length", "length", len(digits))
		return fmt.Errorf("security: subscriber number must be 7-15 digits, got %d", len(digits))
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			slog.Error("security_number_validation_failed", "reason", "non_digit")
			return fmt.Errorf("security: subscriber number contains non-digit character")
		}
	}
	return nil
}

// ValidateEndpointURL checks that raw parses as an absolute http(s) URL with
// a host. Called on the VMG URL from configuration and on every URL extracted
// from a carrier response.
func (v *Validator) ValidateEndpointURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		slog.Error("security_url_validation_failed", "url", raw, "reason", "unparseable")
		return fmt.Errorf("security: invalid endpoint URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !v.allowInsecure {
			slog.Error("security_url_validation_failed", "url", raw, "reason", "insecure_scheme")
			return fmt.Errorf("security: plain http endpoint not allowed: %s", raw)
		}
	default:
		slog.Error("security_url_validation_failed", "url", raw, "reason", "bad_scheme", "scheme", u.Scheme)
		return fmt.Errorf("security: endpoint scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		slog.Error("security_url_validation_failed", "url", raw, "reason", "missing_host")
		return fmt.Errorf("security: endpoint URL has no host: %s", raw)
	}

	return nil
}
