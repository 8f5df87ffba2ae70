// Package sms models the out-of-band STATUS message channel: decoding of the
// carrier's STATUS body, confirmation sources, and the bounded wait for the
// confirmation correlated to a provisioning attempt.
package sms

import (
	"fmt"
	"strings"
)

// StatusPrefix starts every OMTP STATUS message body.
const StatusPrefix = "//VVM:STATUS:"

// STATUS field keys used by this flow.
const (
	KeyProvisioningStatus = "st"
	KeyReturnCode         = "rc"
)

// Provisioning status codes carried in the "st" field.
const (
	SubscriberNew         = "N"
	SubscriberReady       = "R"
	SubscriberProvisioned = "P"
	SubscriberUnknown     = "U"
	SubscriberBlocked     = "B"
)

// StatusMessage is one decoded STATUS message.
type StatusMessage struct {
	Fields map[string]string
}

// ProvisioningStatus returns the subscriber provisioning status code, or ""
// when the field is absent.
func (m StatusMessage) ProvisioningStatus() string {
	return m.Fields[KeyProvisioningStatus]
}

// ReturnCode returns the carrier return code, or "" when absent.
func (m StatusMessage) ReturnCode() string {
	return m.Fields[KeyReturnCode]
}

// ParseStatusMessage decodes a raw STATUS body of the form
// //VVM:STATUS:st=R;rc=0;... into its key/value fields. Fields without an =
// are ignored; later duplicates overwrite earlier ones.
func ParseStatusMessage(body string) (StatusMessage, error) {
	rest, ok := strings.CutPrefix(body, StatusPrefix)
	if !ok {
		return StatusMessage{}, fmt.Errorf("not a STATUS message: %q", truncate(body, 40))
	}

	fields := make(map[string]string)
	for _, pair := range strings.Split(rest, ";") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return StatusMessage{Fields: fields}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
