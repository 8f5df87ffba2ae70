// Package errors provides error wrapping utilities and the provisioning
// failure taxonomy used to classify terminal attempt outcomes.
package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context information.
// If err is nil, it returns nil without wrapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Kind categorizes a provisioning failure. Every terminal failure maps to
// exactly one kind; callers branch on kinds, never on message text.
type Kind int

const (
	KindUnknown Kind = iota

	// KindConfigurationMissing means a required input (the VMG URL) was
	// absent before any network call was made. Not retryable.
	KindConfigurationMissing

	// KindTimeout means a bounded wait expired. A brand-new attempt may be
	// started; nothing is retried within the failed attempt.
	KindTimeout

	// KindTransactionMismatch means the VMG response carried a different
	// transaction id than the request. Protocol-integrity violation.
	KindTransactionMismatch

	// KindFieldNotFound means an expected tag was absent from a response.
	KindFieldNotFound

	// KindLinkNotFound means the provisioning page had no subscribe link.
	KindLinkNotFound

	// KindUnexpectedStatus means the confirmation carried a provisioning
	// status outside the known set.
	KindUnexpectedStatus

	// KindTransport covers non-timeout transport failures (DNS, refused
	// connections, bad status codes).
	KindTransport
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindConfigurationMissing: "configuration_missing",
	KindTimeout:              "timeout",
	KindTransactionMismatch:  "transaction_mismatch",
	KindFieldNotFound:        "field_not_found",
	KindLinkNotFound:         "link_not_found",
	KindUnexpectedStatus:     "unexpected_status",
	KindTransport:            "transport",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ProvisioningError is a categorized failure of one provisioning attempt.
type ProvisioningError struct {
	kind Kind
	msg  string
	err  error
}

// New creates a ProvisioningError with the given kind and message.
func New(kind Kind, msg string) *ProvisioningError {
	return &ProvisioningError{kind: kind, msg: msg}
}

// Newf creates a ProvisioningError with a formatted message.
func Newf(kind Kind, format string, args ...any) *ProvisioningError {
	return &ProvisioningError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// WrapKind wraps err with a kind and context message. Returns nil if err is nil.
func WrapKind(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &ProvisioningError{kind: kind, msg: msg, err: err}
}

func (e *ProvisioningError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *ProvisioningError) Unwrap() error {
	return e.err
}

// Kind returns the failure category.
func (e *ProvisioningError) Kind() Kind {
	return e.kind
}

// KindOf walks the error chain and returns the kind of the first
// ProvisioningError found, or KindUnknown.
func KindOf(err error) Kind {
	var pe *ProvisioningError
	if errors.As(err, &pe) {
		return pe.kind
	}
	return KindUnknown
}
