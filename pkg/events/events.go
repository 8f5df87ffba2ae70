// Package events defines the discrete protocol failure events emitted to an
// external observability collaborator while an attempt runs.
package events

import "log/slog"

// Event names a protocol-level failure signal.
type Event string

const (
	// ManagementGatewayConnectionFailed fires when the voicemail management
	// gateway exchange does not complete.
	ManagementGatewayConnectionFailed Event = "management_gateway_connection_failed"

	// GatewayConnectionFailed fires when the self-provisioning gateway page
	// fetch or the subscribe-link invocation does not complete.
	GatewayConnectionFailed Event = "gateway_connection_failed"

	// ConfirmationTimedOut fires when no confirmation message arrives within
	// the bounded wait after the subscribe link was invoked.
	ConfirmationTimedOut Event = "confirmation_timed_out"
)

// Sink receives protocol events. Implementations must be safe for use from a
// single attempt's worker goroutine.
type Sink interface {
	Handle(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event Event)

func (f SinkFunc) Handle(event Event) {
	f(event)
}

// LogSink records every event through slog. Used when no external handler is
// wired in.
func LogSink() Sink {
	return SinkFunc(func(event Event) {
		slog.Warn("protocol_event", "event", string(event))
	})
}
