package sms

import (
	"context"
	"log/slog"
	"time"

	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
	"github.com/vvmprov/vvm3-subscriber/pkg/events"
)

// OutcomeKind classifies a decoded confirmation.
type OutcomeKind int

const (
	// OutcomeReady means the subscriber is fully provisioned.
	OutcomeReady OutcomeKind = iota
	// OutcomeNew means the subscriber was created and full provisioning
	// continues elsewhere.
	OutcomeNew
	// OutcomeUnexpected means the status code is outside the known set.
	OutcomeUnexpected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReady:
		return "ready"
	case OutcomeNew:
		return "new"
	default:
		return "unexpected"
	}
}

// Outcome is the decoded result of one confirmation message.
type Outcome struct {
	Kind    OutcomeKind
	Message StatusMessage
}

// DecodeOutcome maps a STATUS message's provisioning status onto an outcome.
func DecodeOutcome(msg StatusMessage) Outcome {
	switch msg.ProvisioningStatus() {
	case SubscriberReady:
		return Outcome{Kind: OutcomeReady, Message: msg}
	case SubscriberNew:
		return Outcome{Kind: OutcomeNew, Message: msg}
	default:
		return Outcome{Kind: OutcomeUnexpected, Message: msg}
	}
}

// Waiter performs the bounded wait for the confirmation correlated to an
// attempt.
type Waiter struct {
	source  Source
	events  events.Sink
	timeout time.Duration
}

// NewWaiter creates a waiter over source with the given per-wait bound.
func NewWaiter(source Source, sink events.Sink, timeout time.Duration) *Waiter {
	return &Waiter{source: source, events: sink, timeout: timeout}
}

// Pending is one live confirmation subscription. It must be released with
// Cancel on every exit path; Wait does so itself.
type Pending struct {
	ch      <-chan StatusMessage
	cancel  func()
	events  events.Sink
	timeout time.Duration
}

// Subscribe registers interest in the next confirmation for subscriber.
// Call before invoking the subscribe link so a confirmation racing the HTTP
// response is not dropped.
func (w *Waiter) Subscribe(subscriber string) (*Pending, error) {
	ch, cancel, err := w.source.Subscribe(subscriber)
	if err != nil {
		return nil, errors.Wrap(err, "confirmation subscribe failed")
	}
	return &Pending{ch: ch, cancel: cancel, events: w.events, timeout: w.timeout}, nil
}

// Await subscribes and waits in one step.
func (w *Waiter) Await(ctx context.Context, subscriber string) (Outcome, error) {
	pending, err := w.Subscribe(subscriber)
	if err != nil {
		return Outcome{}, err
	}
	return pending.Wait(ctx)
}

// Cancel releases the subscription. Safe to call more than once when the
// underlying source's cancel is.
func (p *Pending) Cancel() {
	p.cancel()
}

// Wait blocks until a confirmation arrives, the bound expires, or ctx ends.
// The subscription is released on every path.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	defer p.cancel()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case msg := <-p.ch:
		outcome := DecodeOutcome(msg)
		slog.Info("confirmation_received", "status", msg.ProvisioningStatus(), "outcome", outcome.Kind.String())
		return outcome, nil

	case <-timer.C:
		slog.Error("confirmation_wait_timed_out", "timeout", p.timeout)
		p.events.Handle(events.ConfirmationTimedOut)
		return Outcome{}, errors.Newf(errors.KindTimeout, "no confirmation within %s", p.timeout)

	case <-ctx.Done():
		slog.Error("confirmation_wait_cancelled", "error", ctx.Err())
		if ctx.Err() == context.DeadlineExceeded {
			p.events.Handle(events.ConfirmationTimedOut)
			return Outcome{}, errors.WrapKind(ctx.Err(), errors.KindTimeout, "confirmation wait")
		}
		return Outcome{}, errors.Wrap(ctx.Err(), "confirmation wait cancelled")
	}
}
