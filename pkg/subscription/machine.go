// Package subscription implements the provisioning attempt state machine.
// It sequences the gateway exchanges, the subscribe-link discovery and
// invocation, and the out-of-band confirmation wait using the superfly/fsm
// library. One Machine drives exactly one attempt; a new attempt requires a
// fresh Machine with a fresh gateway client.
package subscription

import (
	"context"
	"sync"

	"github.com/superfly/fsm"

	"github.com/vvmprov/vvm3-subscriber/pkg/db"
	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
	"github.com/vvmprov/vvm3-subscriber/pkg/events"
	"github.com/vvmprov/vvm3-subscriber/pkg/gateway"
	"github.com/vvmprov/vvm3-subscriber/pkg/security"
	"github.com/vvmprov/vvm3-subscriber/pkg/sms"
)

// Handlers are the external collaborators invoked on terminal transitions.
// Any nil handler is skipped.
type Handlers struct {
	// Commit receives the confirmation payload when the subscriber is ready.
	Commit func(ctx context.Context, msg sms.StatusMessage) error

	// Continue receives the confirmation payload when the subscriber is new
	// and full provisioning proceeds elsewhere.
	Continue func(ctx context.Context, msg sms.StatusMessage) error

	// Abort is called exactly once when the attempt fails.
	Abort func(err error)
}

// Machine holds dependencies for one attempt's FSM transitions
type Machine struct {
	repo      *db.Repository
	client    *gateway.Client
	waiter    *sms.Waiter
	validator *security.Validator
	events    events.Sink
	handlers  Handlers
	vmgURL    string

	// Live confirmation subscription, opened before the subscribe link is
	// invoked so a fast confirmation is not dropped.
	pending *sms.Pending

	abortOnce sync.Once
}

// NewMachine creates a new FSM machine with dependencies. vmgURL may be
// empty; the attempt then aborts with configuration_missing before any
// network call.
func NewMachine(
	repo *db.Repository,
	client *gateway.Client,
	waiter *sms.Waiter,
	validator *security.Validator,
	sink events.Sink,
	handlers Handlers,
	vmgURL string,
) *Machine {
	return &Machine{
		repo:      repo,
		client:    client,
		waiter:    waiter,
		validator: validator,
		events:    sink,
		handlers:  handlers,
		vmgURL:    vmgURL,
	}
}

// Register registers the subscription FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[SubscribeRequest, SubscribeResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[SubscribeRequest, SubscribeResponse](manager, "vvm3-subscribe").
		Start(StateResolveGateway, m.handleResolveGateway).
		To(StateFetchPage, m.handleFetchPage).
		To(StateExtractLink, m.handleExtractLink).
		To(StateInvokeLink, m.handleInvokeLink).
		To(StateAwaitConfirmation, m.handleAwaitConfirmation).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}
