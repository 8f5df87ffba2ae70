package subscription

import (
	"context"
	"log/slog"

	"github.com/superfly/fsm"

	"github.com/vvmprov/vvm3-subscriber/pkg/db"
	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
	"github.com/vvmprov/vvm3-subscriber/pkg/events"
	"github.com/vvmprov/vvm3-subscriber/pkg/page"
	"github.com/vvmprov/vvm3-subscriber/pkg/sms"
)

// handleResolveGateway queries the management gateway for the
// self-provisioning gateway URL
func (m *Machine) handleResolveGateway(ctx context.Context, req *fsm.Request[SubscribeRequest, SubscribeResponse]) (*fsm.Response[SubscribeResponse], error) {
	slog.Info("fsm_state_resolve_gateway", "subscriber", req.Msg.SubscriberNumber)

	resp := req.W.Msg
	if resp == nil {
		resp = &SubscribeResponse{}
	}

	if err := m.resolveGateway(ctx, req.Msg, resp); err != nil {
		return nil, m.fail(resp, err)
	}
	return fsm.NewResponse(resp), nil
}

// handleFetchPage retrieves the provisioning page from the gateway
func (m *Machine) handleFetchPage(ctx context.Context, req *fsm.Request[SubscribeRequest, SubscribeResponse]) (*fsm.Response[SubscribeResponse], error) {
	slog.Info("fsm_state_fetch_page", "subscriber", req.Msg.SubscriberNumber)

	resp := req.W.Msg
	if resp == nil {
		return nil, m.fail(&SubscribeResponse{}, errors.New(errors.KindUnknown, "response not initialized"))
	}

	if err := m.fetchPage(ctx, req.Msg, resp); err != nil {
		return nil, m.fail(resp, err)
	}
	return fsm.NewResponse(resp), nil
}

// handleExtractLink locates the subscribe link in the provisioning page
func (m *Machine) handleExtractLink(ctx context.Context, req *fsm.Request[SubscribeRequest, SubscribeResponse]) (*fsm.Response[SubscribeResponse], error) {
	slog.Info("fsm_state_extract_link", "subscriber", req.Msg.SubscriberNumber)

	resp := req.W.Msg
	if resp == nil {
		return nil, m.fail(&SubscribeResponse{}, errors.New(errors.KindUnknown, "response not initialized"))
	}

	if err := m.extractLink(resp); err != nil {
		return nil, m.fail(resp, err)
	}
	return fsm.NewResponse(resp), nil
}

// handleInvokeLink clicks the subscribe link
func (m *Machine) handleInvokeLink(ctx context.Context, req *fsm.Request[SubscribeRequest, SubscribeResponse]) (*fsm.Response[SubscribeResponse], error) {
	slog.Info("fsm_state_invoke_link", "subscriber", req.Msg.SubscriberNumber)

	resp := req.W.Msg
	if resp == nil {
		return nil, m.fail(&SubscribeResponse{}, errors.New(errors.KindUnknown, "response not initialized"))
	}

	if err := m.invokeLink(ctx, req.Msg, resp); err != nil {
		return nil, m.fail(resp, err)
	}
	return fsm.NewResponse(resp), nil
}

// handleAwaitConfirmation waits for the out-of-band confirmation and decides
// the terminal outcome
func (m *Machine) handleAwaitConfirmation(ctx context.Context, req *fsm.Request[SubscribeRequest, SubscribeResponse]) (*fsm.Response[SubscribeResponse], error) {
	slog.Info("fsm_state_await_confirmation", "subscriber", req.Msg.SubscriberNumber)

	resp := req.W.Msg
	if resp == nil {
		return nil, m.fail(&SubscribeResponse{}, errors.New(errors.KindUnknown, "response not initialized"))
	}

	if err := m.awaitConfirmation(ctx, req.Msg, resp); err != nil {
		return nil, m.fail(resp, err)
	}
	return fsm.NewResponse(resp), nil
}

// handleComplete persists the terminal status
func (m *Machine) handleComplete(ctx context.Context, req *fsm.Request[SubscribeRequest, SubscribeResponse]) (*fsm.Response[SubscribeResponse], error) {
	slog.Info("fsm_state_complete", "subscriber", req.Msg.SubscriberNumber)

	resp := req.W.Msg
	if resp == nil {
		return nil, m.fail(&SubscribeResponse{}, errors.New(errors.KindUnknown, "response not initialized"))
	}

	if err := m.complete(resp); err != nil {
		return nil, m.fail(resp, err)
	}
	return fsm.NewResponse(resp), nil
}

func (m *Machine) resolveGateway(ctx context.Context, req *SubscribeRequest, resp *SubscribeResponse) error {
	if err := m.validator.ValidateSubscriberNumber(req.SubscriberNumber); err != nil {
		return errors.WrapKind(err, errors.KindConfigurationMissing, "bad subscriber number")
	}

	attempt := &db.Attempt{
		SubscriberNumber: req.SubscriberNumber,
		Status:           db.StatusPending,
	}
	if err := m.repo.Create(attempt); err != nil {
		return errors.Wrap(err, "failed to create attempt record")
	}
	resp.AttemptID = attempt.ID

	// An empty VMG URL flows through so the client reports it as
	// configuration_missing without any network call.
	if m.vmgURL != "" {
		if err := m.validator.ValidateEndpointURL(m.vmgURL); err != nil {
			return errors.WrapKind(err, errors.KindConfigurationMissing, "bad management gateway url")
		}
	}

	resolution, err := m.client.ResolveGateway(ctx, m.vmgURL, req.SubscriberNumber, req.DeviceModel)
	if err != nil {
		return err
	}

	if err := m.validator.ValidateEndpointURL(resolution.GatewayURL); err != nil {
		return errors.WrapKind(err, errors.KindFieldNotFound, "bad gateway url in response")
	}

	resp.GatewayURL = resolution.GatewayURL
	resp.TransactionID = resolution.TransactionID

	attempt.TransactionID = resolution.TransactionID
	attempt.GatewayURL = resolution.GatewayURL
	if err := m.repo.Update(attempt); err != nil {
		return errors.Wrap(err, "failed to update attempt record")
	}

	return nil
}

func (m *Machine) fetchPage(ctx context.Context, req *SubscribeRequest, resp *SubscribeResponse) error {
	pageHTML, err := m.client.FetchProvisioningPage(ctx, resp.GatewayURL, req.SubscriberNumber)
	if err != nil {
		return err
	}
	resp.PageHTML = pageHTML
	return nil
}

func (m *Machine) extractLink(resp *SubscribeResponse) error {
	link, err := page.FindLinkByText(resp.PageHTML, page.BasicSubscribeLinkText)
	if err != nil {
		return err
	}

	if err := m.validator.ValidateEndpointURL(link); err != nil {
		return errors.WrapKind(err, errors.KindLinkNotFound, "bad subscribe link in page")
	}

	resp.SubscribeLink = link
	// The page served its purpose; no need to persist it further.
	resp.PageHTML = ""
	return nil
}

func (m *Machine) invokeLink(ctx context.Context, req *SubscribeRequest, resp *SubscribeResponse) error {
	// Subscribe before the POST: the confirmation can arrive before the
	// HTTP response does.
	pending, err := m.waiter.Subscribe(req.SubscriberNumber)
	if err != nil {
		return err
	}
	m.pending = pending

	if err := m.client.InvokeLink(ctx, resp.SubscribeLink); err != nil {
		return err
	}

	if err := m.repo.UpdateStatus(resp.AttemptID, db.StatusSubscribing, "", ""); err != nil {
		return errors.Wrap(err, "failed to update attempt record")
	}

	return nil
}

func (m *Machine) awaitConfirmation(ctx context.Context, req *SubscribeRequest, resp *SubscribeResponse) error {
	pending := m.pending
	m.pending = nil
	if pending == nil {
		// Resumed attempt; the original subscription died with the process.
		var err error
		pending, err = m.waiter.Subscribe(req.SubscriberNumber)
		if err != nil {
			return err
		}
	}

	outcome, err := pending.Wait(ctx)
	if err != nil {
		return err
	}

	switch outcome.Kind {
	case sms.OutcomeReady:
		if m.handlers.Commit != nil {
			if err := m.handlers.Commit(ctx, outcome.Message); err != nil {
				return errors.Wrap(err, "commit handler failed")
			}
		}
		resp.Status = db.StatusReady

	case sms.OutcomeNew:
		if m.handlers.Continue != nil {
			if err := m.handlers.Continue(ctx, outcome.Message); err != nil {
				return errors.Wrap(err, "continue handler failed")
			}
		}
		resp.Status = db.StatusNew

	default:
		m.events.Handle(events.GatewayConnectionFailed)
		return errors.Newf(errors.KindUnexpectedStatus,
			"status is not ready or new after subscribing: %q", outcome.Message.ProvisioningStatus())
	}

	return nil
}

func (m *Machine) complete(resp *SubscribeResponse) error {
	if err := m.repo.UpdateStatus(resp.AttemptID, resp.Status, "", ""); err != nil {
		return errors.Wrap(err, "failed to update attempt record")
	}
	slog.Info("fsm_complete", "attempt_id", resp.AttemptID, "status", resp.Status)
	return nil
}

// fail converts any step failure into the single terminal failure path:
// category logged, attempt record updated, abort collaborator signalled once,
// FSM aborted with no retry.
func (m *Machine) fail(resp *SubscribeResponse, err error) error {
	kind := errors.KindOf(err)
	slog.Error("subscription_attempt_failed", "kind", kind.String(), "error", err)

	if m.pending != nil {
		m.pending.Cancel()
		m.pending = nil
	}

	resp.Status = db.StatusFailed
	resp.ErrorMessage = err.Error()

	if resp.AttemptID != 0 {
		if dbErr := m.repo.UpdateStatus(resp.AttemptID, db.StatusFailed, kind.String(), err.Error()); dbErr != nil {
			slog.Error("attempt_status_update_failed", "attempt_id", resp.AttemptID, "error", dbErr)
		}
	}

	m.abortOnce.Do(func() {
		if m.handlers.Abort != nil {
			m.handlers.Abort(err)
		}
	})

	return fsm.Abort(err)
}
