// Package gateway performs the three HTTP exchanges of the provisioning
// flow: the management-gateway query, the provisioning page fetch, and the
// subscribe-link invocation. One Client serves exactly one attempt.
package gateway

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
	"github.com/vvmprov/vvm3-subscriber/pkg/events"
	"github.com/vvmprov/vvm3-subscriber/pkg/vmg"
)

// DefaultRequestTimeout bounds each individual exchange.
const DefaultRequestTimeout = 30 * time.Second

// Self-provisioning POST parameters, VVM3 API 2.1.0 12.3.
const (
	spgMDNParam     = "VZW_MDN"
	spgServiceParam = "VZW_SERVICE"
	spgServiceBasic = "BVVM"

	spgDeviceModelParam = "DEVICE_MODEL"
	// Value for all android devices.
	spgDeviceModelAndroid = "DROID_4G"

	spgAppTokenParam = "APP_TOKEN"
	spgAppToken      = "q8e3t5u2o1"

	spgLanguageParam = "SPG_LANGUAGE_PARAM"
	spgLanguageEN    = "ENGLISH"
)

// Dialer establishes connections over the routed network handle supplied by
// the caller. A nil Dialer uses the default route.
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// Client is the per-attempt HTTP session. The cookie jar is scoped to the
// client so session cookies from the gateway's web flow never leak across
// attempts.
type Client struct {
	http    *http.Client
	events  events.Sink
	timeout time.Duration
}

// NewClient creates a client bound to the given network route. timeout <= 0
// selects DefaultRequestTimeout.
func NewClient(dial Dialer, sink events.Sink, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar init failed")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if dial != nil {
		transport.DialContext = dial
	}

	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Client{
		http:    &http.Client{Jar: jar, Transport: transport},
		events:  sink,
		timeout: timeout,
	}, nil
}

// Close releases the session's connections. The cookie jar dies with the
// client.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Resolution is the result of a successful management-gateway query.
type Resolution struct {
	GatewayURL    string
	TransactionID string
}

// ResolveGateway queries the voicemail management gateway for the
// self-provisioning gateway URL. An absent vmgURL is a handled condition:
// no network call is made and the attempt aborts with configuration_missing.
func (c *Client) ResolveGateway(ctx context.Context, vmgURL, subscriberNumber, deviceModel string) (*Resolution, error) {
	if vmgURL == "" {
		slog.Error("vmg_url_unknown")
		return nil, errors.New(errors.KindConfigurationMissing, "voicemail management gateway url unknown")
	}

	transactionID := vmg.NewTransactionID()
	body := vmg.EncodeRequest(transactionID, subscriberNumber, vmg.OperationGetSPGURL, deviceModel)

	slog.Info("vmg_request", "operation", vmg.OperationGetSPGURL, "transaction_id", transactionID)

	response, err := c.post(ctx, vmgURL, "text/xml", strings.NewReader(string(body)))
	if err != nil {
		c.events.Handle(events.ManagementGatewayConnectionFailed)
		return nil, errors.Wrap(err, "vmg request failed")
	}

	echoed, err := vmg.ExtractField(response, vmg.TagTransactionID)
	if err != nil {
		return nil, errors.Wrap(err, "vmg response")
	}
	if echoed != transactionID {
		slog.Error("vmg_transaction_mismatch", "sent", transactionID, "received", echoed)
		return nil, errors.Newf(errors.KindTransactionMismatch, "sent %s, received %s", transactionID, echoed)
	}

	gatewayURL, err := vmg.ExtractField(response, vmg.TagSPGURL)
	if err != nil {
		return nil, errors.Wrap(err, "vmg response")
	}

	slog.Info("spg_url_resolved", "transaction_id", transactionID)
	return &Resolution{GatewayURL: gatewayURL, TransactionID: transactionID}, nil
}

// FetchProvisioningPage posts the fixed self-provisioning parameter set to
// the gateway and returns the raw page for link extraction. The response
// cookie is retained in the jar; the subscribe link must be clicked with it.
func (c *Client) FetchProvisioningPage(ctx context.Context, gatewayURL, subscriberNumber string) (string, error) {
	params := url.Values{}
	params.Set(spgMDNParam, subscriberNumber)
	params.Set(spgServiceParam, spgServiceBasic)
	params.Set(spgDeviceModelParam, spgDeviceModelAndroid)
	params.Set(spgAppTokenParam, spgAppToken)
	// The page is never shown to the user, so language is fixed to English.
	params.Set(spgLanguageParam, spgLanguageEN)

	slog.Info("spg_page_request", "service", spgServiceBasic)

	pageHTML, err := c.post(ctx, gatewayURL, "application/x-www-form-urlencoded", strings.NewReader(params.Encode()))
	if err != nil {
		c.events.Handle(events.GatewayConnectionFailed)
		return "", errors.Wrap(err, "spg page fetch failed")
	}

	return pageHTML, nil
}

// InvokeLink posts an empty body to the subscribe link. Completion of the
// HTTP call only triggers the carrier-side activation; the result arrives
// out of band, so success here does not imply subscription success.
func (c *Client) InvokeLink(ctx context.Context, subscribeLink string) error {
	slog.Info("subscribe_link_invoke")

	if _, err := c.post(ctx, subscribeLink, "application/x-www-form-urlencoded", nil); err != nil {
		c.events.Handle(events.GatewayConnectionFailed)
		return errors.Wrap(err, "subscribe link invoke failed")
	}

	return nil
}

func (c *Client) post(ctx context.Context, target, contentType string, body io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return "", errors.WrapKind(err, errors.KindTransport, "bad request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("gateway_http_error", "status", resp.StatusCode, "url", target)
		return "", errors.Newf(errors.KindTransport, "unexpected status %d", resp.StatusCode)
	}

	return string(raw), nil
}

// classify maps a transport-layer failure into the protocol taxonomy:
// expired bounds become timeout, everything else transport.
func classify(err error) error {
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.WrapKind(err, errors.KindTimeout, "request timed out")
	}
	return errors.WrapKind(err, errors.KindTransport, "request failed")
}
