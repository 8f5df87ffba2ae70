package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
	"github.com/vvmprov/vvm3-subscriber/pkg/events"
	"github.com/vvmprov/vvm3-subscriber/pkg/vmg"
)

type recordingSink struct {
	got []events.Event
}

func (r *recordingSink) Handle(event events.Event) {
	r.got = append(r.got, event)
}

func newTestClient(t *testing.T, timeout time.Duration) (*Client, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	client, err := NewClient(nil, sink, timeout)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(client.Close)
	return client, sink
}

func TestResolveGateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		txID, err := vmg.ExtractField(string(body), vmg.TagTransactionID)
		if err != nil {
			t.Errorf("request missing transaction id: %v", err)
		}
		if op, _ := vmg.ExtractField(string(body), "operation"); op != vmg.OperationGetSPGURL {
			t.Errorf("operation = %q, want %q", op, vmg.OperationGetSPGURL)
		}
		w.Write([]byte("<transactionid>" + txID + "</transactionid><spgurl>http://spg.example/x</spgurl>"))
	}))
	defer server.Close()

	client, sink := newTestClient(t, time.Second)

	resolution, err := client.ResolveGateway(context.Background(), server.URL, "6175551234", "Pixel 9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolution.GatewayURL != "http://spg.example/x" {
		t.Errorf("gateway url = %q, want http://spg.example/x", resolution.GatewayURL)
	}
	if resolution.TransactionID == "" {
		t.Error("transaction id not reported")
	}
	if len(sink.got) != 0 {
		t.Errorf("no events expected on success, got %v", sink.got)
	}
}

func TestResolveGatewayConfigurationMissing(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client, sink := newTestClient(t, time.Second)

	_, err := client.ResolveGateway(context.Background(), "", "6175551234", "Pixel 9")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.KindOf(err) != errors.KindConfigurationMissing {
		t.Errorf("kind = %v, want configuration_missing", errors.KindOf(err))
	}
	if called {
		t.Error("no network call may be made when the VMG URL is absent")
	}
	if len(sink.got) != 0 {
		t.Errorf("no events expected, got %v", sink.got)
	}
}

func TestResolveGatewayTransactionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<transactionid>999</transactionid><spgurl>http://spg.example/x</spgurl>"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, time.Second)

	_, err := client.ResolveGateway(context.Background(), server.URL, "6175551234", "Pixel 9")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.KindOf(err) != errors.KindTransactionMismatch {
		t.Errorf("kind = %v, want transaction_mismatch", errors.KindOf(err))
	}
}

func TestResolveGatewayMissingSPGURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		txID, _ := vmg.ExtractField(string(body), vmg.TagTransactionID)
		w.Write([]byte("<transactionid>" + txID + "</transactionid>"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, time.Second)

	_, err := client.ResolveGateway(context.Background(), server.URL, "6175551234", "Pixel 9")
	if errors.KindOf(err) != errors.KindFieldNotFound {
		t.Errorf("kind = %v, want field_not_found", errors.KindOf(err))
	}
}

func TestResolveGatewayTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client, sink := newTestClient(t, 30*time.Millisecond)

	_, err := client.ResolveGateway(context.Background(), server.URL, "6175551234", "Pixel 9")
	if err == nil {
		t.Fatal("expected timeout, got nil")
	}
	if errors.KindOf(err) != errors.KindTimeout {
		t.Errorf("kind = %v, want timeout", errors.KindOf(err))
	}
	if len(sink.got) != 1 || sink.got[0] != events.ManagementGatewayConnectionFailed {
		t.Errorf("expected one management_gateway_connection_failed event, got %v", sink.got)
	}
}

func TestFetchProvisioningPage(t *testing.T) {
	const pageHTML = `<html><a href="http://sub.example/y">Subscribe to Basic Visual Voice Mail</a></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		want := map[string]string{
			"VZW_MDN":            "6175551234",
			"VZW_SERVICE":        "BVVM",
			"DEVICE_MODEL":       "DROID_4G",
			"APP_TOKEN":          "q8e3t5u2o1",
			"SPG_LANGUAGE_PARAM": "ENGLISH",
		}
		for key, value := range want {
			if got := r.PostFormValue(key); got != value {
				t.Errorf("param %s = %q, want %q", key, got, value)
			}
		}
		w.Write([]byte(pageHTML))
	}))
	defer server.Close()

	client, _ := newTestClient(t, time.Second)

	got, err := client.FetchProvisioningPage(context.Background(), server.URL, "6175551234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != pageHTML {
		t.Errorf("page = %q, want %q", got, pageHTML)
	}
}

func TestFetchProvisioningPageTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client, sink := newTestClient(t, 30*time.Millisecond)

	_, err := client.FetchProvisioningPage(context.Background(), server.URL, "6175551234")
	if errors.KindOf(err) != errors.KindTimeout {
		t.Errorf("kind = %v, want timeout", errors.KindOf(err))
	}
	if len(sink.got) != 1 || sink.got[0] != events.GatewayConnectionFailed {
		t.Errorf("expected one gateway_connection_failed event, got %v", sink.got)
	}
}

func TestInvokeLink(t *testing.T) {
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	defer server.Close()

	client, _ := newTestClient(t, time.Second)

	if err := client.InvokeLink(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPost {
		t.Errorf("method = %s, want POST", method)
	}
}

func TestInvokeLinkHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, sink := newTestClient(t, time.Second)

	err := client.InvokeLink(context.Background(), server.URL)
	if errors.KindOf(err) != errors.KindTransport {
		t.Errorf("kind = %v, want transport", errors.KindOf(err))
	}
	if len(sink.got) != 1 || sink.got[0] != events.GatewayConnectionFailed {
		t.Errorf("expected one gateway_connection_failed event, got %v", sink.got)
	}
}

// The subscribe link must be clicked with the session cookie issued during
// the page fetch.
func TestSessionCookieCarriedAcrossCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "deadbeef", Path: "/"})
		w.Write([]byte("<html></html>"))
	})
	var gotCookie string
	mux.HandleFunc("/subscribe", func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("JSESSIONID"); err == nil {
			gotCookie = cookie.Value
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, _ := newTestClient(t, time.Second)

	if _, err := client.FetchProvisioningPage(context.Background(), server.URL+"/page", "6175551234"); err != nil {
		t.Fatalf("page fetch failed: %v", err)
	}
	if err := client.InvokeLink(context.Background(), server.URL+"/subscribe"); err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if gotCookie != "deadbeef" {
		t.Errorf("session cookie not carried to subscribe link, got %q", gotCookie)
	}
}

// A fresh client must start with an empty jar: no cookie leakage between
// attempts.
func TestFreshClientHasNoCookies(t *testing.T) {
	var sawCookie bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "set") {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "stale", Path: "/"})
			w.Write([]byte("ok"))
			return
		}
		if _, err := r.Cookie("JSESSIONID"); err == nil {
			sawCookie = true
		}
	}))
	defer server.Close()

	first, _ := newTestClient(t, time.Second)
	if _, err := first.FetchProvisioningPage(context.Background(), server.URL+"/set", "6175551234"); err != nil {
		t.Fatalf("page fetch failed: %v", err)
	}

	second, _ := newTestClient(t, time.Second)
	if err := second.InvokeLink(context.Background(), server.URL+"/check"); err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if sawCookie {
		t.Error("second attempt must not see the first attempt's session cookie")
	}
}
