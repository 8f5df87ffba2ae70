package sms

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
	"github.com/vvmprov/vvm3-subscriber/pkg/events"
)

type recordingSink struct {
	got []events.Event
}

func (r *recordingSink) Handle(event events.Event) {
	r.got = append(r.got, event)
}

func TestWaiterAwaitReady(t *testing.T) {
	source := NewChanSource()
	sink := &recordingSink{}
	waiter := NewWaiter(source, sink, time.Second)

	source.C <- StatusMessage{Fields: map[string]string{KeyProvisioningStatus: SubscriberReady}}

	outcome, err := waiter.Await(context.Background(), "6175551234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeReady {
		t.Errorf("outcome = %v, want ready", outcome.Kind)
	}
	if len(sink.got) != 0 {
		t.Errorf("no events expected, got %v", sink.got)
	}
}

func TestWaiterAwaitNew(t *testing.T) {
	source := NewChanSource()
	waiter := NewWaiter(source, &recordingSink{}, time.Second)

	source.C <- StatusMessage{Fields: map[string]string{KeyProvisioningStatus: SubscriberNew}}

	outcome, err := waiter.Await(context.Background(), "6175551234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeNew {
		t.Errorf("outcome = %v, want new", outcome.Kind)
	}
}

func TestWaiterAwaitUnexpected(t *testing.T) {
	source := NewChanSource()
	waiter := NewWaiter(source, &recordingSink{}, time.Second)

	source.C <- StatusMessage{Fields: map[string]string{KeyProvisioningStatus: SubscriberBlocked}}

	outcome, err := waiter.Await(context.Background(), "6175551234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeUnexpected {
		t.Errorf("outcome = %v, want unexpected", outcome.Kind)
	}
	if outcome.Message.ProvisioningStatus() != SubscriberBlocked {
		t.Errorf("raw status should be preserved, got %q", outcome.Message.ProvisioningStatus())
	}
}

func TestWaiterTimeout(t *testing.T) {
	source := NewChanSource()
	sink := &recordingSink{}
	waiter := NewWaiter(source, sink, 20*time.Millisecond)

	_, err := waiter.Await(context.Background(), "6175551234")
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if errors.KindOf(err) != errors.KindTimeout {
		t.Errorf("kind = %v, want timeout", errors.KindOf(err))
	}
	if len(sink.got) != 1 || sink.got[0] != events.ConfirmationTimedOut {
		t.Errorf("expected one confirmation_timed_out event, got %v", sink.got)
	}
}

func TestPendingSubscribeBeforeMessage(t *testing.T) {
	source := NewChanSource()
	waiter := NewWaiter(source, &recordingSink{}, time.Second)

	// The attempt subscribes first, then the confirmation arrives.
	pending, err := waiter.Subscribe("6175551234")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	source.C <- StatusMessage{Fields: map[string]string{KeyProvisioningStatus: SubscriberReady}}

	outcome, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeReady {
		t.Errorf("outcome = %v, want ready", outcome.Kind)
	}
}

func TestSpoolSourceDeliversNewFiles(t *testing.T) {
	dir := t.TempDir()

	// Pre-existing file must be treated as stale.
	stale := filepath.Join(dir, "old.sms")
	if err := os.WriteFile(stale, []byte("//VVM:STATUS:st=B;rc=9"), 0644); err != nil {
		t.Fatal(err)
	}

	source := NewSpoolSource(dir, 10*time.Millisecond)
	ch, cancel, err := source.Subscribe("6175551234")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	if err := os.WriteFile(filepath.Join(dir, "new.sms"), []byte("//VVM:STATUS:st=R;rc=0"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-ch:
		if msg.ProvisioningStatus() != SubscriberReady {
			t.Errorf("status = %q, want R (stale file must not be delivered)", msg.ProvisioningStatus())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered from spool")
	}
}

func TestSpoolSourceCancelStopsDelivery(t *testing.T) {
	dir := t.TempDir()
	source := NewSpoolSource(dir, 10*time.Millisecond)

	ch, cancel, err := source.Subscribe("6175551234")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	cancel()
	cancel() // must be safe to call twice

	if err := os.WriteFile(filepath.Join(dir, "late.sms"), []byte("//VVM:STATUS:st=R;rc=0"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case msg, ok := <-ch:
		if ok {
			t.Errorf("unexpected delivery after cancel: %v", msg)
		}
	case <-time.After(100 * time.Millisecond):
		// no delivery: subscription released
	}
}
