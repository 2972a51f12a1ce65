package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/erinmikailstaples/soundstage/internal/api"
	"github.com/erinmikailstaples/soundstage/internal/store"
)

func TestConsentShouldShowSkipsWhenGiven(t *testing.T) {
	srv, client := newStub(t)
	boot := NewBootState(store.Flags{ConsentGiven: true}, nil)
	gate := NewConsentGate(client, boot, nil)

	if gate.ShouldShow() {
		t.Error("gate should not show once consent is given")
	}
	if err := gate.Accept(context.Background()); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if n := srv.Calls(api.PathConsent); n != 0 {
		t.Errorf("consent calls = %d, want 0", n)
	}
}

func TestConsentAcceptSendsRecord(t *testing.T) {
	srv, client := newStub(t)
	boot, flags := freshBoot()
	gate := NewConsentGate(client, boot, nil)

	if !gate.ShouldShow() {
		t.Fatal("fresh gate should show")
	}
	gate.SetCloudProcessing(true)
	if err := gate.Accept(context.Background()); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	rec := srv.Snapshot().Consent
	if rec == nil {
		t.Fatal("backend did not receive a consent record")
	}
	want := api.ConsentRecord{AudioCaptureConsent: true, CloudProcessingConsent: true}
	if *rec != want {
		t.Errorf("record = %+v, want %+v", *rec, want)
	}
	if !boot.ConsentGiven() {
		t.Error("boot state should be satisfied")
	}
	if c, _ := flags.writes(); c != 1 {
		t.Errorf("consent flag writes = %d, want 1", c)
	}
	if gate.ShouldShow() {
		t.Error("gate should close after accept")
	}
}

func TestConsentAcceptFailureKeepsGateOpen(t *testing.T) {
	srv, client := newStub(t)
	boot, flags := freshBoot()
	gate := NewConsentGate(client, boot, nil)

	srv.FailNext(api.PathConsent, http.StatusInternalServerError)
	err := gate.Accept(context.Background())
	wantNetworkStatus(t, err, http.StatusInternalServerError)

	if boot.ConsentGiven() {
		t.Error("boot state must not change on failure")
	}
	if c, _ := flags.writes(); c != 0 {
		t.Errorf("consent flag writes = %d, want 0", c)
	}
	if !gate.ShouldShow() {
		t.Error("gate should stay open")
	}
	if n := srv.Calls(api.PathConsent); n != 1 {
		t.Errorf("consent calls = %d, want 1 (no automatic retry)", n)
	}

	// The user retries.
	if err := gate.Accept(context.Background()); err != nil {
		t.Fatalf("second Accept: %v", err)
	}
	if !boot.ConsentGiven() {
		t.Error("boot state should be satisfied after retry")
	}
}

func TestConsentDeclineIsLocal(t *testing.T) {
	srv, client := newStub(t)
	boot, flags := freshBoot()
	gate := NewConsentGate(client, boot, nil)

	gate.Decline()

	if gate.ShouldShow() {
		t.Error("declined gate should not show")
	}
	if !gate.Declined() {
		t.Error("Declined should report true")
	}
	if boot.ConsentGiven() {
		t.Error("decline must not satisfy the gate")
	}
	if c, _ := flags.writes(); c != 0 {
		t.Errorf("consent flag writes = %d, want 0", c)
	}
	if n := srv.Calls(api.PathConsent); n != 0 {
		t.Errorf("consent calls = %d, want 0", n)
	}
	err := gate.Accept(context.Background())
	wantInvalidState(t, err, ErrConsentDeclined)
}

func TestConsentConcurrentAcceptIsBusy(t *testing.T) {
	srv, client := newStub(t)
	boot, _ := freshBoot()
	gate := NewConsentGate(client, boot, nil)

	entered, release := srv.Hold(api.PathConsent)
	done := make(chan error, 1)
	go func() { done <- gate.Accept(context.Background()) }()
	<-entered

	err := gate.Accept(context.Background())
	wantInvalidState(t, err, ErrBusy)

	release()
	if err := <-done; err != nil {
		t.Fatalf("first Accept: %v", err)
	}
	if n := srv.Calls(api.PathConsent); n != 1 {
		t.Errorf("consent calls = %d, want 1", n)
	}
}

func TestConsentCanceledAcceptAbandoned(t *testing.T) {
	srv, client := newStub(t)
	boot, flags := freshBoot()
	gate := NewConsentGate(client, boot, nil)

	entered, release := srv.Hold(api.PathConsent)
	defer release()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gate.Accept(ctx) }()
	<-entered
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if boot.ConsentGiven() {
		t.Error("canceled accept must not satisfy the gate")
	}
	if c, _ := flags.writes(); c != 0 {
		t.Errorf("consent flag writes = %d, want 0", c)
	}
	if gate.Busy() {
		t.Error("gate should not stay busy after cancel")
	}
}

func TestConsentFlagWriteFailureStillPasses(t *testing.T) {
	_, client := newStub(t)
	flags := &memFlags{err: errors.New("disk full")}
	boot := NewBootState(store.Flags{}, flags)
	gate := NewConsentGate(client, boot, nil)

	if err := gate.Accept(context.Background()); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !boot.ConsentGiven() {
		t.Error("in-memory gate should pass even when the flag write fails")
	}
}
