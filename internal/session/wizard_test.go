package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/erinmikailstaples/soundstage/internal/api"
	"github.com/erinmikailstaples/soundstage/internal/store"
)

func consentedBoot() (*BootState, *memFlags) {
	flags := &memFlags{}
	return NewBootState(store.Flags{ConsentGiven: true}, flags), flags
}

func TestWizardDeviceRequiredToContinue(t *testing.T) {
	_, client := newStub(t)
	boot, _ := consentedBoot()
	w := NewWizard(client, boot, nil)
	ctx := context.Background()

	if err := w.Next(ctx); err != nil {
		t.Fatalf("Next from welcome: %v", err)
	}
	if w.Step() != StepDeviceSelect {
		t.Fatalf("step = %v, want device-select", w.Step())
	}
	snap := w.Snapshot()
	if snap.CanContinue() {
		t.Error("continue should be disabled without a selection")
	}

	err := w.Next(ctx)
	if !IsValidation(err) {
		t.Fatalf("Next without device: err = %v, want ValidationError", err)
	}
	if w.Step() != StepDeviceSelect {
		t.Errorf("step = %v, want device-select", w.Step())
	}

	if err := w.SelectDevice(0); err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}
	if !w.Snapshot().CanContinue() {
		t.Error("continue should be enabled with a selection")
	}
	if err := w.Next(ctx); err != nil {
		t.Fatalf("Next with device: %v", err)
	}
	if w.Step() != StepAPIKey {
		t.Errorf("step = %v, want api-key", w.Step())
	}
}

func TestWizardSelectUnknownDevice(t *testing.T) {
	_, client := newStub(t)
	boot, _ := consentedBoot()
	w := NewWizard(client, boot, nil)
	w.Next(context.Background())

	if err := w.SelectDevice(42); !IsValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
	if w.Snapshot().Selected != nil {
		t.Error("selection should stay empty")
	}
}

func TestWizardDeviceFailureDegradesToEmpty(t *testing.T) {
	srv, client := newStub(t)
	boot, _ := consentedBoot()
	w := NewWizard(client, boot, nil)

	srv.FailNext(api.PathAudioDevices, http.StatusInternalServerError)
	if err := w.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	snap := w.Snapshot()
	if len(snap.Devices) != 0 || snap.DevicesLoading {
		t.Errorf("devices = %v loading=%v, want empty and loaded", snap.Devices, snap.DevicesLoading)
	}
	if snap.CanContinue() {
		t.Error("continue should stay disabled with no devices")
	}
}

func TestWizardBackRefetchesDevices(t *testing.T) {
	srv, client := newStub(t)
	boot, _ := consentedBoot()
	w := NewWizard(client, boot, nil)
	ctx := context.Background()

	w.Next(ctx)
	w.SelectDevice(0)
	w.Next(ctx)

	srv.SetDevices([]api.Device{{ID: 0, Name: "Default Microphone", Type: "input", Channels: 1}, {ID: 3, Name: "USB Mic", Type: "input", Channels: 2}})
	if err := w.Back(ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if w.Step() != StepDeviceSelect {
		t.Fatalf("step = %v, want device-select", w.Step())
	}
	if n := srv.Calls(api.PathAudioDevices); n != 2 {
		t.Errorf("device calls = %d, want 2", n)
	}
	snap := w.Snapshot()
	if len(snap.Devices) != 2 {
		t.Errorf("devices = %v, want 2 entries", snap.Devices)
	}
	if snap.Selected == nil || *snap.Selected != 0 {
		t.Errorf("selection = %v, want 0 kept", snap.Selected)
	}

	if err := w.Back(ctx); err != nil {
		t.Fatalf("Back to welcome: %v", err)
	}
	if err := w.Back(ctx); err != nil {
		t.Fatalf("Back at welcome: %v", err)
	}
	if w.Step() != StepWelcome {
		t.Errorf("step = %v, want welcome", w.Step())
	}
}

func TestWizardStaleDeviceFetchDiscarded(t *testing.T) {
	srv, client := newStub(t)
	boot, _ := consentedBoot()
	w := NewWizard(client, boot, nil)
	ctx := context.Background()

	entered, release := srv.Hold(api.PathAudioDevices)
	done := make(chan error, 1)
	go func() { done <- w.Next(ctx) }()
	<-entered

	// Leave the step while the fetch is still out.
	if err := w.Back(ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}
	release()
	if err := <-done; err != nil {
		t.Fatalf("Next: %v", err)
	}

	snap := w.Snapshot()
	if snap.Step != StepWelcome {
		t.Errorf("step = %v, want welcome", snap.Step)
	}
	if len(snap.Devices) != 0 {
		t.Errorf("stale devices applied: %v", snap.Devices)
	}
}

func TestWizardFinishWithKey(t *testing.T) {
	srv, client := newStub(t)
	boot, flags := consentedBoot()
	w := NewWizard(client, boot, nil)
	ctx := context.Background()

	w.Next(ctx)
	w.SelectDevice(0)
	w.Next(ctx)
	w.SetAPIKey("  sk-test  ")
	if err := w.Next(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if w.Step() != StepDone {
		t.Errorf("step = %v, want done", w.Step())
	}
	if !boot.OnboardingComplete() {
		t.Error("boot state should record onboarding")
	}
	if _, o := flags.writes(); o != 1 {
		t.Errorf("onboarding flag writes = %d, want 1", o)
	}
	s := srv.Snapshot().Settings
	if s.AudioInputDevice == nil || *s.AudioInputDevice != "0" {
		t.Errorf("audio_input_device = %v, want \"0\"", s.AudioInputDevice)
	}
	if s.ElevenlabsAPIKey == nil || *s.ElevenlabsAPIKey != "sk-test" {
		t.Errorf("elevenlabs_api_key = %v, want sk-test", s.ElevenlabsAPIKey)
	}
	if w.Snapshot().APIKey != "" {
		t.Error("API key should be dropped from memory after completion")
	}
}

func TestWizardSkipSendsNullKey(t *testing.T) {
	srv, client := newStub(t)
	boot, _ := consentedBoot()
	w := NewWizard(client, boot, nil)
	ctx := context.Background()

	w.Next(ctx)
	w.SelectDevice(0)
	w.Next(ctx)
	w.SetAPIKey("typed then skipped")
	if err := w.Skip(ctx); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if w.Step() != StepDone {
		t.Errorf("step = %v, want done", w.Step())
	}
	if k := srv.Snapshot().Settings.ElevenlabsAPIKey; k != nil {
		t.Errorf("elevenlabs_api_key = %q, want null", *k)
	}
}

func TestWizardSaveFailureStillCompletes(t *testing.T) {
	srv, client := newStub(t)
	boot, flags := consentedBoot()
	w := NewWizard(client, boot, nil)
	ctx := context.Background()

	w.Next(ctx)
	w.SelectDevice(0)
	w.Next(ctx)

	srv.FailNext(api.PathSettingsUpdate, http.StatusInternalServerError)
	if err := w.Next(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if w.Step() != StepDone {
		t.Errorf("step = %v, want done", w.Step())
	}
	if !boot.OnboardingComplete() {
		t.Error("onboarding should complete despite the save failure")
	}
	if _, o := flags.writes(); o != 1 {
		t.Errorf("onboarding flag writes = %d, want 1", o)
	}
	wantNetworkStatus(t, w.SaveError(), http.StatusInternalServerError)
}

func TestWizardDoneRejectsTransitions(t *testing.T) {
	_, client := newStub(t)
	boot, _ := consentedBoot()
	w := NewWizard(client, boot, nil)
	ctx := context.Background()

	w.Next(ctx)
	w.SelectDevice(0)
	w.Next(ctx)
	w.Skip(ctx)

	wantInvalidState(t, w.Next(ctx), ErrWizardDone)
	wantInvalidState(t, w.Back(ctx), ErrWizardDone)
}

func TestWizardConcurrentFinishIsBusy(t *testing.T) {
	srv, client := newStub(t)
	boot, _ := consentedBoot()
	w := NewWizard(client, boot, nil)
	ctx := context.Background()

	w.Next(ctx)
	w.SelectDevice(0)
	w.Next(ctx)

	entered, release := srv.Hold(api.PathSettingsUpdate)
	done := make(chan error, 1)
	go func() { done <- w.Next(ctx) }()
	<-entered

	wantInvalidState(t, w.Back(ctx), ErrBusy)
	wantInvalidState(t, w.Skip(ctx), ErrBusy)

	release()
	if err := <-done; err != nil {
		t.Fatalf("finish: %v", err)
	}
	if n := srv.Calls(api.PathSettingsUpdate); n != 1 {
		t.Errorf("update calls = %d, want 1", n)
	}
}
