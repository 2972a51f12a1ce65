package session

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/erinmikailstaples/soundstage/internal/api"
	"github.com/erinmikailstaples/soundstage/internal/store"
)

// First run end to end: consent, onboarding with device 3 and no key, then
// start, auto-trigger on, stop.
func TestFirstRunThroughRuntime(t *testing.T) {
	srv, client := newStub(t)
	srv.SetDevices([]api.Device{
		{ID: 0, Name: "Default Microphone", Type: "input", Channels: 1},
		{ID: 3, Name: "Stream Mic", Type: "input", Channels: 2},
	})

	st, err := store.Open(store.DefaultDBPath(filepath.Join(t.TempDir(), "data")))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	flags, err := st.Flags()
	if err != nil {
		t.Fatalf("Flags: %v", err)
	}

	ctx := context.Background()
	boot := NewBootState(flags, st)
	gate := NewConsentGate(client, boot, nil)
	router := NewRouter(boot, gate)

	if got := router.Current(); got != ScreenConsent {
		t.Fatalf("screen = %v, want consent", got)
	}
	if err := gate.Accept(ctx); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got := router.Current(); got != ScreenOnboarding {
		t.Fatalf("screen = %v, want onboarding", got)
	}

	w := NewWizard(client, boot, nil)
	if err := w.Next(ctx); err != nil {
		t.Fatalf("step 1 -> 2: %v", err)
	}
	if err := w.SelectDevice(3); err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}
	if err := w.Next(ctx); err != nil {
		t.Fatalf("step 2 -> 3: %v", err)
	}
	if err := w.Skip(ctx); err != nil {
		t.Fatalf("Skip: %v", err)
	}

	settings := srv.Snapshot().Settings
	if settings.AudioInputDevice == nil || *settings.AudioInputDevice != "3" {
		t.Errorf("audio_input_device = %v, want \"3\"", settings.AudioInputDevice)
	}
	if settings.ElevenlabsAPIKey != nil {
		t.Errorf("elevenlabs_api_key = %q, want null", *settings.ElevenlabsAPIKey)
	}
	if got := router.Current(); got != ScreenDashboard {
		t.Fatalf("screen = %v, want dashboard", got)
	}

	persisted, _ := st.Flags()
	if !persisted.ConsentGiven || !persisted.OnboardingComplete {
		t.Errorf("persisted flags = %+v, want both set", persisted)
	}

	p := NewPanel(client)
	if err := p.LoadInitial(ctx); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
	if p.State().Active {
		t.Fatal("analysis should start inactive")
	}

	if err := p.ToggleAnalysis(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !p.State().Active {
		t.Fatal("analysis should be active")
	}
	if err := p.ToggleAutoTrigger(ctx); err != nil {
		t.Fatalf("enable auto: %v", err)
	}
	if !p.State().AutoTriggerEnabled {
		t.Fatal("auto-trigger should be enabled")
	}
	if err := p.ToggleAnalysis(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := p.State(); got != (AnalysisState{}) {
		t.Errorf("after stop: %+v, want both off", got)
	}
}

func TestManualTriggerSequence(t *testing.T) {
	_, client := newStub(t)
	p := NewPanel(client)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		if err := p.TriggerEffect(ctx, id); err != nil {
			t.Fatalf("trigger %s: %v", id, err)
		}
	}

	var got []string
	for _, e := range p.Snapshot().Activity {
		got = append(got, e.EffectID)
	}
	if want := []string{"f", "e", "d", "c", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("activity = %v, want %v", got, want)
	}
}
