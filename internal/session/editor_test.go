package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/erinmikailstaples/soundstage/internal/api"
)

func TestEditorLoadFailureKeepsDefaults(t *testing.T) {
	srv, client := newStub(t)
	srv.FailNext(api.PathSettingsCurrent, http.StatusInternalServerError)
	e := NewSettingsEditor(client, nil)

	err := e.Load(context.Background())
	wantNetworkStatus(t, err, http.StatusInternalServerError)
	if !e.Settings().Equal(api.DefaultSettings()) {
		t.Errorf("settings = %+v, want defaults", e.Settings())
	}
	if e.Dirty() {
		t.Error("defaults after a failed load should not be dirty")
	}
}

func TestEditorValidation(t *testing.T) {
	_, client := newStub(t)
	e := NewSettingsEditor(client, nil)

	for _, v := range []float64{-0.1, 1.01} {
		if err := e.SetTriggerSensitivity(v); !IsValidation(err) {
			t.Errorf("SetTriggerSensitivity(%v) err = %v, want ValidationError", v, err)
		}
		if err := e.SetEffectVolume(v); !IsValidation(err) {
			t.Errorf("SetEffectVolume(%v) err = %v, want ValidationError", v, err)
		}
	}
	if e.Dirty() {
		t.Error("rejected values must not change the local copy")
	}
	if err := e.SetEffectVolume(1); err != nil {
		t.Errorf("SetEffectVolume(1): %v", err)
	}
}

func TestEditorNudgeClamps(t *testing.T) {
	_, client := newStub(t)
	e := NewSettingsEditor(client, nil)

	if got := e.NudgeTriggerSensitivity(1); got != 0.6 {
		t.Errorf("nudge up = %v, want 0.6", got)
	}
	for i := 0; i < 10; i++ {
		e.NudgeTriggerSensitivity(1)
	}
	if got := e.Settings().TriggerSensitivity; got != 1 {
		t.Errorf("sensitivity = %v, want clamped to 1", got)
	}
	for i := 0; i < 20; i++ {
		e.NudgeEffectVolume(-1)
	}
	if got := e.Settings().EffectVolume; got != 0 {
		t.Errorf("volume = %v, want clamped to 0", got)
	}
}

func TestEditorSaveRoundTrip(t *testing.T) {
	srv, client := newStub(t)
	e := NewSettingsEditor(client, nil)
	ctx := context.Background()
	if err := e.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	e.SetAudioInputDevice("2")
	e.SetHotkeysEnabled(false)
	if err := e.SetEffectVolume(0.3); err != nil {
		t.Fatal(err)
	}
	if !e.Dirty() {
		t.Fatal("edits should make the editor dirty")
	}
	if err := e.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if e.Dirty() {
		t.Error("editor should be clean after save")
	}
	if e.Snapshot().SavedAt.IsZero() {
		t.Error("SavedAt should be set")
	}

	got := srv.Snapshot().Settings
	if got.AudioInputDevice == nil || *got.AudioInputDevice != "2" || got.HotkeysEnabled || got.EffectVolume != 0.3 {
		t.Errorf("backend settings = %+v", got)
	}
}

func TestEditorSaveFailureStaysDirty(t *testing.T) {
	srv, client := newStub(t)
	e := NewSettingsEditor(client, nil)
	ctx := context.Background()
	e.Load(ctx)

	e.SetAutoTriggerEnabled(true)
	srv.FailNext(api.PathSettingsUpdate, http.StatusInternalServerError)
	if err := e.Save(ctx); err == nil {
		t.Fatal("Save should fail")
	}
	if !e.Dirty() {
		t.Error("failed save should leave the editor dirty")
	}
	if srv.Snapshot().Settings.AutoTriggerEnabled {
		t.Error("backend must not change on a failed save")
	}

	e.Revert()
	if e.Dirty() {
		t.Error("revert should discard edits")
	}
}

func TestEditorProfiles(t *testing.T) {
	srv, client := newStub(t)
	e := NewSettingsEditor(client, nil)
	ctx := context.Background()
	e.Load(ctx)

	e.SetEffectVolume(0.2)
	wantInvalidState(t, e.SaveProfile(ctx, "quiet"), ErrUnsavedChanges)

	if err := e.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := e.SaveProfile(ctx, "quiet"); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if got := e.Snapshot().Profiles; len(got) != 1 || got[0] != "quiet" {
		t.Errorf("profiles = %v, want [quiet]", got)
	}

	e.SetEffectVolume(0.9)
	e.Save(ctx)

	if err := e.LoadProfile(ctx, "quiet"); err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got := e.Settings().EffectVolume; got != 0.2 {
		t.Errorf("volume after profile load = %v, want 0.2", got)
	}
	if got := srv.Snapshot().Settings.EffectVolume; got != 0.2 {
		t.Errorf("backend volume = %v, want 0.2", got)
	}

	err := e.LoadProfile(ctx, "missing")
	wantNetworkStatus(t, err, http.StatusNotFound)

	if err := e.SaveProfile(ctx, "  "); !IsValidation(err) {
		t.Errorf("empty name err = %v, want ValidationError", err)
	}
}
