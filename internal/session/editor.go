package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/erinmikailstaples/soundstage/internal/api"
)

// NudgeStep is the increment used by the Nudge helpers.
const NudgeStep = 0.1

// EditorSnapshot is a point-in-time copy of the settings editor.
type EditorSnapshot struct {
	Settings api.Settings
	Dirty    bool
	Loaded   bool
	Busy     bool
	SavedAt  time.Time
	Profiles []string
}

// SettingsEditor edits a local copy of the backend settings and writes it
// back as a whole.
type SettingsEditor struct {
	backend SettingsBackend
	logger  *slog.Logger

	mu       sync.Mutex
	local    api.Settings
	remote   api.Settings
	loaded   bool
	busy     bool
	savedAt  time.Time
	profiles []string
}

// NewSettingsEditor creates an editor holding the default settings until Load.
func NewSettingsEditor(backend SettingsBackend, logger *slog.Logger) *SettingsEditor {
	d := api.DefaultSettings()
	return &SettingsEditor{backend: backend, logger: orDiscard(logger), local: d, remote: d}
}

// Load replaces the local copy with the backend's current settings. On
// failure the defaults are kept and the error returned.
func (e *SettingsEditor) Load(ctx context.Context) error {
	s, err := e.backend.FetchCurrent(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = true
	if err != nil {
		e.logger.Warn("load settings failed, using defaults", "error", err)
		e.local = api.DefaultSettings()
		e.remote = e.local
		return err
	}
	e.local = s
	e.remote = s
	return nil
}

// Settings returns the local copy.
func (e *SettingsEditor) Settings() api.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local
}

// Dirty reports whether the local copy differs from the last backend copy.
func (e *SettingsEditor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.local.Equal(e.remote)
}

// Snapshot returns a copy of the editor state.
func (e *SettingsEditor) Snapshot() EditorSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EditorSnapshot{
		Settings: e.local,
		Dirty:    !e.local.Equal(e.remote),
		Loaded:   e.loaded,
		Busy:     e.busy,
		SavedAt:  e.savedAt,
		Profiles: append([]string(nil), e.profiles...),
	}
}

// SetAudioInputDevice sets the input device id; empty means the system default.
func (e *SettingsEditor) SetAudioInputDevice(id string) {
	e.mu.Lock()
	e.local.AudioInputDevice = optional(id)
	e.mu.Unlock()
}

// SetAudioOutputDevice sets the output device id; empty means the system default.
func (e *SettingsEditor) SetAudioOutputDevice(id string) {
	e.mu.Lock()
	e.local.AudioOutputDevice = optional(id)
	e.mu.Unlock()
}

// SetElevenlabsAPIKey sets the voice-generation key; empty clears it.
func (e *SettingsEditor) SetElevenlabsAPIKey(key string) {
	e.mu.Lock()
	e.local.ElevenlabsAPIKey = optional(key)
	e.mu.Unlock()
}

func (e *SettingsEditor) SetAutoTriggerEnabled(v bool) {
	e.mu.Lock()
	e.local.AutoTriggerEnabled = v
	e.mu.Unlock()
}

func (e *SettingsEditor) SetHotkeysEnabled(v bool) {
	e.mu.Lock()
	e.local.HotkeysEnabled = v
	e.mu.Unlock()
}

// SetTriggerSensitivity sets the auto-trigger sensitivity in [0, 1].
func (e *SettingsEditor) SetTriggerSensitivity(v float64) error {
	if err := checkUnit("trigger_sensitivity", v); err != nil {
		return err
	}
	e.mu.Lock()
	e.local.TriggerSensitivity = v
	e.mu.Unlock()
	return nil
}

// SetEffectVolume sets the effect playback volume in [0, 1].
func (e *SettingsEditor) SetEffectVolume(v float64) error {
	if err := checkUnit("effect_volume", v); err != nil {
		return err
	}
	e.mu.Lock()
	e.local.EffectVolume = v
	e.mu.Unlock()
	return nil
}

// NudgeTriggerSensitivity moves the sensitivity by steps of NudgeStep,
// clamped to [0, 1].
func (e *SettingsEditor) NudgeTriggerSensitivity(steps int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.TriggerSensitivity = nudge(e.local.TriggerSensitivity, steps)
	return e.local.TriggerSensitivity
}

// NudgeEffectVolume moves the volume by steps of NudgeStep, clamped to [0, 1].
func (e *SettingsEditor) NudgeEffectVolume(steps int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.EffectVolume = nudge(e.local.EffectVolume, steps)
	return e.local.EffectVolume
}

// Revert discards local edits.
func (e *SettingsEditor) Revert() {
	e.mu.Lock()
	e.local = e.remote
	e.mu.Unlock()
}

// Save writes the whole local copy to the backend.
func (e *SettingsEditor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return invalid("save settings", ErrBusy)
	}
	e.busy = true
	sent := e.local
	e.mu.Unlock()

	err := e.backend.SaveSettings(ctx, sent)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		e.logger.Warn("save settings failed", "error", err)
		return err
	}
	e.remote = sent
	e.savedAt = time.Now()
	e.logger.Info("settings saved")
	return nil
}

// SaveProfile stores the backend's current settings under name. Unsaved
// local edits must be saved first.
func (e *SettingsEditor) SaveProfile(ctx context.Context, name string) error {
	name, err := profileName(name)
	if err != nil {
		return err
	}
	if e.Dirty() {
		return invalid("save profile", ErrUnsavedChanges)
	}
	if err := e.backend.SaveProfile(ctx, name); err != nil {
		return fmt.Errorf("save profile %q: %w", name, err)
	}
	e.logger.Info("profile saved", "profile", name)
	_, err = e.ListProfiles(ctx)
	return err
}

// ListProfiles returns the saved profile names, sorted.
func (e *SettingsEditor) ListProfiles(ctx context.Context) ([]string, error) {
	names, err := e.backend.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	sort.Strings(names)
	e.mu.Lock()
	e.profiles = names
	e.mu.Unlock()
	return append([]string(nil), names...), nil
}

// LoadProfile makes the named profile current on the backend, then reloads.
// Local edits are discarded.
func (e *SettingsEditor) LoadProfile(ctx context.Context, name string) error {
	name, err := profileName(name)
	if err != nil {
		return err
	}
	if err := e.backend.LoadProfile(ctx, name); err != nil {
		return fmt.Errorf("load profile %q: %w", name, err)
	}
	e.logger.Info("profile loaded", "profile", name)
	return e.Load(ctx)
}

func profileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "profile_name", Reason: "must not be empty"}
	}
	if strings.ContainsAny(name, `/\`) {
		return "", &ValidationError{Field: "profile_name", Reason: "must not contain path separators"}
	}
	return name, nil
}

func checkUnit(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%v is outside [0, 1]", v)}
	}
	return nil
}

func nudge(v float64, steps int) float64 {
	v = math.Round((v+float64(steps)*NudgeStep)*100) / 100
	return math.Max(0, math.Min(1, v))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
