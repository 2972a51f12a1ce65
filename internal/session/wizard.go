package session

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/erinmikailstaples/soundstage/internal/api"
)

// Step is a position in the onboarding wizard.
type Step int

const (
	StepWelcome Step = iota + 1
	StepDeviceSelect
	StepAPIKey
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepWelcome:
		return "welcome"
	case StepDeviceSelect:
		return "device-select"
	case StepAPIKey:
		return "api-key"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// WizardSnapshot is a point-in-time copy of the wizard for rendering.
type WizardSnapshot struct {
	Step           Step
	Devices        []api.Device
	DevicesLoading bool
	Selected       *int
	APIKey         string
	Busy           bool
	SaveErr        error
}

// CanContinue reports whether Next would be accepted from this snapshot.
func (s WizardSnapshot) CanContinue() bool {
	if s.Busy || s.Step == StepDone {
		return false
	}
	if s.Step == StepDeviceSelect {
		return s.Selected != nil
	}
	return true
}

// Wizard walks the user through first-run setup: welcome, input device,
// optional API key.
type Wizard struct {
	backend WizardBackend
	boot    *BootState
	logger  *slog.Logger

	mu             sync.Mutex
	step           Step
	entry          int
	devices        []api.Device
	devicesLoading bool
	selected       *int
	apiKey         string
	busy           bool
	saveErr        error
}

// NewWizard creates a wizard at the welcome step. logger may be nil.
func NewWizard(backend WizardBackend, boot *BootState, logger *slog.Logger) *Wizard {
	return &Wizard{
		backend: backend,
		boot:    boot,
		logger:  orDiscard(logger),
		step:    StepWelcome,
	}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// SaveError returns the error from the completion save, if any. Onboarding
// completes even when the save fails.
func (w *Wizard) SaveError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saveErr
}

// Snapshot returns a copy of the wizard state.
func (w *Wizard) Snapshot() WizardSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := WizardSnapshot{
		Step:           w.step,
		Devices:        append([]api.Device(nil), w.devices...),
		DevicesLoading: w.devicesLoading,
		APIKey:         w.apiKey,
		Busy:           w.busy,
		SaveErr:        w.saveErr,
	}
	if w.selected != nil {
		id := *w.selected
		snap.Selected = &id
	}
	return snap
}

// Next advances one step. Leaving the device step requires a selection;
// leaving the API key step finishes onboarding.
func (w *Wizard) Next(ctx context.Context) error {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return invalid("wizard next", ErrBusy)
	}
	switch w.step {
	case StepWelcome:
		entry := w.enterDeviceSelect()
		w.mu.Unlock()
		w.loadDevices(ctx, entry)
		return nil
	case StepDeviceSelect:
		defer w.mu.Unlock()
		if w.selected == nil {
			return &ValidationError{Field: "audio_input_device", Reason: "select an input device to continue"}
		}
		w.step = StepAPIKey
		return nil
	case StepAPIKey:
		w.mu.Unlock()
		return w.finish(ctx, false)
	default:
		w.mu.Unlock()
		return invalid("wizard next", ErrWizardDone)
	}
}

// Back returns to the previous step. It is a no-op on the welcome step.
func (w *Wizard) Back(ctx context.Context) error {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return invalid("wizard back", ErrBusy)
	}
	switch w.step {
	case StepWelcome:
		w.mu.Unlock()
		return nil
	case StepDeviceSelect:
		w.step = StepWelcome
		w.entry++
		w.devicesLoading = false
		w.mu.Unlock()
		return nil
	case StepAPIKey:
		entry := w.enterDeviceSelect()
		w.mu.Unlock()
		w.loadDevices(ctx, entry)
		return nil
	default:
		w.mu.Unlock()
		return invalid("wizard back", ErrWizardDone)
	}
}

// Skip finishes onboarding without an API key. Before the last step it
// behaves like Next.
func (w *Wizard) Skip(ctx context.Context) error {
	if w.Step() != StepAPIKey {
		return w.Next(ctx)
	}
	return w.finish(ctx, true)
}

// SelectDevice picks the input device by backend id. The id must be one of
// the devices offered on the current entry.
func (w *Wizard) SelectDevice(id int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepDeviceSelect {
		return invalid("select device", ErrWizardStep)
	}
	for _, d := range w.devices {
		if d.ID == id {
			sel := id
			w.selected = &sel
			return nil
		}
	}
	return &ValidationError{Field: "audio_input_device", Reason: "device " + strconv.Itoa(id) + " is not available"}
}

// SetAPIKey stages the optional voice-generation key.
func (w *Wizard) SetAPIKey(key string) {
	w.mu.Lock()
	w.apiKey = key
	w.mu.Unlock()
}

// enterDeviceSelect moves to the device step and starts a new entry. Callers
// hold w.mu.
func (w *Wizard) enterDeviceSelect() int {
	w.step = StepDeviceSelect
	w.entry++
	w.devicesLoading = true
	return w.entry
}

func (w *Wizard) loadDevices(ctx context.Context, entry int) {
	devices, err := w.backend.AudioDevices(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil || w.entry != entry || w.step != StepDeviceSelect {
		return
	}
	w.devicesLoading = false
	if err != nil {
		w.logger.Warn("list audio devices failed", "error", err)
		devices = nil
	}
	w.devices = devices

	if w.selected != nil && !containsDevice(devices, *w.selected) {
		w.selected = nil
	}
}

func (w *Wizard) finish(ctx context.Context, skipKey bool) error {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return invalid("finish onboarding", ErrBusy)
	}
	if w.step != StepAPIKey {
		w.mu.Unlock()
		return invalid("finish onboarding", ErrWizardStep)
	}
	w.busy = true
	var patch api.SettingsPatch
	if w.selected != nil {
		patch.AudioInputDevice = api.StrPtr(strconv.Itoa(*w.selected))
	}
	if key := strings.TrimSpace(w.apiKey); key != "" && !skipKey {
		patch.ElevenlabsAPIKey = &key
	}
	w.mu.Unlock()

	err := w.backend.PatchSettings(ctx, patch)

	w.mu.Lock()
	w.busy = false
	if ctxErr := ctx.Err(); ctxErr != nil {
		w.mu.Unlock()
		return ctxErr
	}
	w.step = StepDone
	w.saveErr = err
	w.apiKey = ""
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("save onboarding settings failed, continuing", "error", err)
	}
	if perr := w.boot.markOnboardingComplete(); perr != nil {
		w.logger.Error("persist onboarding flag", "error", perr)
	}
	w.logger.Info("onboarding complete", "skipped_key", patch.ElevenlabsAPIKey == nil)
	return nil
}

func containsDevice(devices []api.Device, id int) bool {
	for _, d := range devices {
		if d.ID == id {
			return true
		}
	}
	return false
}
