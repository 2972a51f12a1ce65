// Package session holds the client's session state machine: the consent gate,
// the onboarding wizard, the runtime control panel, the settings editor and
// the router that orders them.
//
// Every component is safe for concurrent use. Network calls are made outside
// the component's lock; an in-flight marker serializes operations that must
// not overlap.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/erinmikailstaples/soundstage/internal/api"
	"github.com/erinmikailstaples/soundstage/internal/store"
)

// FlagWriter persists the boot flags once their gate is passed.
type FlagWriter interface {
	SetConsentGiven() error
	SetOnboardingComplete() error
}

// ConsentBackend is the part of the backend the consent gate talks to.
type ConsentBackend interface {
	SaveConsent(ctx context.Context, rec api.ConsentRecord) error
}

// WizardBackend is the part of the backend the onboarding wizard talks to.
type WizardBackend interface {
	AudioDevices(ctx context.Context) ([]api.Device, error)
	PatchSettings(ctx context.Context, p api.SettingsPatch) error
}

// PanelBackend is the part of the backend the runtime panel talks to.
type PanelBackend interface {
	Effects(ctx context.Context) ([]api.Effect, error)
	AnalysisStatus(ctx context.Context) (api.AnalysisStatus, error)
	StartAnalysis(ctx context.Context, req api.StartAnalysisRequest) error
	StopAnalysis(ctx context.Context) error
	EnableAutoTrigger(ctx context.Context) error
	DisableAutoTrigger(ctx context.Context) error
	TriggerManual(ctx context.Context, req api.TriggerRequest) error
}

// SettingsBackend is the part of the backend the settings editor talks to.
type SettingsBackend interface {
	FetchCurrent(ctx context.Context) (api.Settings, error)
	SaveSettings(ctx context.Context, s api.Settings) error
	SaveProfile(ctx context.Context, name string) error
	ListProfiles(ctx context.Context) ([]string, error)
	LoadProfile(ctx context.Context, name string) error
}

// BootState is the process-wide gate state read once at startup. It is
// created by the caller and handed to the components that pass each gate.
type BootState struct {
	mu                 sync.RWMutex
	consentGiven       bool
	onboardingComplete bool
	flags              FlagWriter
}

// NewBootState builds the boot state from persisted flags. w may be nil, in
// which case passing a gate is only remembered in memory.
func NewBootState(f store.Flags, w FlagWriter) *BootState {
	return &BootState{
		consentGiven:       f.ConsentGiven,
		onboardingComplete: f.OnboardingComplete,
		flags:              w,
	}
}

// ConsentGiven reports whether the consent gate has been passed.
func (b *BootState) ConsentGiven() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.consentGiven
}

// OnboardingComplete reports whether the setup wizard has finished.
func (b *BootState) OnboardingComplete() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.onboardingComplete
}

// Runtime reports whether both gates have been passed.
func (b *BootState) Runtime() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.consentGiven && b.onboardingComplete
}

// markConsentGiven satisfies the gate in memory, then persists the flag.
// The returned error only concerns persistence.
func (b *BootState) markConsentGiven() error {
	b.mu.Lock()
	b.consentGiven = true
	w := b.flags
	b.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.SetConsentGiven()
}

func (b *BootState) markOnboardingComplete() error {
	b.mu.Lock()
	b.onboardingComplete = true
	w := b.flags
	b.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.SetOnboardingComplete()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return discardLogger()
	}
	return l
}
