package session

import "sync"

// Screen is the top-level view the session is on.
type Screen int

const (
	ScreenConsent Screen = iota
	ScreenDeclined
	ScreenOnboarding
	ScreenDashboard
	ScreenSettings
)

func (s Screen) String() string {
	switch s {
	case ScreenConsent:
		return "consent"
	case ScreenDeclined:
		return "declined"
	case ScreenOnboarding:
		return "onboarding"
	case ScreenDashboard:
		return "dashboard"
	case ScreenSettings:
		return "settings"
	default:
		return "unknown"
	}
}

// Router picks the screen from the gate state: consent first, then
// onboarding, then the runtime screens.
type Router struct {
	boot *BootState
	gate *ConsentGate

	mu           sync.Mutex
	settingsOpen bool
}

// NewRouter creates a router over boot and gate.
func NewRouter(boot *BootState, gate *ConsentGate) *Router {
	return &Router{boot: boot, gate: gate}
}

// Current returns the screen to show.
func (r *Router) Current() Screen {
	switch {
	case !r.boot.ConsentGiven():
		if r.gate != nil && r.gate.Declined() {
			return ScreenDeclined
		}
		return ScreenConsent
	case !r.boot.OnboardingComplete():
		return ScreenOnboarding
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settingsOpen {
		return ScreenSettings
	}
	return ScreenDashboard
}

// OpenSettings switches to the settings editor. Only reachable at runtime.
func (r *Router) OpenSettings() error {
	if !r.boot.Runtime() {
		return invalid("open settings", ErrNotInRuntime)
	}
	r.mu.Lock()
	r.settingsOpen = true
	r.mu.Unlock()
	return nil
}

// CloseSettings returns to the dashboard.
func (r *Router) CloseSettings() error {
	if !r.boot.Runtime() {
		return invalid("close settings", ErrNotInRuntime)
	}
	r.mu.Lock()
	r.settingsOpen = false
	r.mu.Unlock()
	return nil
}
