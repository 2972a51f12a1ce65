package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erinmikailstaples/soundstage/internal/api"
)

// Op names a panel operation that occupies the in-flight slot.
type Op int

const (
	OpNone Op = iota
	OpToggleAnalysis
	OpToggleAutoTrigger
)

func (o Op) String() string {
	switch o {
	case OpToggleAnalysis:
		return "toggle-analysis"
	case OpToggleAutoTrigger:
		return "toggle-auto-trigger"
	default:
		return "none"
	}
}

// Outcome is how the last toggle resolved.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeConfirmed
	OutcomeRolledBack
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRolledBack:
		return "rolled-back"
	default:
		return "none"
	}
}

// AnalysisState is the panel's view of the backend. AutoTriggerEnabled is
// never true while Active is false.
type AnalysisState struct {
	Active             bool
	AutoTriggerEnabled bool
}

// PanelSnapshot is a point-in-time copy of the panel for rendering.
type PanelSnapshot struct {
	State       AnalysisState
	Pending     Op
	LastOutcome Outcome
	Loaded      bool
	Effects     []api.Effect
	Activity    []ActivityEntry
}

// PanelOption configures a Panel.
type PanelOption func(*Panel)

// WithPanelLogger sets the panel's logger.
func WithPanelLogger(l *slog.Logger) PanelOption {
	return func(p *Panel) { p.logger = orDiscard(l) }
}

// WithStateObserver registers fn to be called with every new state. fn runs
// under the panel lock and must not call back into the panel.
func WithStateObserver(fn func(AnalysisState)) PanelOption {
	return func(p *Panel) { p.observe = fn }
}

// WithClock overrides the clock used to stamp activity entries.
func WithClock(now func() time.Time) PanelOption {
	return func(p *Panel) { p.now = now }
}

// Panel controls live analysis, auto-triggering and manual effects.
type Panel struct {
	backend PanelBackend
	logger  *slog.Logger
	observe func(AnalysisState)
	now     func() time.Time

	mu       sync.Mutex
	state    AnalysisState
	pending  Op
	outcome  Outcome
	gen      uint64 // bumped by every confirmed toggle
	loaded   bool
	effects  []api.Effect
	activity *ActivityLog
}

// NewPanel creates a panel with analysis assumed inactive until LoadInitial.
func NewPanel(backend PanelBackend, opts ...PanelOption) *Panel {
	p := &Panel{
		backend:  backend,
		logger:   discardLogger(),
		now:      time.Now,
		activity: NewActivityLog(ActivityCapacity),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns a copy of the panel state.
func (p *Panel) Snapshot() PanelSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PanelSnapshot{
		State:       p.state,
		Pending:     p.pending,
		LastOutcome: p.outcome,
		Loaded:      p.loaded,
		Effects:     append([]api.Effect(nil), p.effects...),
		Activity:    p.activity.Entries(),
	}
}

// State returns the current analysis state.
func (p *Panel) State() AnalysisState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LoadInitial fetches the effect catalog and analysis status concurrently.
// Each failure degrades on its own: an empty catalog, or analysis inactive.
// The status is not applied if a toggle confirmed while it was being read.
// The returned error joins both failures and is informational.
func (p *Panel) LoadInitial(ctx context.Context) error {
	var (
		effects             []api.Effect
		status              api.AnalysisStatus
		effectsErr, statErr error
	)

	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		effects, effectsErr = p.backend.Effects(gctx)
		return nil
	})
	g.Go(func() error {
		status, statErr = p.backend.AnalysisStatus(gctx)
		return nil
	})
	g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	if effectsErr != nil {
		p.logger.Warn("load effect catalog failed", "error", effectsErr)
		effects = nil
	}
	if statErr != nil {
		p.logger.Warn("load analysis status failed", "error", statErr)
		status = api.AnalysisStatus{}
	}

	p.mu.Lock()
	p.effects = effects
	p.loaded = true
	if p.pending == OpNone && p.gen == gen {
		p.setState(AnalysisState{Active: status.Active})
	}
	p.mu.Unlock()

	return errors.Join(effectsErr, statErr)
}

// ToggleAnalysis starts analysis when inactive and stops it when active.
// Stopping also turns auto-trigger off.
func (p *Panel) ToggleAnalysis(ctx context.Context) error {
	p.mu.Lock()
	if p.pending != OpNone {
		p.mu.Unlock()
		return invalid("toggle analysis", ErrBusy)
	}
	stopping := p.state.Active
	p.pending = OpToggleAnalysis
	p.mu.Unlock()

	var err error
	if stopping {
		err = p.backend.StopAnalysis(ctx)
	} else {
		err = p.backend.StartAnalysis(ctx, api.DefaultStartRequest())
	}

	p.mu.Lock()
	if ctxErr := ctx.Err(); ctxErr != nil {
		p.pending = OpNone
		p.mu.Unlock()
		return ctxErr
	}
	if err != nil {
		p.pending = OpNone
		p.outcome = OutcomeRolledBack
		p.mu.Unlock()
		p.logger.Warn("toggle analysis failed", "stopping", stopping, "error", err)
		return err
	}

	p.gen++
	if !stopping {
		p.setState(AnalysisState{Active: true, AutoTriggerEnabled: p.state.AutoTriggerEnabled})
		p.outcome = OutcomeConfirmed
		p.pending = OpNone
		p.mu.Unlock()
		p.logger.Info("analysis started")
		return nil
	}

	p.setState(AnalysisState{})
	p.outcome = OutcomeConfirmed
	p.mu.Unlock()
	p.logger.Info("analysis stopped")

	// The slot stays held so an enable cannot interleave with this disable.
	if derr := p.backend.DisableAutoTrigger(ctx); derr != nil {
		p.logger.Warn("disable auto-trigger after stop failed", "error", derr)
	}

	p.mu.Lock()
	p.pending = OpNone
	p.mu.Unlock()
	return nil
}

// ToggleAutoTrigger flips auto-triggering. Enabling requires active analysis.
func (p *Panel) ToggleAutoTrigger(ctx context.Context) error {
	p.mu.Lock()
	if p.pending != OpNone {
		p.mu.Unlock()
		return invalid("toggle auto-trigger", ErrBusy)
	}
	enabling := !p.state.AutoTriggerEnabled
	if enabling && !p.state.Active {
		p.mu.Unlock()
		return invalid("enable auto-trigger", ErrAnalysisInactive)
	}
	p.pending = OpToggleAutoTrigger
	p.mu.Unlock()

	var err error
	if enabling {
		err = p.backend.EnableAutoTrigger(ctx)
	} else {
		err = p.backend.DisableAutoTrigger(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = OpNone
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		p.outcome = OutcomeRolledBack
		p.logger.Warn("toggle auto-trigger failed", "enabling", enabling, "error", err)
		return err
	}
	if enabling && !p.state.Active {
		p.outcome = OutcomeRolledBack
		return invalid("enable auto-trigger", ErrAnalysisInactive)
	}
	p.gen++
	p.setState(AnalysisState{Active: p.state.Active, AutoTriggerEnabled: enabling})
	p.outcome = OutcomeConfirmed
	p.logger.Info("auto-trigger toggled", "enabled", enabling)
	return nil
}

// TriggerEffect plays effectID at the manual intensity and records it in
// the activity log once the backend accepts it.
func (p *Panel) TriggerEffect(ctx context.Context, effectID string) error {
	effectID = strings.TrimSpace(effectID)
	if effectID == "" {
		return &ValidationError{Field: "effect_id", Reason: "must not be empty"}
	}

	err := p.backend.TriggerManual(ctx, api.TriggerRequest{
		EffectType: effectID,
		Intensity:  api.ManualTriggerIntensity,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		p.logger.Warn("trigger effect failed", "effect", effectID, "error", err)
		return err
	}

	p.mu.Lock()
	p.activity.Record(effectID, p.now())
	p.mu.Unlock()
	p.logger.Info("effect triggered", "effect", effectID)
	return nil
}

// Refresh re-reads the analysis status and applies a stop made elsewhere.
// It does nothing while a toggle is pending, and a failed read keeps the
// current state. A read that a toggle confirmed after is discarded.
func (p *Panel) Refresh(ctx context.Context) error {
	p.mu.Lock()
	busy := p.pending != OpNone
	gen := p.gen
	p.mu.Unlock()
	if busy {
		return nil
	}

	status, err := p.backend.AnalysisStatus(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.pending != OpNone || p.gen != gen || status.Active == p.state.Active {
		p.mu.Unlock()
		return nil
	}
	hadAuto := p.state.AutoTriggerEnabled
	if status.Active {
		p.setState(AnalysisState{Active: true})
	} else {
		p.setState(AnalysisState{})
	}
	p.mu.Unlock()

	p.logger.Info("analysis state changed externally", "active", status.Active)
	if hadAuto && !status.Active {
		if derr := p.backend.DisableAutoTrigger(ctx); derr != nil {
			p.logger.Warn("disable auto-trigger after external stop failed", "error", derr)
		}
	}
	return nil
}

// setState installs s, enforcing that auto-trigger implies active. Callers
// hold p.mu.
func (p *Panel) setState(s AnalysisState) {
	if !s.Active {
		s.AutoTriggerEnabled = false
	}
	p.state = s
	if p.observe != nil {
		p.observe(s)
	}
}
