package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/erinmikailstaples/soundstage/internal/session"
)

// Delays for transient UI feedback.
const (
	transientErrorDelay = 5 * time.Second
	noticeDelay         = 2 * time.Second
)

// acceptConsentCmd records consent with the backend.
func acceptConsentCmd(ctx context.Context, gate *session.ConsentGate) tea.Cmd {
	return func() tea.Msg {
		return ConsentResultMsg{Err: gate.Accept(ctx)}
	}
}

// wizardCmd runs one wizard transition (Next, Back or Skip).
func wizardCmd(ctx context.Context, step func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return WizardResultMsg{Err: step(ctx)}
	}
}

// loadPanelCmd fetches the effect catalog and analysis status.
func loadPanelCmd(ctx context.Context, p *session.Panel) tea.Cmd {
	return func() tea.Msg {
		return PanelLoadedMsg{Err: p.LoadInitial(ctx)}
	}
}

// toggleAnalysisCmd starts or stops live analysis.
func toggleAnalysisCmd(ctx context.Context, p *session.Panel) tea.Cmd {
	return func() tea.Msg {
		return ToggleResultMsg{Op: session.OpToggleAnalysis, Err: p.ToggleAnalysis(ctx)}
	}
}

// toggleAutoCmd turns auto-triggering on or off.
func toggleAutoCmd(ctx context.Context, p *session.Panel) tea.Cmd {
	return func() tea.Msg {
		return ToggleResultMsg{Op: session.OpToggleAutoTrigger, Err: p.ToggleAutoTrigger(ctx)}
	}
}

// triggerCmd plays one effect.
func triggerCmd(ctx context.Context, p *session.Panel, effectID string) tea.Cmd {
	return func() tea.Msg {
		return TriggerResultMsg{EffectID: effectID, Err: p.TriggerEffect(ctx, effectID)}
	}
}

// refreshCmd re-reads the analysis status.
func refreshCmd(ctx context.Context, p *session.Panel) tea.Cmd {
	return func() tea.Msg {
		return StatusRefreshedMsg{Err: p.Refresh(ctx)}
	}
}

// pollCmd schedules the next status poll.
func pollCmd(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		return nil
	}
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return StatusTickMsg{}
	})
}

// loadEditorCmd fetches current settings and the profile list.
func loadEditorCmd(ctx context.Context, e *session.SettingsEditor) tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return EditorLoadedMsg{Err: e.Load(ctx)} },
		listProfilesCmd(ctx, e),
	)
}

// saveSettingsCmd writes the edited settings.
func saveSettingsCmd(ctx context.Context, e *session.SettingsEditor) tea.Cmd {
	return func() tea.Msg {
		return SettingsSavedMsg{Err: e.Save(ctx)}
	}
}

// listProfilesCmd refreshes the saved profile names.
func listProfilesCmd(ctx context.Context, e *session.SettingsEditor) tea.Cmd {
	return func() tea.Msg {
		_, err := e.ListProfiles(ctx)
		return ProfilesListedMsg{Err: err}
	}
}

// saveProfileCmd stores the current settings under name.
func saveProfileCmd(ctx context.Context, e *session.SettingsEditor, name string) tea.Cmd {
	return func() tea.Msg {
		return ProfileResultMsg{Action: "save", Name: name, Err: e.SaveProfile(ctx, name)}
	}
}

// loadProfileCmd makes the named profile current.
func loadProfileCmd(ctx context.Context, e *session.SettingsEditor, name string) tea.Cmd {
	return func() tea.Msg {
		return ProfileResultMsg{Action: "load", Name: name, Err: e.LoadProfile(ctx, name)}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd(seq int) tea.Cmd {
	return tea.Tick(transientErrorDelay, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{Seq: seq}
	})
}

// clearNoticeCmd fires after a delay to clear the notice line.
func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeDelay, func(time.Time) tea.Msg {
		return ClearNoticeMsg{Seq: seq}
	})
}
