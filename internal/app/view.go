package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/erinmikailstaples/soundstage/internal/session"
	"github.com/erinmikailstaples/soundstage/internal/ui"
)

const sliderWidth = 20

// View renders the full TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	switch m.screen {
	case session.ScreenConsent:
		sections = append(sections, m.renderConsent())
	case session.ScreenDeclined:
		sections = append(sections, m.renderDeclined())
	case session.ScreenOnboarding:
		sections = append(sections, m.renderWizard())
	case session.ScreenDashboard:
		sections = append(sections, m.renderDashboard())
	case session.ScreenSettings:
		sections = append(sections, m.renderSettings())
	}

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}
	if m.notice != "" {
		sections = append(sections, ui.SuccessStyle.Render("✓ "+m.notice))
	}

	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("SOUNDSTAGE")
	var where string
	if m.backendURL != "" {
		where = ui.DimStyle.Render("  " + m.backendURL)
	}
	return title + where
}

func (m Model) renderConsent() string {
	width := min(72, max(30, m.width-6))
	check := "[ ]"
	if m.gate.CloudProcessing() {
		check = ui.SelectedStyle.Render("[x]")
	}

	var lines []string
	lines = append(lines, ui.TitleStyle.Render("Welcome to SoundStage"))
	lines = append(lines, ui.SubtitleStyle.Render("Privacy & Consent"), "")
	lines = append(lines, ui.PanelTitleStyle.Render("Required: Audio Capture"))
	lines = append(lines, wrapText("SoundStage needs permission to capture audio from your microphone and/or system audio to analyze your stream and trigger sound effects.", width)...)
	lines = append(lines,
		ui.DimStyle.Render("  • Audio is processed locally on your device by default"),
		ui.DimStyle.Render("  • No audio is recorded or stored"),
		ui.DimStyle.Render("  • You can revoke this permission at any time"),
		"",
	)
	lines = append(lines, check+" "+ui.PanelTitleStyle.Render("Optional: Cloud Processing"))
	for _, l := range wrapText("Enable cloud-based audio analysis for improved accuracy. Audio will be sent to our secure servers for processing.", width-4) {
		lines = append(lines, "    "+l)
	}
	if m.gate.Busy() {
		lines = append(lines, "", m.spinner.View()+" Saving consent...")
	}
	return ui.DialogStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderDeclined() string {
	lines := []string{
		ui.PanelTitleStyle.Render("Audio capture consent was declined."),
		"",
		ui.DimStyle.Render("SoundStage cannot analyze your stream without it."),
		ui.DimStyle.Render("Restart soundstage to review the consent again."),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderWizard() string {
	if m.wizard == nil {
		return ""
	}
	snap := m.wizard.Snapshot()

	var lines []string
	lines = append(lines, ui.DimStyle.Render(fmt.Sprintf("Step %d of 3", min(int(snap.Step), 3))), "")

	switch snap.Step {
	case session.StepWelcome:
		lines = append(lines,
			ui.TitleStyle.Render("Welcome to SoundStage!"),
			ui.DimStyle.Render("Let's get you set up in just a few steps"),
			"",
			"  🎤 "+ui.PanelTitleStyle.Render("Real-time Audio Analysis"),
			ui.DimStyle.Render("     Automatically detect emotions and events in your stream"),
			"  🔊 "+ui.PanelTitleStyle.Render("Dynamic Sound Effects"),
			ui.DimStyle.Render("     Trigger crowd reactions with AI-generated audio"),
			"  🎮 "+ui.PanelTitleStyle.Render("Stream Deck Integration"),
			ui.DimStyle.Render("     Manual controls at your fingertips"),
		)

	case session.StepDeviceSelect:
		lines = append(lines,
			ui.TitleStyle.Render("Select Your Audio Source"),
			ui.DimStyle.Render("Choose which audio input to monitor for your stream"),
			"",
		)
		switch {
		case snap.DevicesLoading:
			lines = append(lines, "  "+m.spinner.View()+" Looking for audio devices...")
		case len(snap.Devices) == 0:
			lines = append(lines, ui.ErrorTextStyle.Render("  No audio input devices found."))
		default:
			for i, d := range snap.Devices {
				mark := "( )"
				if snap.Selected != nil && *snap.Selected == d.ID {
					mark = ui.SelectedStyle.Render("(•)")
				}
				label := fmt.Sprintf("%s %s", mark, d.Name)
				detail := ui.DimStyle.Render(fmt.Sprintf(" %s, %d ch", d.Type, d.Channels))
				if i == m.deviceCursor {
					lines = append(lines, ui.SelectedStyle.Render("> ")+label+detail)
				} else {
					lines = append(lines, "  "+label+detail)
				}
			}
		}
		if !snap.CanContinue() && !snap.DevicesLoading {
			lines = append(lines, "", ui.DimStyle.Render("  Select a device to continue"))
		}

	case session.StepAPIKey:
		lines = append(lines,
			ui.TitleStyle.Render("ElevenLabs API Key (Optional)"),
			ui.DimStyle.Render("Add your ElevenLabs API key for sound effect generation"),
			"",
			m.keyInput.View(),
			"",
			ui.DimStyle.Render("Note: you can add or change this later in Settings."),
		)
		if snap.Busy {
			lines = append(lines, "", m.spinner.View()+" Saving setup...")
		}

	case session.StepDone:
		lines = append(lines, ui.SuccessStyle.Render("Setup complete"))
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderDashboard() string {
	if m.panel == nil {
		return ""
	}
	snap := m.panel.Snapshot()
	if m.panelLoading && !snap.Loaded {
		return "  " + m.spinner.View() + " Loading dashboard..."
	}

	var lines []string

	// Analysis
	lines = append(lines, ui.PanelTitleStyle.Render("Audio Analysis"))
	var status string
	switch {
	case snap.Pending == session.OpToggleAnalysis && snap.State.Active:
		status = ui.PendingStyle.Render(m.spinner.View() + " Stopping...")
	case snap.Pending == session.OpToggleAnalysis:
		status = ui.PendingStyle.Render(m.spinner.View() + " Starting...")
	case snap.State.Active:
		status = ui.LiveDotStyle.Render("● LIVE")
	default:
		status = ui.IdleDotStyle.Render("○ IDLE")
	}
	lines = append(lines, "  "+status)

	// Auto-trigger
	lines = append(lines, "", ui.PanelTitleStyle.Render("Auto-Trigger"))
	var auto string
	switch {
	case snap.Pending == session.OpToggleAutoTrigger:
		auto = ui.PendingStyle.Render(m.spinner.View() + " Updating...")
	case snap.State.AutoTriggerEnabled:
		auto = ui.OnBadgeStyle.Render("ON")
	default:
		auto = ui.OffBadgeStyle.Render("OFF")
	}
	if !snap.State.Active && snap.Pending == session.OpNone {
		auto += ui.DimStyle.Render("  (start analysis first)")
	}
	lines = append(lines, "  "+auto)

	// Manual triggers
	lines = append(lines, "", ui.PanelTitleStyle.Render(fmt.Sprintf("Manual Triggers (%d)", len(snap.Effects))))
	if len(snap.Effects) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No effects available"))
	}
	for i, e := range snap.Effects {
		label := fmt.Sprintf("%d. %s", i+1, e.Name)
		if i >= 9 {
			label = "   " + e.Name
		}
		cat := ui.DimStyle.Render(" " + e.Category)
		if i == m.effectCursor {
			lines = append(lines, ui.SelectedStyle.Render("> "+label)+cat)
		} else {
			lines = append(lines, "  "+label+cat)
		}
	}

	// Recent activity
	lines = append(lines, "", ui.PanelTitleStyle.Render("Recent Activity"))
	if len(snap.Activity) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No recent triggers"))
	}
	now := time.Now()
	for _, a := range snap.Activity {
		lines = append(lines, "  "+a.EffectID+ui.DimStyle.Render("  "+ago(now, a.At)))
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderSettings() string {
	if m.editor == nil {
		return ""
	}
	snap := m.editor.Snapshot()

	var lines []string
	title := ui.TitleStyle.Render("Settings")
	if snap.Dirty {
		title += ui.PendingStyle.Render("  (unsaved changes)")
	}
	if m.saving {
		title += "  " + m.spinner.View() + " Saving..."
	}
	lines = append(lines, title, "")
	if m.editorLoading {
		lines = append(lines, "  "+m.spinner.View()+" Loading settings...")
		return strings.Join(lines, "\n")
	}

	s := snap.Settings
	rows := []struct {
		field settingsField
		label string
		value string
	}{
		{fieldInputDevice, "Input Device", orDefault(s.AudioInputDevice)},
		{fieldOutputDevice, "Output Device", orDefault(s.AudioOutputDevice)},
		{fieldAutoTrigger, "Auto-Trigger", onOff(s.AutoTriggerEnabled)},
		{fieldSensitivity, "Trigger Sensitivity", ui.Bar(s.TriggerSensitivity, sliderWidth) + fmt.Sprintf(" %3.0f%%", s.TriggerSensitivity*100)},
		{fieldVolume, "Effect Volume", ui.Bar(s.EffectVolume, sliderWidth) + fmt.Sprintf(" %3.0f%%", s.EffectVolume*100)},
		{fieldHotkeys, "Enable Hotkeys", onOff(s.HotkeysEnabled)},
		{fieldAPIKey, "ElevenLabs API Key", maskKey(s.ElevenlabsAPIKey)},
	}
	for _, r := range rows {
		label := padRight(r.label, 22)
		if r.field == m.fieldCursor {
			lines = append(lines, ui.SelectedStyle.Render("> "+label)+r.value)
		} else {
			lines = append(lines, "  "+label+r.value)
		}
		if r.field == m.fieldCursor && m.prompt == promptField {
			lines = append(lines, "    "+m.promptInput.View())
		}
	}
	if m.fieldCursor == fieldSensitivity {
		lines = append(lines, "", ui.DimStyle.Render("  Higher sensitivity = more frequent triggers"))
	}
	if m.fieldCursor == fieldAPIKey {
		lines = append(lines, "", ui.DimStyle.Render("  Your API key is stored locally and never shared"))
	}

	lines = append(lines, "", ui.PanelTitleStyle.Render("Profiles"))
	if len(snap.Profiles) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No saved profiles"))
	} else {
		lines = append(lines, "  "+strings.Join(snap.Profiles, ", "))
	}
	switch m.prompt {
	case promptSaveProfile:
		lines = append(lines, "  Save as: "+m.promptInput.View())
	case promptLoadProfile:
		lines = append(lines, "  Load: "+m.promptInput.View())
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string
	switch m.screen {
	case session.ScreenConsent:
		parts = append(parts, ui.Key("y", "Accept & Continue"), ui.Key("c", "Cloud processing"), ui.Key("n", "Decline"))
	case session.ScreenOnboarding:
		if m.wizard != nil {
			switch m.wizard.Step() {
			case session.StepWelcome:
				parts = append(parts, ui.Key("Enter", "Get Started"))
			case session.StepDeviceSelect:
				parts = append(parts, ui.Key("↑↓", "Move"), ui.Key("Space", "Select"), ui.Key("Enter", "Continue"), ui.Key("Esc", "Back"))
			case session.StepAPIKey:
				parts = append(parts, ui.Key("Enter", "Finish"), ui.Key("Tab", "Skip"), ui.Key("Esc", "Back"))
			}
		}
	case session.ScreenDashboard:
		parts = append(parts, ui.Key("a", "Analysis"), ui.Key("t", "Auto-trigger"), ui.Key("Enter/1-9", "Trigger"), ui.Key("s", "Settings"))
	case session.ScreenSettings:
		if m.prompt != promptNone {
			parts = append(parts, ui.Key("Enter", "Confirm"), ui.Key("Esc", "Cancel"))
		} else {
			parts = append(parts, ui.Key("↑↓", "Field"), ui.Key("←→", "Adjust"), ui.Key("Enter", "Edit"), ui.Key("w", "Save"), ui.Key("u", "Revert"), ui.Key("p/o", "Save/Load profile"), ui.Key("Esc", "Back"))
		}
	}
	if !m.inputFocused() {
		parts = append(parts, ui.Key("q", "Quit"))
	} else {
		parts = append(parts, ui.Key("ctrl+c", "Quit"))
	}
	return ui.Footer(parts...)
}

// Helpers

func ago(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 5*time.Second:
		return "Just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return t.Format("15:04")
	}
}

func orDefault(s *string) string {
	if s == nil || *s == "" {
		return ui.DimStyle.Render("Default")
	}
	return *s
}

func onOff(v bool) string {
	if v {
		return ui.OnBadgeStyle.Render("ON")
	}
	return ui.OffBadgeStyle.Render("OFF")
}

func maskKey(s *string) string {
	if s == nil || *s == "" {
		return ui.DimStyle.Render("not set")
	}
	k := *s
	if len(k) <= 4 {
		return strings.Repeat("•", len(k))
	}
	return strings.Repeat("•", 8) + k[len(k)-4:]
}

func padRight(s string, width int) string {
	// Visible width, ignoring ANSI codes.
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
