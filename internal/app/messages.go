package app

import "github.com/erinmikailstaples/soundstage/internal/session"

// ConsentResultMsg is sent when an accept call returns.
type ConsentResultMsg struct {
	Err error
}

// WizardResultMsg is sent when a wizard transition finishes.
type WizardResultMsg struct {
	Err error
}

// PanelLoadedMsg is sent once the catalog and status have been fetched.
type PanelLoadedMsg struct {
	Err error
}

// ToggleResultMsg carries the outcome of an analysis or auto-trigger toggle.
type ToggleResultMsg struct {
	Op  session.Op
	Err error
}

// TriggerResultMsg carries the outcome of a manual trigger.
type TriggerResultMsg struct {
	EffectID string
	Err      error
}

// StatusTickMsg asks for an analysis status poll.
type StatusTickMsg struct{}

// StatusRefreshedMsg is sent after a status poll.
type StatusRefreshedMsg struct {
	Err error
}

// EditorLoadedMsg is sent when the settings editor has fetched settings.
type EditorLoadedMsg struct {
	Err error
}

// SettingsSavedMsg is sent when a settings save returns.
type SettingsSavedMsg struct {
	Err error
}

// ProfileResultMsg is sent when a profile save or load returns.
type ProfileResultMsg struct {
	Action string
	Name   string
	Err    error
}

// ProfilesListedMsg is sent when the profile list has been fetched.
type ProfilesListedMsg struct {
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout. Only the
// error with the matching sequence number is cleared.
type ClearTransientErrorMsg struct {
	Seq int
}

// ClearNoticeMsg clears a notice such as "Saved" after a timeout.
type ClearNoticeMsg struct {
	Seq int
}
