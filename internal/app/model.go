package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/erinmikailstaples/soundstage/internal/api"
	"github.com/erinmikailstaples/soundstage/internal/session"
	"github.com/erinmikailstaples/soundstage/internal/ui"
)

// Backend is everything the screens need from the SoundStage backend.
type Backend interface {
	session.ConsentBackend
	session.WizardBackend
	session.PanelBackend
	session.SettingsBackend
}

// Options configures the root model.
type Options struct {
	Backend      Backend
	Boot         *session.BootState
	Logger       *slog.Logger
	PollInterval time.Duration
	BackendURL   string
}

// settingsField is a row in the settings editor.
type settingsField int

const (
	fieldInputDevice settingsField = iota
	fieldOutputDevice
	fieldAutoTrigger
	fieldSensitivity
	fieldVolume
	fieldHotkeys
	fieldAPIKey
	fieldCount
)

// promptKind is what the settings prompt line is collecting.
type promptKind int

const (
	promptNone promptKind = iota
	promptField
	promptSaveProfile
	promptLoadProfile
)

// Model is the root bubbletea model for the soundstage TUI.
type Model struct {
	backend      Backend
	boot         *session.BootState
	logger       *slog.Logger
	pollInterval time.Duration
	backendURL   string

	// Session components
	router *session.Router
	gate   *session.ConsentGate
	wizard *session.Wizard
	panel  *session.Panel
	editor *session.SettingsEditor

	// Mounted screen. screenCtx is canceled when the screen changes;
	// runtimeCtx outlives dashboard and settings switches.
	screen        session.Screen
	mounted       bool
	screenCtx     context.Context
	screenCancel  context.CancelFunc
	runtimeCtx    context.Context
	runtimeCancel context.CancelFunc
	polling       bool
	initCmd       tea.Cmd

	// UI state
	width         int
	height        int
	deviceCursor  int
	effectCursor  int
	fieldCursor   settingsField
	keyInput      textinput.Model
	promptInput   textinput.Model
	prompt        promptKind
	spinner       spinner.Model
	panelLoading  bool
	editorLoading bool
	saving        bool

	// Errors
	errorMessage   string
	errorTransient bool
	errorSeq       int

	// Notices
	notice    string
	noticeSeq int

	quitting bool
}

// New creates the root model and mounts the first screen.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	keyInput := textinput.New()
	keyInput.Placeholder = "sk_..."
	keyInput.Prompt = "> "
	keyInput.EchoMode = textinput.EchoPassword
	keyInput.EchoCharacter = '•'

	promptInput := textinput.New()
	promptInput.Prompt = "> "

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = ui.SpinnerStyle

	runtimeCtx, runtimeCancel := context.WithCancel(context.Background())
	gate := session.NewConsentGate(opts.Backend, opts.Boot, logger)

	m := Model{
		backend:       opts.Backend,
		boot:          opts.Boot,
		logger:        logger,
		pollInterval:  opts.PollInterval,
		backendURL:    opts.BackendURL,
		router:        session.NewRouter(opts.Boot, gate),
		gate:          gate,
		runtimeCtx:    runtimeCtx,
		runtimeCancel: runtimeCancel,
		keyInput:      keyInput,
		promptInput:   promptInput,
		spinner:       spin,
	}
	m.initCmd = m.sync()
	return m
}

// Init starts the spinner and whatever the first screen needs.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.initCmd)
}

// Screen returns the mounted screen.
func (m Model) Screen() session.Screen { return m.screen }

// sync mounts the screen the router selects, if it changed.
func (m *Model) sync() tea.Cmd {
	cur := m.router.Current()
	if m.mounted && cur == m.screen {
		return nil
	}
	m.logger.Debug("screen change", "from", m.screen.String(), "to", cur.String())
	m.screen = cur
	m.mounted = true

	if m.screenCancel != nil {
		m.screenCancel()
	}
	m.screenCtx, m.screenCancel = context.WithCancel(m.runtimeCtx)
	m.prompt = promptNone
	m.promptInput.Blur()

	switch cur {
	case session.ScreenOnboarding:
		m.wizard = session.NewWizard(m.backend, m.boot, m.logger)
		m.deviceCursor = 0
		m.keyInput.Reset()
		m.keyInput.Blur()
		return nil

	case session.ScreenDashboard:
		m.wizard = nil
		m.editor = nil
		var cmds []tea.Cmd
		if m.panel == nil {
			m.panel = session.NewPanel(m.backend, session.WithPanelLogger(m.logger))
			m.panelLoading = true
			cmds = append(cmds, loadPanelCmd(m.runtimeCtx, m.panel))
		}
		if !m.polling && m.pollInterval > 0 {
			m.polling = true
			cmds = append(cmds, pollCmd(m.pollInterval))
		}
		return tea.Batch(cmds...)

	case session.ScreenSettings:
		m.editor = session.NewSettingsEditor(m.backend, m.logger)
		m.fieldCursor = 0
		m.editorLoading = true
		m.saving = false
		return loadEditorCmd(m.screenCtx, m.editor)
	}
	return nil
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {

	case tea.KeyMsg:
		m, cmd = m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)

	case ConsentResultMsg:
		cmd = m.setError(msg.Err)

	case WizardResultMsg:
		cmd = m.handleWizardResult(msg)

	case PanelLoadedMsg:
		m.panelLoading = false
		if msg.Err != nil {
			cmd = m.setError(fmt.Errorf("some dashboard data could not be loaded: %w", msg.Err))
		}

	case ToggleResultMsg:
		cmd = m.setError(msg.Err)

	case TriggerResultMsg:
		cmd = m.setError(msg.Err)

	case StatusTickMsg:
		if m.panel != nil {
			cmd = refreshCmd(m.runtimeCtx, m.panel)
		} else {
			cmd = pollCmd(m.pollInterval)
		}

	case StatusRefreshedMsg:
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.logger.Debug("status poll failed", "error", msg.Err)
		}
		cmd = pollCmd(m.pollInterval)

	case EditorLoadedMsg:
		m.editorLoading = false
		cmd = m.setError(msg.Err)

	case SettingsSavedMsg:
		m.saving = false
		if msg.Err != nil {
			cmd = m.setError(msg.Err)
		} else {
			cmd = m.setNotice("Settings saved")
		}

	case ProfileResultMsg:
		if msg.Err != nil {
			cmd = m.setError(msg.Err)
		} else {
			cmd = m.setNotice(fmt.Sprintf("Profile %q %sd", msg.Name, msg.Action))
		}

	case ProfilesListedMsg:
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.logger.Warn("list profiles failed", "error", msg.Err)
		}

	case ClearTransientErrorMsg:
		if m.errorTransient && msg.Seq == m.errorSeq {
			m.errorMessage = ""
			m.errorTransient = false
		}

	case ClearNoticeMsg:
		if msg.Seq == m.noticeSeq {
			m.notice = ""
		}

	default:
		// Cursor blink and other input-internal messages.
		if m.keyInput.Focused() {
			m.keyInput, cmd = m.keyInput.Update(msg)
		} else if m.prompt != promptNone {
			m.promptInput, cmd = m.promptInput.Update(msg)
		}
	}

	if m.quitting {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.sync())
}

func (m *Model) handleWizardResult(msg WizardResultMsg) tea.Cmd {
	cmd := m.setError(msg.Err)
	if m.wizard == nil {
		return cmd
	}
	switch m.wizard.Step() {
	case session.StepAPIKey:
		return tea.Batch(cmd, m.keyInput.Focus())
	case session.StepDone:
		m.keyInput.Blur()
		m.keyInput.Reset()
		if err := m.wizard.SaveError(); err != nil {
			return m.setError(fmt.Errorf("setup finished but settings were not saved: %w", err))
		}
	default:
		m.keyInput.Blur()
	}
	return cmd
}

// setError shows err in the error bar until it times out. Cancellations
// from leaving a screen are not shown.
func (m *Model) setError(err error) tea.Cmd {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	m.logger.Debug("showing error", "error", err)
	m.errorSeq++
	m.errorMessage = describeError(err)
	m.errorTransient = true
	return clearTransientErrorCmd(m.errorSeq)
}

func (m *Model) setNotice(s string) tea.Cmd {
	m.noticeSeq++
	m.notice = s
	return clearNoticeCmd(m.noticeSeq)
}

func (m Model) quit() (Model, tea.Cmd) {
	m.quitting = true
	if m.screenCancel != nil {
		m.screenCancel()
	}
	m.runtimeCancel()
	return m, tea.Quit
}

// inputFocused reports whether keystrokes belong to a text input.
func (m Model) inputFocused() bool {
	return m.keyInput.Focused() || m.prompt != promptNone
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m.quit()
	}
	if m.inputFocused() {
		return m.handleInputKey(msg)
	}
	if key == KeyQuit || key == KeyQuitUpper {
		return m.quit()
	}

	switch m.screen {
	case session.ScreenConsent:
		return m.handleConsentKey(key)
	case session.ScreenOnboarding:
		return m.handleWizardKey(key)
	case session.ScreenDashboard:
		return m.handleDashboardKey(key)
	case session.ScreenSettings:
		return m.handleSettingsKey(key)
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	key := msg.String()

	if m.keyInput.Focused() {
		switch key {
		case KeyEnter:
			m.wizard.SetAPIKey(m.keyInput.Value())
			return m, wizardCmd(m.screenCtx, m.wizard.Next)
		case KeyTab:
			return m, wizardCmd(m.screenCtx, m.wizard.Skip)
		case KeyEsc:
			m.keyInput.Blur()
			return m, wizardCmd(m.screenCtx, m.wizard.Back)
		}
		var cmd tea.Cmd
		m.keyInput, cmd = m.keyInput.Update(msg)
		return m, cmd
	}

	switch key {
	case KeyEnter:
		value := m.promptInput.Value()
		kind := m.prompt
		m.prompt = promptNone
		m.promptInput.Blur()
		return m, m.commitPrompt(kind, value)
	case KeyEsc:
		m.prompt = promptNone
		m.promptInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	return m, cmd
}

func (m Model) handleConsentKey(key string) (Model, tea.Cmd) {
	switch key {
	case KeyCloudToggle, KeySpace:
		m.gate.SetCloudProcessing(!m.gate.CloudProcessing())
	case KeyAccept, KeyEnter:
		if m.gate.Busy() {
			return m, nil
		}
		return m, acceptConsentCmd(m.screenCtx, m.gate)
	case KeyDecline, KeyEsc:
		m.gate.Decline()
	}
	return m, nil
}

func (m Model) handleWizardKey(key string) (Model, tea.Cmd) {
	snap := m.wizard.Snapshot()
	if snap.Busy {
		return m, nil
	}

	switch snap.Step {
	case session.StepWelcome:
		if key == KeyEnter {
			return m, wizardCmd(m.screenCtx, m.wizard.Next)
		}

	case session.StepDeviceSelect:
		switch key {
		case KeyUp, KeyK:
			if m.deviceCursor > 0 {
				m.deviceCursor--
			}
		case KeyDown, KeyJ:
			if m.deviceCursor < len(snap.Devices)-1 {
				m.deviceCursor++
			}
		case KeySpace:
			if m.deviceCursor < len(snap.Devices) {
				return m, m.setError(m.wizard.SelectDevice(snap.Devices[m.deviceCursor].ID))
			}
		case KeyEnter:
			return m, wizardCmd(m.screenCtx, m.wizard.Next)
		case KeyEsc, KeyLeft:
			return m, wizardCmd(m.screenCtx, m.wizard.Back)
		}

	case session.StepAPIKey:
		switch key {
		case KeyEnter:
			return m, m.keyInput.Focus()
		case KeyTab:
			return m, wizardCmd(m.screenCtx, m.wizard.Skip)
		case KeyEsc, KeyLeft:
			return m, wizardCmd(m.screenCtx, m.wizard.Back)
		}
	}
	return m, nil
}

func (m Model) handleDashboardKey(key string) (Model, tea.Cmd) {
	if m.panel == nil {
		return m, nil
	}
	effects := m.panel.Snapshot().Effects

	switch key {
	case KeyToggleAnalysis, KeySpace:
		return m, toggleAnalysisCmd(m.runtimeCtx, m.panel)
	case KeyToggleAuto:
		return m, toggleAutoCmd(m.runtimeCtx, m.panel)
	case KeyRefresh:
		return m, refreshCmd(m.runtimeCtx, m.panel)
	case KeySettings:
		return m, m.setError(m.router.OpenSettings())
	case KeyUp, KeyK:
		if m.effectCursor > 0 {
			m.effectCursor--
		}
	case KeyDown, KeyJ:
		if m.effectCursor < len(effects)-1 {
			m.effectCursor++
		}
	case KeyEnter:
		if m.effectCursor < len(effects) {
			return m, triggerCmd(m.runtimeCtx, m.panel, effects[m.effectCursor].ID)
		}
	default:
		// Number keys fire effects directly.
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(effects) && n <= 9 {
			return m, triggerCmd(m.runtimeCtx, m.panel, effects[n-1].ID)
		}
	}
	return m, nil
}

func (m Model) handleSettingsKey(key string) (Model, tea.Cmd) {
	if m.editor == nil {
		return m, nil
	}

	switch key {
	case KeyEsc:
		return m, m.setError(m.router.CloseSettings())
	case KeyUp, KeyK:
		if m.fieldCursor > 0 {
			m.fieldCursor--
		}
	case KeyDown, KeyJ:
		if m.fieldCursor < fieldCount-1 {
			m.fieldCursor++
		}
	case KeyLeft, KeyH:
		m.adjustField(-1)
	case KeyRight, KeyL:
		m.adjustField(1)
	case KeyEnter, KeySpace:
		return m, m.activateField()
	case KeySave, KeySaveAlt:
		if m.saving {
			return m, nil
		}
		m.saving = true
		return m, saveSettingsCmd(m.screenCtx, m.editor)
	case KeyRevert:
		m.editor.Revert()
	case KeySaveProfile:
		return m, m.openPrompt(promptSaveProfile, "", false)
	case KeyLoadProfile:
		return m, m.openPrompt(promptLoadProfile, "", false)
	}
	return m, nil
}

// adjustField nudges numeric fields and flips booleans.
func (m *Model) adjustField(dir int) {
	switch m.fieldCursor {
	case fieldSensitivity:
		m.editor.NudgeTriggerSensitivity(dir)
	case fieldVolume:
		m.editor.NudgeEffectVolume(dir)
	case fieldAutoTrigger, fieldHotkeys:
		m.toggleBoolField()
	}
}

func (m *Model) toggleBoolField() {
	s := m.editor.Settings()
	switch m.fieldCursor {
	case fieldAutoTrigger:
		m.editor.SetAutoTriggerEnabled(!s.AutoTriggerEnabled)
	case fieldHotkeys:
		m.editor.SetHotkeysEnabled(!s.HotkeysEnabled)
	}
}

// activateField toggles booleans or opens the prompt for text fields.
func (m *Model) activateField() tea.Cmd {
	s := m.editor.Settings()
	switch m.fieldCursor {
	case fieldAutoTrigger, fieldHotkeys:
		m.toggleBoolField()
	case fieldInputDevice:
		return m.openPrompt(promptField, deref(s.AudioInputDevice), false)
	case fieldOutputDevice:
		return m.openPrompt(promptField, deref(s.AudioOutputDevice), false)
	case fieldAPIKey:
		return m.openPrompt(promptField, deref(s.ElevenlabsAPIKey), true)
	}
	return nil
}

func (m *Model) openPrompt(kind promptKind, value string, secret bool) tea.Cmd {
	m.prompt = kind
	m.promptInput.SetValue(value)
	m.promptInput.CursorEnd()
	if secret {
		m.promptInput.EchoMode = textinput.EchoPassword
		m.promptInput.EchoCharacter = '•'
	} else {
		m.promptInput.EchoMode = textinput.EchoNormal
	}
	switch kind {
	case promptSaveProfile, promptLoadProfile:
		m.promptInput.Placeholder = "profile name"
	default:
		m.promptInput.Placeholder = "leave empty for default"
	}
	return m.promptInput.Focus()
}

func (m *Model) commitPrompt(kind promptKind, value string) tea.Cmd {
	if m.editor == nil {
		return nil
	}
	switch kind {
	case promptField:
		switch m.fieldCursor {
		case fieldInputDevice:
			m.editor.SetAudioInputDevice(value)
		case fieldOutputDevice:
			m.editor.SetAudioOutputDevice(value)
		case fieldAPIKey:
			m.editor.SetElevenlabsAPIKey(value)
		}
	case promptSaveProfile:
		return saveProfileCmd(m.screenCtx, m.editor, value)
	case promptLoadProfile:
		return loadProfileCmd(m.screenCtx, m.editor, value)
	}
	return nil
}

// describeError turns a session or backend error into a one-line message.
func describeError(err error) string {
	var ne *api.NetworkError
	var ve *session.ValidationError
	switch {
	case errors.Is(err, session.ErrBusy):
		return "Another request is still in progress"
	case errors.Is(err, session.ErrAnalysisInactive):
		return "Start audio analysis before enabling auto-trigger"
	case errors.Is(err, session.ErrUnsavedChanges):
		return "Save your changes before storing a profile"
	case errors.As(err, &ve):
		return ve.Reason
	case errors.As(err, &ne) && ne.Transport():
		return "Cannot reach the SoundStage backend"
	default:
		return err.Error()
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
