package app

// Key binding constants used in the key handlers.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeyEnter     = "enter"
	KeyEsc       = "esc"
	KeySpace     = " "
	KeyTab       = "tab"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyLeft      = "left"
	KeyRight     = "right"
	KeyJ         = "j"
	KeyK         = "k"
	KeyH         = "h"
	KeyL         = "l"

	// Consent
	KeyAccept      = "y"
	KeyDecline     = "n"
	KeyCloudToggle = "c"

	// Dashboard
	KeyToggleAnalysis = "a"
	KeyToggleAuto     = "t"
	KeyRefresh        = "r"
	KeySettings       = "s"

	// Settings
	KeySave        = "ctrl+s"
	KeySaveAlt     = "w"
	KeyRevert      = "u"
	KeySaveProfile = "p"
	KeyLoadProfile = "o"
)
