// Package api provides the client and wire types for talking to the SoundStage
// backend over its HTTP JSON endpoints.
package api

// Endpoint paths exposed by the backend.
const (
	PathConsent         = "/api/settings/consent"
	PathSettingsCurrent = "/api/settings/current"
	PathSettingsUpdate  = "/api/settings/update"
	PathProfileSave     = "/api/settings/profile/save"
	PathProfileList     = "/api/settings/profile/list"
	PathProfileLoad     = "/api/settings/profile/load"
	PathEffects         = "/api/trigger/effects"
	PathTriggerManual   = "/api/trigger/manual"
	PathAutoEnable      = "/api/trigger/auto/enable"
	PathAutoDisable     = "/api/trigger/auto/disable"
	PathAnalysisStatus  = "/api/analyze/status"
	PathAnalysisStart   = "/api/analyze/start"
	PathAnalysisStop    = "/api/analyze/stop"
	PathAudioDevices    = "/api/analyze/audio-devices"
)

// ManualTriggerIntensity is the fixed intensity sent with manual triggers.
const ManualTriggerIntensity = 0.7

// ConsentRecord is the consent payload sent once the user accepts.
type ConsentRecord struct {
	AudioCaptureConsent    bool `json:"audio_capture_consent"`
	CloudProcessingConsent bool `json:"cloud_processing_consent"`
	AnalyticsConsent       bool `json:"analytics_consent"`
}

// Settings is the single user-preference record stored by the backend.
type Settings struct {
	AudioInputDevice   *string `json:"audio_input_device"`
	AudioOutputDevice  *string `json:"audio_output_device"`
	AutoTriggerEnabled bool    `json:"auto_trigger_enabled"`
	TriggerSensitivity float64 `json:"trigger_sensitivity"`
	ElevenlabsAPIKey   *string `json:"elevenlabs_api_key"`
	EffectVolume       float64 `json:"effect_volume"`
	HotkeysEnabled     bool    `json:"hotkeys_enabled"`
}

// DefaultSettings mirrors the backend's defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		TriggerSensitivity: 0.5,
		EffectVolume:       0.8,
		HotkeysEnabled:     true,
	}
}

// Equal reports whether two settings records hold the same values.
func (s Settings) Equal(o Settings) bool {
	return strPtrEqual(s.AudioInputDevice, o.AudioInputDevice) &&
		strPtrEqual(s.AudioOutputDevice, o.AudioOutputDevice) &&
		s.AutoTriggerEnabled == o.AutoTriggerEnabled &&
		s.TriggerSensitivity == o.TriggerSensitivity &&
		strPtrEqual(s.ElevenlabsAPIKey, o.ElevenlabsAPIKey) &&
		s.EffectVolume == o.EffectVolume &&
		s.HotkeysEnabled == o.HotkeysEnabled
}

// SettingsPatch is a partial settings write. A nil ElevenlabsAPIKey is sent as
// an explicit null; a nil AudioInputDevice is omitted.
type SettingsPatch struct {
	AudioInputDevice *string `json:"audio_input_device,omitempty"`
	ElevenlabsAPIKey *string `json:"elevenlabs_api_key"`
}

// Effect is a read-only entry of the backend's effect catalog.
type Effect struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Device is an audio input device reported by the backend.
type Device struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Channels int    `json:"channels"`
}

// StartAnalysisRequest is the body of POST /api/analyze/start.
type StartAnalysisRequest struct {
	AudioSource    string `json:"audio_source"`
	EnableEmotion  bool   `json:"enable_emotion"`
	EnableKeywords bool   `json:"enable_keywords"`
	EnableEvents   bool   `json:"enable_events"`
}

// DefaultStartRequest is the fixed request used when the user starts analysis.
func DefaultStartRequest() StartAnalysisRequest {
	return StartAnalysisRequest{
		AudioSource:    "default",
		EnableEmotion:  true,
		EnableKeywords: true,
		EnableEvents:   true,
	}
}

// TriggerRequest is the body of POST /api/trigger/manual.
type TriggerRequest struct {
	EffectType string  `json:"effect_type"`
	Intensity  float64 `json:"intensity"`
}

// AnalysisStatus is returned by GET /api/analyze/status.
type AnalysisStatus struct {
	Active      bool    `json:"active"`
	AudioSource *string `json:"audio_source,omitempty"`
	Uptime      float64 `json:"uptime"`
}

type effectsResponse struct {
	Effects []Effect `json:"effects"`
}

type devicesResponse struct {
	Devices []Device `json:"devices"`
}

type profilesResponse struct {
	Profiles []string `json:"profiles"`
}

// StrPtr returns a pointer to s. Convenience for building settings.
func StrPtr(s string) *string { return &s }

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
