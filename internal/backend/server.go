// Package backend is an in-memory implementation of the SoundStage backend
// contract. It backs `soundstage backend` for local development and serves as
// the HTTP fixture for client and session tests.
package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/erinmikailstaples/soundstage/internal/api"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultEffects is the catalog served on a fresh start.
func DefaultEffects() []api.Effect {
	return []api.Effect{
		{ID: "cheer", Name: "Cheer", Category: "positive"},
		{ID: "applause", Name: "Applause", Category: "positive"},
		{ID: "laugh", Name: "Laugh", Category: "positive"},
		{ID: "boo", Name: "Boo", Category: "negative"},
		{ID: "gasp", Name: "Gasp", Category: "reaction"},
		{ID: "wow", Name: "Wow", Category: "reaction"},
	}
}

// DefaultDevices is the device list served on a fresh start.
func DefaultDevices() []api.Device {
	return []api.Device{
		{ID: 0, Name: "Default Microphone", Type: "input", Channels: 2},
	}
}

// Snapshot is a copy of the server's state for assertions.
type Snapshot struct {
	Active      bool
	AudioSource string
	AutoTrigger bool
	Consent     *api.ConsentRecord
	Settings    api.Settings
	Triggers    []string
	Profiles    []string
}

type hold struct {
	release chan struct{}
	entered chan struct{}
}

// Server holds the backend state behind a gin engine.
type Server struct {
	mu          sync.Mutex
	active      bool
	audioSource string
	startedAt   time.Time
	autoTrigger bool
	consent     *api.ConsentRecord
	settings    api.Settings
	profiles    map[string]api.Settings
	triggers    []string
	effects     []api.Effect
	devices     []api.Device

	failures map[string][]int
	holds    map[string]*hold
	calls    map[string]int

	engine *gin.Engine
	logger *slog.Logger
}

// New creates a Server with default catalog, devices and settings.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		settings: api.DefaultSettings(),
		profiles: make(map[string]api.Settings),
		effects:  DefaultEffects(),
		devices:  DefaultDevices(),
		failures: make(map[string][]int),
		holds:    make(map[string]*hold),
		calls:    make(map[string]int),
		logger:   logger,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving the backend contract.
func (s *Server) Handler() http.Handler { return s.engine }

// SetDevices replaces the device list.
func (s *Server) SetDevices(devices []api.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append([]api.Device(nil), devices...)
}

// SetEffects replaces the effect catalog.
func (s *Server) SetEffects(effects []api.Effect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects = append([]api.Effect(nil), effects...)
}

// SetActive changes the analysis state without a client request, as when the
// engine stops on its own.
func (s *Server) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// FailNext makes the next request to path answer with status.
// Calls queue: FailNext twice fails the next two requests.
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], status)
}

// Hold blocks the next request to path until release is called. entered is
// closed once that request has arrived.
func (s *Server) Hold(path string) (entered <-chan struct{}, release func()) {
	h := &hold{release: make(chan struct{}), entered: make(chan struct{})}
	s.mu.Lock()
	s.holds[path] = h
	s.mu.Unlock()
	var once sync.Once
	return h.entered, func() { once.Do(func() { close(h.release) }) }
}

// Calls returns how many requests reached path, including failed ones.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Snapshot returns a copy of the current state.
func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Active:      s.active,
		AudioSource: s.audioSource,
		AutoTrigger: s.autoTrigger,
		Settings:    s.settings,
		Triggers:    append([]string(nil), s.triggers...),
	}
	if s.consent != nil {
		c := *s.consent
		snap.Consent = &c
	}
	for name := range s.profiles {
		snap.Profiles = append(snap.Profiles, name)
	}
	return snap
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("backend listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog(), s.faults())

	settings := r.Group("/api/settings")
	settings.POST("/consent", s.setConsent)
	settings.GET("/consent", s.getConsent)
	settings.GET("/current", s.currentSettings)
	settings.POST("/update", s.updateSettings)
	settings.POST("/profile/save", s.saveProfile)
	settings.GET("/profile/list", s.listProfiles)
	settings.POST("/profile/load", s.loadProfile)

	analyze := r.Group("/api/analyze")
	analyze.POST("/start", s.startAnalysis)
	analyze.POST("/stop", s.stopAnalysis)
	analyze.GET("/status", s.status)
	analyze.GET("/audio-devices", s.audioDevices)

	trigger := r.Group("/api/trigger")
	trigger.POST("/manual", s.manualTrigger)
	trigger.POST("/auto/enable", s.enableAuto)
	trigger.POST("/auto/disable", s.disableAuto)
	trigger.GET("/effects", s.listEffects)
	trigger.GET("/history", s.history)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "elapsed", time.Since(start))
	}
}

// faults applies holds and queued failures before the route handler runs.
func (s *Server) faults() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		s.mu.Lock()
		s.calls[path]++
		h := s.holds[path]
		delete(s.holds, path)
		s.mu.Unlock()

		if h != nil {
			close(h.entered)
			select {
			case <-h.release:
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}

		s.mu.Lock()
		var status int
		if queue := s.failures[path]; len(queue) > 0 {
			status = queue[0]
			s.failures[path] = queue[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			c.AbortWithStatusJSON(status, gin.H{"detail": "injected failure"})
			return
		}
		c.Next()
	}
}

func (s *Server) setConsent(c *gin.Context) {
	var req api.ConsentRecord
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	s.consent = &req
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"audio_capture":    req.AudioCaptureConsent,
		"cloud_processing": req.CloudProcessingConsent,
		"analytics":        req.AnalyticsConsent,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getConsent(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rec api.ConsentRecord
	if s.consent != nil {
		rec = *s.consent
	}
	c.JSON(http.StatusOK, gin.H{
		"audio_capture":    rec.AudioCaptureConsent,
		"cloud_processing": rec.CloudProcessingConsent,
		"analytics":        rec.AnalyticsConsent,
		"consent_required": !rec.AudioCaptureConsent,
	})
}

func (s *Server) currentSettings(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.settings)
}

// updateSettings replaces the record; fields missing from the body take their
// defaults, matching the backend's model validation.
func (s *Server) updateSettings(c *gin.Context) {
	next := api.DefaultSettings()
	if err := c.ShouldBindJSON(&next); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if !inUnitRange(next.TriggerSensitivity) || !inUnitRange(next.EffectVolume) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "sensitivity and volume must be within [0, 1]"})
		return
	}
	s.mu.Lock()
	s.settings = next
	s.mu.Unlock()
	c.JSON(http.StatusOK, next)
}

func (s *Server) saveProfile(c *gin.Context) {
	name := c.Query("profile_name")
	if name == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "profile_name is required"})
		return
	}
	s.mu.Lock()
	s.profiles[name] = s.settings
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "saved", "profile_name": name})
}

func (s *Server) listProfiles(c *gin.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"profiles": names})
}

func (s *Server) loadProfile(c *gin.Context) {
	name := c.Query("profile_name")
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "profile not found"})
		return
	}
	s.settings = profile
	c.JSON(http.StatusOK, gin.H{"status": "loaded", "profile_name": name})
}

func (s *Server) startAnalysis(c *gin.Context) {
	var req api.StartAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AudioSource == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "audio_source is required"})
		return
	}
	s.mu.Lock()
	s.active = true
	s.audioSource = req.AudioSource
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("analysis started", "audio_source", req.AudioSource)
	c.JSON(http.StatusOK, gin.H{
		"status":       "started",
		"message":      "Audio analysis started successfully",
		"audio_source": req.AudioSource,
	})
}

func (s *Server) stopAnalysis(c *gin.Context) {
	s.mu.Lock()
	s.active = false
	s.audioSource = ""
	s.mu.Unlock()

	s.logger.Info("analysis stopped")
	c.JSON(http.StatusOK, gin.H{"status": "stopped", "message": "Audio analysis stopped"})
}

func (s *Server) status(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var source any
	uptime := 0.0
	if s.active {
		source = s.audioSource
		uptime = time.Since(s.startedAt).Seconds()
	}
	c.JSON(http.StatusOK, gin.H{"active": s.active, "audio_source": source, "uptime": uptime})
}

func (s *Server) audioDevices(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"devices": s.devices})
}

func (s *Server) manualTrigger(c *gin.Context) {
	var req api.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EffectType == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "effect_type is required"})
		return
	}
	s.mu.Lock()
	s.triggers = append(s.triggers, req.EffectType)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":    "triggered",
		"effect_id": uuid.NewString(),
		"audio_url": nil,
	})
}

func (s *Server) enableAuto(c *gin.Context) {
	s.mu.Lock()
	s.autoTrigger = true
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "enabled", "message": "Automatic triggering enabled"})
}

func (s *Server) disableAuto(c *gin.Context) {
	s.mu.Lock()
	s.autoTrigger = false
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "disabled", "message": "Automatic triggering disabled"})
}

func (s *Server) listEffects(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"effects": s.effects})
}

func (s *Server) history(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if len(s.triggers) > limit {
		start = len(s.triggers) - limit
	}
	items := append([]string(nil), s.triggers[start:]...)
	c.JSON(http.StatusOK, gin.H{"history": items, "count": len(items)})
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
