package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/erinmikailstaples/soundstage/internal/api"
)

// ConsentGate blocks the session until the user accepts audio capture.
type ConsentGate struct {
	backend ConsentBackend
	boot    *BootState
	logger  *slog.Logger

	mu       sync.Mutex
	cloud    bool
	declined bool
	busy     bool
}

// NewConsentGate creates the gate. logger may be nil.
func NewConsentGate(backend ConsentBackend, boot *BootState, logger *slog.Logger) *ConsentGate {
	return &ConsentGate{backend: backend, boot: boot, logger: orDiscard(logger)}
}

// ShouldShow reports whether the consent screen must be presented. It never
// touches the network.
func (g *ConsentGate) ShouldShow() bool {
	if g.boot.ConsentGiven() {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.declined
}

// Declined reports whether the user declined in this session.
func (g *ConsentGate) Declined() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.declined
}

// Busy reports whether an Accept is in flight.
func (g *ConsentGate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// CloudProcessing returns the staged cloud-processing choice.
func (g *ConsentGate) CloudProcessing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cloud
}

// SetCloudProcessing stages the optional cloud-processing consent.
func (g *ConsentGate) SetCloudProcessing(v bool) {
	g.mu.Lock()
	g.cloud = v
	g.mu.Unlock()
}

// Accept records consent with the backend. The gate is only satisfied once
// the backend has acknowledged the record; on failure it stays open and the
// error is returned for the user to retry.
func (g *ConsentGate) Accept(ctx context.Context) error {
	if g.boot.ConsentGiven() {
		return nil
	}

	g.mu.Lock()
	if g.declined {
		g.mu.Unlock()
		return invalid("accept consent", ErrConsentDeclined)
	}
	if g.busy {
		g.mu.Unlock()
		return invalid("accept consent", ErrBusy)
	}
	g.busy = true
	rec := api.ConsentRecord{
		AudioCaptureConsent:    true,
		CloudProcessingConsent: g.cloud,
		AnalyticsConsent:       false,
	}
	g.mu.Unlock()

	err := g.backend.SaveConsent(ctx, rec)

	g.mu.Lock()
	g.busy = false
	declined := g.declined
	g.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		g.logger.Warn("consent save failed", "error", err)
		return err
	}
	if declined {
		return invalid("accept consent", ErrConsentDeclined)
	}

	if perr := g.boot.markConsentGiven(); perr != nil {
		g.logger.Error("persist consent flag", "error", perr)
	}
	g.logger.Info("consent given", "cloud_processing", rec.CloudProcessingConsent)
	return nil
}

// Decline leaves the gate closed for the rest of the session. Nothing is
// sent or persisted.
func (g *ConsentGate) Decline() {
	if g.boot.ConsentGiven() {
		return
	}
	g.mu.Lock()
	g.declined = true
	g.mu.Unlock()
	g.logger.Info("consent declined")
}
