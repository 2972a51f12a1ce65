package session

import (
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erinmikailstaples/soundstage/internal/api"
	"github.com/erinmikailstaples/soundstage/internal/backend"
	"github.com/erinmikailstaples/soundstage/internal/store"
)

// newStub starts the development backend and returns a client for it with
// retries disabled so injected failures surface on the first attempt.
func newStub(t *testing.T) (*backend.Server, *api.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := backend.New(nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, api.New(api.Options{
		BaseURL: ts.URL,
		Timeout: 5 * time.Second,
		Retry:   &api.RetryPolicy{},
	})
}

// memFlags records flag writes in memory.
type memFlags struct {
	mu         sync.Mutex
	consent    int
	onboarding int
	err        error
}

func (m *memFlags) SetConsentGiven() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consent++
	return m.err
}

func (m *memFlags) SetOnboardingComplete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onboarding++
	return m.err
}

func (m *memFlags) writes() (consent, onboarding int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consent, m.onboarding
}

func freshBoot() (*BootState, *memFlags) {
	flags := &memFlags{}
	return NewBootState(store.Flags{}, flags), flags
}

func runtimeBoot() *BootState {
	return NewBootState(store.Flags{ConsentGiven: true, OnboardingComplete: true}, &memFlags{})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func wantNetworkStatus(t *testing.T, err error, status int) {
	t.Helper()
	var ne *api.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want *api.NetworkError", err)
	}
	if ne.Status != status {
		t.Errorf("status = %d, want %d", ne.Status, status)
	}
}

func wantInvalidState(t *testing.T, err error, reason error) {
	t.Helper()
	if !IsInvalidState(err) {
		t.Fatalf("err = %v, want *InvalidStateError", err)
	}
	if !errors.Is(err, reason) {
		t.Errorf("err = %v, want reason %v", err, reason)
	}
}
