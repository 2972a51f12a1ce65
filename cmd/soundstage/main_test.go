package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/erinmikailstaples/soundstage/internal/store"
)

func TestResetStateReportsConsentTime(t *testing.T) {
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer st.Close()

	if err := st.SetConsentGiven(); err != nil {
		t.Fatalf("SetConsentGiven: %v", err)
	}
	if err := st.SetOnboardingComplete(); err != nil {
		t.Fatalf("SetOnboardingComplete: %v", err)
	}

	var out bytes.Buffer
	if err := resetState(&out, st); err != nil {
		t.Fatalf("resetState: %v", err)
	}
	if !strings.Contains(out.String(), "Cleared consent given ") {
		t.Errorf("output = %q, want consent time", out.String())
	}

	flags, err := st.Flags()
	if err != nil {
		t.Fatalf("Flags: %v", err)
	}
	if flags.ConsentGiven || flags.OnboardingComplete {
		t.Errorf("flags after reset = %+v", flags)
	}
}

func TestResetStateWithoutConsent(t *testing.T) {
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer st.Close()

	var out bytes.Buffer
	if err := resetState(&out, st); err != nil {
		t.Fatalf("resetState: %v", err)
	}
	if got := out.String(); got != "Local state reset.\n" {
		t.Errorf("output = %q", got)
	}
}
