package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestBarWidth(t *testing.T) {
	for _, v := range []float64{0, 0.3, 0.75, 1, 1.5, -1} {
		if got := lipgloss.Width(Bar(v, 10)); got != 10 {
			t.Errorf("Bar(%v, 10) width = %d, want 10", v, got)
		}
	}
	if Bar(0.5, 0) != "" {
		t.Error("zero-width bar should be empty")
	}
}

func TestBarFill(t *testing.T) {
	full := strings.Count(Bar(1, 8), "█")
	half := strings.Count(Bar(0.5, 8), "█")
	empty := strings.Count(Bar(0, 8), "█")
	if full != 8 || half != 4 || empty != 0 {
		t.Errorf("filled cells = %d/%d/%d, want 8/4/0", full, half, empty)
	}
}

func TestFooter(t *testing.T) {
	got := Footer(Key("q", "Quit"), Key("s", "Settings"))
	if !strings.Contains(got, "Quit") || !strings.Contains(got, "Settings") {
		t.Errorf("footer = %q", got)
	}
}
