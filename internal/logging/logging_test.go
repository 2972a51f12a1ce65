package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "tui", slog.LevelInfo)
	l.Info("hello", "n", 1)
	l.Debug("dropped")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "tui", rec["component"])
	assert.Equal(t, l.SessionID, rec["session"])

	_, err := uuid.Parse(l.SessionID)
	assert.NoError(t, err)
}

func TestSessionIDsDiffer(t *testing.T) {
	a := New(&bytes.Buffer{}, "x", slog.LevelInfo)
	b := New(&bytes.Buffer{}, "x", slog.LevelInfo)
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestOpenAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	for i := 0; i < 2; i++ {
		l, err := Open(dir, "tui", slog.LevelInfo)
		require.NoError(t, err)
		l.Info("line")
		require.NoError(t, l.Close())
	}

	f, err := os.Open(filepath.Join(dir, FileName))
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestDiscardClose(t *testing.T) {
	l := Discard()
	l.Error("nowhere")
	assert.NoError(t, l.Close())
}
