package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelCritical, ParseLevel("critical"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(LevelWarn, &buf)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	l.Critical("lockdown in %s", "guild")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var warn map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &warn))
	assert.Equal(t, "warn", warn["level"])
	assert.Equal(t, "shown 2", warn["message"])

	var crit map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[1], &crit))
	assert.Equal(t, "error", crit["level"])
	assert.Equal(t, true, crit["critical"])
}

func TestGlobalHelpersAreSafeBeforeInit(t *testing.T) {
	SetGlobalLogger(nil)
	assert.NotPanics(t, func() {
		Info("nothing configured")
		Critical("still nothing")
	})
}

func TestIncidentLoggerAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "incidents.jsonl")
	il, err := NewIncidentLogger(path)
	require.NoError(t, err)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, il.Log(&IncidentLogEntry{
		Timestamp:    ts,
		IncidentID:   "a",
		GuildID:      1,
		IncidentType: "raid_detection",
		Severity:     0.7,
		ThreatLevel:  "medium",
	}))
	require.NoError(t, il.Log(&IncidentLogEntry{IncidentID: "b", GuildID: 1, IncidentType: "behavioral_threat"}))
	require.NoError(t, il.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []IncidentLogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e IncidentLogEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.True(t, ts.Equal(entries[0].Timestamp))
	assert.Equal(t, "raid_detection", entries[0].IncidentType)
	assert.False(t, entries[1].Timestamp.IsZero())
}

func TestAsyncWriterFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	aw, err := NewAsyncWriter(path, 16)
	require.NoError(t, err)

	buf := []byte("first\n")
	_, _ = aw.Write(buf)
	copy(buf, "XXXXX\n")
	_, _ = aw.Write([]byte("second\n"))
	require.NoError(t, aw.Close())
	require.NoError(t, aw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestRotationMovesOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 128), 0o644))

	lr := NewLogRotation(64, time.Hour)
	archived, err := lr.RotateIfNeeded(path)
	require.NoError(t, err)
	require.NotEmpty(t, archived)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(archived)
	assert.NoError(t, err)

	again, err := lr.RotateIfNeeded(path)
	require.NoError(t, err)
	assert.Empty(t, again)
}
