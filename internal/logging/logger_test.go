package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestConfigureFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(LevelWarn, &buf)
	defer DisableLogging()

	Info("dropped")
	Warn("kept", "backend", "claude")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "claude", entry["backend"])
}

func TestEnableFileLogging(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnableFileLogging(dir, LevelDebug))
	Debug("to file")
	Close()
	DisableLogging()
}
