package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, Init(Config{Level: "debug", Output: path}))

	Component("retriever").Info().Str("video_id", "abc").Msg("accepted")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	assert.Equal(t, "retriever", entry["component"])
	assert.Equal(t, "abc", entry["video_id"])
	assert.Equal(t, "accepted", entry["message"])
	assert.Contains(t, entry, "time")

	// second Init is ignored
	require.NoError(t, Init(Config{Level: "error", Output: "stderr"}))
	assert.Same(t, Get(), Get())
}
