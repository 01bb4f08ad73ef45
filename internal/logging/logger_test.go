package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken("  "))
	assert.Equal(t, "***", MaskToken("short"))
	assert.Equal(t, "abc***xyz", MaskToken("abcdefghijxyz"))
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	logger := New(Options{Level: "debug", Mode: "prod", File: path})
	logger.With("guild_id", "g1").Info("tick_completed", "members", 3)
	logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"tick_completed"`)
	assert.Contains(t, string(data), `"guild_id":"g1"`)
}
