package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Sync.GestureWindow)
	assert.Equal(t, 300, cfg.Sync.MaxFreeHeight)
	assert.Equal(t, 150000, cfg.Worker.MaxProgramSize)
	assert.Equal(t, 10.0, cfg.Sync.TapSlop)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SYNC_MAX_FREE_HEIGHT", "150")
	t.Setenv("SYNC_GESTURE_WINDOW", "2s")
	t.Setenv("WORKER_MAX_PROGRAM_SIZE", "1000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 150, cfg.Sync.MaxFreeHeight)
	assert.Equal(t, 2*time.Second, cfg.Sync.GestureWindow)
	assert.Equal(t, 1000, cfg.Worker.MaxProgramSize)
}

func TestLoadUsesDefaultsForUnset(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 16*time.Millisecond, cfg.Sync.RetryDelay)
	assert.Equal(t, 500, cfg.RateLimit.WorkerMessagesPerSecond)
}
