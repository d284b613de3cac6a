package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20, cfg.TickRate)
	assert.Equal(t, SmoothingLerp, cfg.Smoothing)
	assert.Equal(t, 0.15, cfg.LerpFactor)
	assert.Equal(t, 100*time.Millisecond, cfg.InterpolationDelay)
	assert.Equal(t, time.Duration(0), cfg.JitterBuffer)
	assert.True(t, cfg.AutoReconnect)
	assert.Equal(t, 10, cfg.MaxReconnectAttempts)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.PingInterval)
}

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	cfg := Config{TickRate: 30, Smoothing: SmoothingInterpolate}.withDefaults()
	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, SmoothingInterpolate, cfg.Smoothing)
	assert.Equal(t, 0.15, cfg.LerpFactor)
	assert.Equal(t, 10, cfg.MaxReconnectAttempts)
	assert.False(t, cfg.AutoReconnect, "literal false survives defaulting")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tick_rate: 10
smoothing: interpolate
interpolation_delay_ms: 200
jitter_buffer_ms: 50
auto_reconnect: false
max_reconnect_attempts: 3
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.TickRate)
	assert.Equal(t, SmoothingInterpolate, cfg.Smoothing)
	assert.Equal(t, 200*time.Millisecond, cfg.InterpolationDelay)
	assert.Equal(t, 50*time.Millisecond, cfg.JitterBuffer)
	assert.False(t, cfg.AutoReconnect)
	assert.Equal(t, 3, cfg.MaxReconnectAttempts)
	assert.Equal(t, 0.15, cfg.LerpFactor, "unset fields default")
}

func TestLoadConfigRejectsUnknownSmoothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("smoothing: extrapolate\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
