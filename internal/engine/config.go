package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Smoothing selects how inbound remote records are reconciled with the
// previously rendered ones.
type Smoothing string

const (
	// SmoothingNone overwrites the peer record as updates arrive.
	SmoothingNone Smoothing = "none"
	// SmoothingLerp converges the live record toward the latest update a
	// fixed fraction per render tick. Zero added latency, catch-up lag.
	SmoothingLerp Smoothing = "lerp"
	// SmoothingInterpolate renders between timestamped snapshots delayed
	// by InterpolationDelay. Added latency, smooth under jitter.
	SmoothingInterpolate Smoothing = "interpolate"
)

// Config holds the engine's tunables. Zero values mean "use the default";
// Join normalizes through withDefaults before use.
type Config struct {
	// TickRate is the outbound broadcast rate in ticks per second.
	TickRate int
	// RenderRate drives smoothing and interpolation, independent of TickRate.
	RenderRate int
	// Smoothing is fixed for the lifetime of a join.
	Smoothing Smoothing
	// LerpFactor is the per-render-tick convergence fraction for SmoothingLerp.
	LerpFactor float64
	// InterpolationDelay is how far behind "now" SmoothingInterpolate renders.
	InterpolationDelay time.Duration
	// JitterBuffer delays inbound updates before snapshot insertion; 0 disables.
	JitterBuffer time.Duration
	// AutoReconnect controls whether unexpected closures trigger redials.
	// The Config zero value leaves it off; DefaultConfig enables it.
	AutoReconnect bool
	// MaxReconnectAttempts is the ceiling before the session fails terminally.
	MaxReconnectAttempts int
	// ConnectTimeout bounds the initial join handshake.
	ConnectTimeout time.Duration
	// PingInterval is the latency probe period.
	PingInterval time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		TickRate:             20,
		RenderRate:           60,
		Smoothing:            SmoothingLerp,
		LerpFactor:           0.15,
		InterpolationDelay:   100 * time.Millisecond,
		JitterBuffer:         0,
		AutoReconnect:        true,
		MaxReconnectAttempts: 10,
		ConnectTimeout:       10 * time.Second,
		PingInterval:         2 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultConfig. AutoReconnect keeps
// its literal value; disabling it is a valid choice.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TickRate <= 0 {
		c.TickRate = def.TickRate
	}
	if c.RenderRate <= 0 {
		c.RenderRate = def.RenderRate
	}
	if c.Smoothing == "" {
		c.Smoothing = def.Smoothing
	}
	if c.LerpFactor <= 0 || c.LerpFactor > 1 {
		c.LerpFactor = def.LerpFactor
	}
	if c.InterpolationDelay <= 0 {
		c.InterpolationDelay = def.InterpolationDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	return c
}

type fileConfig struct {
	TickRate             int    `yaml:"tick_rate"`
	RenderRate           int    `yaml:"render_rate"`
	Smoothing            string `yaml:"smoothing"`
	LerpFactor           float64 `yaml:"lerp_factor"`
	InterpolationDelayMs int    `yaml:"interpolation_delay_ms"`
	JitterBufferMs       int    `yaml:"jitter_buffer_ms"`
	AutoReconnect        *bool  `yaml:"auto_reconnect"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
	ConnectTimeoutMs     int    `yaml:"connect_timeout_ms"`
	PingIntervalMs       int    `yaml:"ping_interval_ms"`
}

// LoadConfig reads a YAML config file and merges it over the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Config{
		TickRate:             fc.TickRate,
		RenderRate:           fc.RenderRate,
		Smoothing:            Smoothing(fc.Smoothing),
		LerpFactor:           fc.LerpFactor,
		InterpolationDelay:   time.Duration(fc.InterpolationDelayMs) * time.Millisecond,
		JitterBuffer:         time.Duration(fc.JitterBufferMs) * time.Millisecond,
		AutoReconnect:        true,
		MaxReconnectAttempts: fc.MaxReconnectAttempts,
		ConnectTimeout:       time.Duration(fc.ConnectTimeoutMs) * time.Millisecond,
		PingInterval:         time.Duration(fc.PingIntervalMs) * time.Millisecond,
	}
	if fc.AutoReconnect != nil {
		cfg.AutoReconnect = *fc.AutoReconnect
	}

	switch cfg.Smoothing {
	case "", SmoothingNone, SmoothingLerp, SmoothingInterpolate:
	default:
		return Config{}, fmt.Errorf("unknown smoothing mode %q", fc.Smoothing)
	}

	return cfg.withDefaults(), nil
}
