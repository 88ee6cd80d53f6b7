package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all coordinator configuration.
type Config struct {
	Server    ServerConfig
	Sync      SyncConfig
	Worker    WorkerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// SyncConfig holds mutation-synchronization policy configuration.
type SyncConfig struct {
	// GestureWindow bounds how long after a qualifying user interaction a
	// mutation batch is still considered gesture-initiated.
	GestureWindow time.Duration `envconfig:"SYNC_GESTURE_WINDOW" default:"5s"`
	// MutationMaxAge is the per-record admission threshold: a record received
	// more than this long after the last gesture stays queued until the next
	// qualifying gesture.
	MutationMaxAge time.Duration `envconfig:"SYNC_MUTATION_MAX_AGE" default:"5s"`
	// MaxFreeHeight is the free-mutation height threshold in layout units.
	// Hosts laid out with a static height at or below it may mutate without
	// a gesture.
	MaxFreeHeight int `envconfig:"SYNC_MAX_FREE_HEIGHT" default:"300"`
	// DrainSlice bounds one synchronous drain pass over the mutation queue.
	DrainSlice time.Duration `envconfig:"SYNC_DRAIN_SLICE" default:"5ms"`
	// RetryDelay is the fixed reschedule delay when a drain pass runs out of
	// budget with records still pending.
	RetryDelay time.Duration `envconfig:"SYNC_RETRY_DELAY" default:"16ms"`
	// TapSlop is the maximum touchstart-to-touchend distance, in layout
	// units, for click-from-tap synthesis.
	TapSlop float64 `envconfig:"SYNC_TAP_SLOP" default:"10"`
}

// WorkerConfig holds worker runtime configuration.
type WorkerConfig struct {
	// MaxProgramSize caps worker-bound author code, in characters. Oversized
	// payloads are rejected before any worker is started.
	MaxProgramSize int           `envconfig:"WORKER_MAX_PROGRAM_SIZE" default:"150000"`
	ExecTimeout    time.Duration `envconfig:"WORKER_EXEC_TIMEOUT" default:"5s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration, both for HTTP clients
// and for inbound worker message streams.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`

	// WorkerMessagesPerSecond bounds the inbound message rate of one remote
	// worker connection. Zero disables the limit.
	WorkerMessagesPerSecond int `envconfig:"RATE_LIMIT_WORKER_MPS" default:"500"`
	WorkerMessageBurst      int `envconfig:"RATE_LIMIT_WORKER_BURST" default:"1000"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Sync: SyncConfig{
			GestureWindow:  5 * time.Second,
			MutationMaxAge: 5 * time.Second,
			MaxFreeHeight:  300,
			DrainSlice:     5 * time.Millisecond,
			RetryDelay:     16 * time.Millisecond,
			TapSlop:        10,
		},
		Worker: WorkerConfig{
			MaxProgramSize: 150000,
			ExecTimeout:    5 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:       100,
			Burst:                   200,
			Enabled:                 true,
			WorkerMessagesPerSecond: 500,
			WorkerMessageBurst:      1000,
		},
	}
}
