// Package config provides configuration management for RuleForge.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Engine     EngineConfig
	Stream     StreamConfig
	Backward   BackwardConfig
	StateStore StateStoreConfig
	Logging    LoggingConfig
}

// EngineConfig configures the match-resolve-act execution cycle (pkg/engine).
type EngineConfig struct {
	MaxCycles   int
	Timeout     time.Duration
	EnableStats bool
	DebugMode   bool
}

// StreamConfig configures time-windowed stream processing (pkg/stream).
type StreamConfig struct {
	BufferSize         int
	WindowDuration      time.Duration
	MaxEventsPerWindow int
	MaxWindows         int
	WindowType         string // "sliding" | "tumbling" | "session"
	ProcessingInterval time.Duration
}

// BackwardConfig configures goal-driven backward chaining (pkg/backward).
type BackwardConfig struct {
	Strategy          string // "depth_first" | "breadth_first"
	MaxDepth          int
	EnableMemoization bool
	MaxSolutions      int
}

// StateStoreConfig configures the persisted state backend for stream
// checkpoints (pkg/stream.StateStore).
type StateStoreConfig struct {
	Backend         string // "memory" | "redis" | "file"
	RedisURL        string
	RedisDB         int
	RedisKeyPrefix  string
	DefaultTTL      time.Duration
	CheckpointRoot  string
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	godotenv.Load()
	cfg := &Config{
		Engine: EngineConfig{
			MaxCycles:   getEnvAsInt("RULEFORGE_ENGINE_MAX_CYCLES", 1000),
			Timeout:     getEnvAsDuration("RULEFORGE_ENGINE_TIMEOUT", 30*time.Second),
			EnableStats: getEnvAsBool("RULEFORGE_ENGINE_ENABLE_STATS", true),
			DebugMode:   getEnvAsBool("RULEFORGE_ENGINE_DEBUG", false),
		},
		Stream: StreamConfig{
			BufferSize:         getEnvAsInt("RULEFORGE_STREAM_BUFFER_SIZE", 1024),
			WindowDuration:      getEnvAsDuration("RULEFORGE_STREAM_WINDOW_DURATION", time.Minute),
			MaxEventsPerWindow: getEnvAsInt("RULEFORGE_STREAM_MAX_EVENTS_PER_WINDOW", 10000),
			MaxWindows:         getEnvAsInt("RULEFORGE_STREAM_MAX_WINDOWS", 100),
			WindowType:         getEnv("RULEFORGE_STREAM_WINDOW_TYPE", "sliding"),
			ProcessingInterval: getEnvAsDuration("RULEFORGE_STREAM_PROCESSING_INTERVAL", time.Second),
		},
		Backward: BackwardConfig{
			Strategy:          getEnv("RULEFORGE_BACKWARD_STRATEGY", "depth_first"),
			MaxDepth:          getEnvAsInt("RULEFORGE_BACKWARD_MAX_DEPTH", 32),
			EnableMemoization: getEnvAsBool("RULEFORGE_BACKWARD_ENABLE_MEMOIZATION", true),
			MaxSolutions:      getEnvAsInt("RULEFORGE_BACKWARD_MAX_SOLUTIONS", 1),
		},
		StateStore: StateStoreConfig{
			Backend:        getEnv("RULEFORGE_STATE_STORE_BACKEND", "memory"),
			RedisURL:       getEnv("RULEFORGE_STATE_STORE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:        getEnvAsInt("RULEFORGE_STATE_STORE_REDIS_DB", 0),
			RedisKeyPrefix: getEnv("RULEFORGE_STATE_STORE_REDIS_PREFIX", "ruleforge:state"),
			DefaultTTL:     getEnvAsDuration("RULEFORGE_STATE_STORE_DEFAULT_TTL", time.Hour),
			CheckpointRoot: getEnv("RULEFORGE_STATE_STORE_CHECKPOINT_ROOT", "./data/checkpoints"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("RULEFORGE_LOG_LEVEL", "info"),
			Format: getEnv("RULEFORGE_LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.MaxCycles < 1 {
		return fmt.Errorf("engine max cycles must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	validBackends := map[string]bool{"memory": true, "redis": true, "file": true}
	if !validBackends[c.StateStore.Backend] {
		return fmt.Errorf("invalid state store backend: %s (must be memory, redis, or file)", c.StateStore.Backend)
	}

	validWindowTypes := map[string]bool{"sliding": true, "tumbling": true, "session": true}
	if !validWindowTypes[c.Stream.WindowType] {
		return fmt.Errorf("invalid stream window type: %s", c.Stream.WindowType)
	}

	validStrategies := map[string]bool{"depth_first": true, "breadth_first": true}
	if !validStrategies[c.Backward.Strategy] {
		return fmt.Errorf("invalid backward chaining strategy: %s", c.Backward.Strategy)
	}

	if c.Backward.MaxDepth < 1 {
		return fmt.Errorf("backward max depth must be at least 1")
	}

	return nil
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
