package main

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/spf13/viper"

	"github.com/pawtrack/walkstream/session"
)

// appConfig holds CLI configuration loaded from the environment and an
// optional .env file.
type appConfig struct {
	// Endpoint is the ws:// or wss:// streaming endpoint.
	Endpoint string `mapstructure:"WALKSTREAM_ENDPOINT"`
	// Token is the bearer token attached to the handshake.
	Token string `mapstructure:"WALKSTREAM_TOKEN"`
	// SessionID identifies the walk; generated when empty.
	SessionID string `mapstructure:"WALKSTREAM_SESSION_ID"`
	// Key is the hex-encoded 32-byte frame encryption key; empty disables
	// encryption (dev only).
	Key string `mapstructure:"WALKSTREAM_KEY"`
	// MetricsAddr serves Prometheus metrics when set (e.g. :9090).
	MetricsAddr string `mapstructure:"WALKSTREAM_METRICS_ADDR"`
	// ProbeAddr is the host:port dialed to observe network reachability;
	// empty disables probing.
	ProbeAddr string `mapstructure:"WALKSTREAM_PROBE_ADDR"`
	// SampleInterval is the synthetic GPS fix period.
	SampleInterval time.Duration `mapstructure:"WALKSTREAM_SAMPLE_INTERVAL"`
	// LogLevel is debug, info, warn, or error.
	LogLevel string `mapstructure:"WALKSTREAM_LOG_LEVEL"`

	// BatchSize and friends override session defaults when non-zero.
	BatchSize            int           `mapstructure:"WALKSTREAM_BATCH_SIZE"`
	FlushInterval        time.Duration `mapstructure:"WALKSTREAM_FLUSH_INTERVAL"`
	ReconnectDelay       time.Duration `mapstructure:"WALKSTREAM_RECONNECT_DELAY"`
	MaxReconnectAttempts int           `mapstructure:"WALKSTREAM_MAX_RECONNECT_ATTEMPTS"`
	KeepaliveInterval    time.Duration `mapstructure:"WALKSTREAM_KEEPALIVE_INTERVAL"`
	RetentionCapacity    int           `mapstructure:"WALKSTREAM_RETENTION_CAPACITY"`
}

// loadConfig reads .env (if present) and the environment via Viper.
// Env vars override .env values.
func loadConfig() (*appConfig, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("WALKSTREAM_ENDPOINT", "ws://localhost:8080/ws/location")
	v.SetDefault("WALKSTREAM_TOKEN", "")
	v.SetDefault("WALKSTREAM_SESSION_ID", "")
	v.SetDefault("WALKSTREAM_KEY", "")
	v.SetDefault("WALKSTREAM_METRICS_ADDR", "")
	v.SetDefault("WALKSTREAM_PROBE_ADDR", "")
	v.SetDefault("WALKSTREAM_SAMPLE_INTERVAL", "2s")
	v.SetDefault("WALKSTREAM_LOG_LEVEL", "info")

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Endpoint == "" {
		return nil, errors.New("WALKSTREAM_ENDPOINT is required")
	}
	if cfg.Key != "" {
		key, err := hex.DecodeString(cfg.Key)
		if err != nil {
			return nil, errors.New("WALKSTREAM_KEY must be hex encoded")
		}
		if len(key) != 32 {
			return nil, errors.New("WALKSTREAM_KEY must decode to 32 bytes")
		}
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 2 * time.Second
	}

	return &cfg, nil
}

// sessionConfig maps CLI overrides onto session defaults.
func (c *appConfig) sessionConfig() session.Config {
	cfg := session.DefaultConfig()
	if c.BatchSize > 0 {
		cfg.BatchSize = c.BatchSize
	}
	if c.FlushInterval > 0 {
		cfg.FlushInterval = c.FlushInterval
	}
	if c.ReconnectDelay > 0 {
		cfg.ReconnectDelay = c.ReconnectDelay
	}
	if c.MaxReconnectAttempts > 0 {
		cfg.MaxReconnectAttempts = c.MaxReconnectAttempts
	}
	if c.KeepaliveInterval > 0 {
		cfg.KeepaliveInterval = c.KeepaliveInterval
	}
	if c.RetentionCapacity > 0 {
		cfg.RetentionCapacity = c.RetentionCapacity
	}
	return cfg
}
