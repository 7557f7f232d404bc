package session

import (
	"fmt"
	"time"

	"github.com/pawtrack/walkstream/errors"
)

// Default tuning values for a streaming session.
const (
	// DefaultBatchSize flushes the outbound buffer once this many samples
	// have accumulated.
	DefaultBatchSize = 10

	// DefaultFlushInterval flushes a non-empty buffer on this period even
	// when the size threshold has not been reached.
	DefaultFlushInterval = time.Second

	// DefaultReconnectDelay is the cooldown between connection attempts.
	DefaultReconnectDelay = 3 * time.Second

	// DefaultMaxReconnectAttempts bounds consecutive reconnect attempts
	// before the session terminates.
	DefaultMaxReconnectAttempts = 5

	// DefaultKeepaliveInterval is the liveness probe period while connected.
	DefaultKeepaliveInterval = 30 * time.Second

	// DefaultRetentionCapacity bounds how many samples are held while the
	// transport is down before FIFO eviction kicks in.
	DefaultRetentionCapacity = 120

	// DefaultDialTimeout bounds one connection attempt.
	DefaultDialTimeout = 10 * time.Second
)

// Config holds the tunable parameters of a streaming session.
// Zero values are replaced with defaults by Validate.
type Config struct {
	// BatchSize is the sample count that triggers an immediate flush.
	BatchSize int `json:"batch_size"`

	// FlushInterval is the timer-driven flush period.
	FlushInterval time.Duration `json:"flush_interval"`

	// ReconnectDelay is the cooldown between connection attempts. It also
	// feeds the default constant retry strategy.
	ReconnectDelay time.Duration `json:"reconnect_delay"`

	// MaxReconnectAttempts is the consecutive-failure ceiling. Once
	// exceeded the session terminates and must be recreated.
	MaxReconnectAttempts int `json:"max_reconnect_attempts"`

	// KeepaliveInterval is the ping period while connected.
	KeepaliveInterval time.Duration `json:"keepalive_interval"`

	// RetentionCapacity bounds the offline sample buffer.
	// Must be at least BatchSize.
	RetentionCapacity int `json:"retention_capacity"`

	// DialTimeout bounds one transport dial.
	DialTimeout time.Duration `json:"dial_timeout"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:            DefaultBatchSize,
		FlushInterval:        DefaultFlushInterval,
		ReconnectDelay:       DefaultReconnectDelay,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		KeepaliveInterval:    DefaultKeepaliveInterval,
		RetentionCapacity:    DefaultRetentionCapacity,
		DialTimeout:          DefaultDialTimeout,
	}
}

// Validate fills zero values with defaults and checks consistency.
func (c *Config) Validate() error {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.KeepaliveInterval == 0 {
		c.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if c.RetentionCapacity == 0 {
		c.RetentionCapacity = DefaultRetentionCapacity
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}

	if c.BatchSize < 0 || c.MaxReconnectAttempts < 0 || c.RetentionCapacity < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "negative value")
	}
	if c.FlushInterval < 0 || c.ReconnectDelay < 0 || c.KeepaliveInterval < 0 || c.DialTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "negative interval")
	}
	if c.RetentionCapacity < c.BatchSize {
		return errors.WrapInvalid(
			fmt.Errorf("%w: retention capacity %d below batch size %d",
				errors.ErrInvalidConfig, c.RetentionCapacity, c.BatchSize),
			"Config", "Validate", "retention check")
	}
	return nil
}
