package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawtrack/walkstream/errors"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultFlushInterval, cfg.FlushInterval)
	assert.Equal(t, DefaultReconnectDelay, cfg.ReconnectDelay)
	assert.Equal(t, DefaultMaxReconnectAttempts, cfg.MaxReconnectAttempts)
	assert.Equal(t, DefaultKeepaliveInterval, cfg.KeepaliveInterval)
	assert.Equal(t, DefaultRetentionCapacity, cfg.RetentionCapacity)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative batch size", func(c *Config) { c.BatchSize = -1 }},
		{"negative flush interval", func(c *Config) { c.FlushInterval = -time.Second }},
		{"retention below batch size", func(c *Config) {
			c.BatchSize = 50
			c.RetentionCapacity = 10
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestNewRequiresIDAndDialer(t *testing.T) {
	_, err := New("", &fakeDialer{})
	require.Error(t, err)

	_, err = New("walk-1", nil)
	require.Error(t, err)
}
