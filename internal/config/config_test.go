package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "listing_watch", cfg.Database.Name)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 8*time.Second, cfg.Checker.SettleDelay)
	assert.Equal(t, 30*time.Second, cfg.Checker.NavigationTimeout)
	assert.Equal(t, "admin", cfg.Auth.Username)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CHECKER_SETTLE_DELAY", "2s")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Checker.SettleDelay)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("CHECKER_SETTLE_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8*time.Second, cfg.Checker.SettleDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name: "negative settle delay",
			mutate: func(c *Config) {
				c.Checker.SettleDelay = -1 * time.Second
			},
			wantErr: "CHECKER_SETTLE_DELAY",
		},
		{
			name: "row delay min above max",
			mutate: func(c *Config) {
				c.Checker.RowDelayMin = 5 * time.Second
				c.Checker.RowDelayMax = 1 * time.Second
			},
			wantErr: "CHECKER_ROW_DELAY_MIN",
		},
		{
			name: "zero relay batch size",
			mutate: func(c *Config) {
				c.Relay.BatchSize = 0
			},
			wantErr: "RELAY_BATCH_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
