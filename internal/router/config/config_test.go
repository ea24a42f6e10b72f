package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("file with env override", func(t *testing.T) {
		dir := t.TempDir()
		content := "SERVER_ADDRESS=127.0.0.1:9000\n" +
			"POSTGRES_CONN=postgres://u:p@localhost:5432/hospital\n" +
			"JWT_SECRET=from-file\n" +
			"REQUEST_TIMEOUT=3s\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600))

		t.Setenv("JWT_SECRET", "from-env")
		t.Setenv("RATE_LIMIT_BURST", "7")
		t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.5")

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:9000", cfg.ServerAddress)
		assert.Equal(t, "from-env", cfg.JWTSecret)
		assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 7, cfg.RateLimitBurst)
		assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.5"}, cfg.TrustedProxies)
		assert.Equal(t, "two_factor", cfg.ScoringModel)
		assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
		assert.Equal(t, "KES", cfg.DefaultCurrency)
	})

	t.Run("no file, memory driver from env", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "memory")
		t.Setenv("JWT_SECRET", "secret")

		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
		assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
		assert.Empty(t, cfg.TrustedProxies)
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "memory")
		_, err := LoadConfig(t.TempDir())
		assert.ErrorContains(t, err, "JWT_SECRET")
	})
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		StorageDriver:      StorageDriverMemory,
		TenderNumberSource: NumberSourcePostgres,
		ScoringModel:       "weighted",
		JWTSecret:          "s",
		RequestTimeout:     time.Second,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.StorageDriver = "mongo" }, "STORAGE_DRIVER"},
		{"postgres without conn", func(c *Config) { c.StorageDriver = StorageDriverPostgres }, "POSTGRES_CONN"},
		{"redis without addr", func(c *Config) { c.TenderNumberSource = NumberSourceRedis }, "REDIS_ADDR"},
		{"unknown scoring model", func(c *Config) { c.ScoringModel = "linear" }, "SCORING_MODEL"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "REQUEST_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
