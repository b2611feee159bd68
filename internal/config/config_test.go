package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/polycrypt"
	"github.com/zoobzio/polycrypt/internal/config"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, polycrypt.DefaultAlgo, cfg.EncryptAlgo())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv("POLYCRYPT_LOG_LEVEL", "debug")
	t.Setenv("POLYCRYPT_LOG_FORMAT", "console")
	t.Setenv("POLYCRYPT_BATCH_WORKERS", "4")
	t.Setenv("POLYCRYPT_ALGORITHM", "xchacha20-poly1305")
	t.Setenv("POLYCRYPT_STRICT_FIELDS", "true")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, polycrypt.LogFormatConsole, cfg.LogFormat)
	assert.Equal(t, 4, cfg.BatchWorkers)
	assert.Equal(t, polycrypt.EncryptXChaCha, cfg.EncryptAlgo())
	assert.True(t, cfg.StrictFields)

	opts := cfg.Diagnostics()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, polycrypt.LogFormatConsole, opts.Format)
}

func TestFromEnvConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polycrypt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\nbatch_workers: 2\n"), 0o600))

	t.Setenv(config.EnvConfigFile, path)
	t.Setenv("POLYCRYPT_BATCH_WORKERS", "8")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 8, cfg.BatchWorkers, "environment takes precedence over the file")
}

func TestFromEnvMissingFile(t *testing.T) {
	t.Setenv(config.EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := config.FromEnv()
	require.Error(t, err)
}

func TestFromEnvInvalidAlgorithm(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv("POLYCRYPT_ALGORITHM", "aes-128-cbc")

	_, err := config.FromEnv()
	require.ErrorIs(t, err, polycrypt.ErrUnknownAlgorithm)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"default", func(*config.Config) {}, false},
		{"empty algorithm", func(c *config.Config) { c.Algorithm = "" }, false},
		{"uppercase format", func(c *config.Config) { c.LogFormat = "JSON" }, false},
		{"unknown format", func(c *config.Config) { c.LogFormat = "xml" }, true},
		{"negative workers", func(c *config.Config) { c.BatchWorkers = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
