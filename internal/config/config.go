// Package config loads the settings of the polycrypt C library from the
// environment and an optional config file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/zoobzio/polycrypt"
)

// EnvPrefix is prepended to every environment variable, e.g. POLYCRYPT_LOG_LEVEL.
const EnvPrefix = "POLYCRYPT"

// EnvConfigFile names an optional YAML, JSON or TOML file read before the
// environment. Environment variables take precedence over the file.
const EnvConfigFile = EnvPrefix + "_CONFIG_FILE"

const (
	keyLogLevel     = "log_level"
	keyLogFormat    = "log_format"
	keyBatchWorkers = "batch_workers"
	keyAlgorithm    = "algorithm"
	keyStrictFields = "strict_fields"
)

// Config holds the library settings.
type Config struct {
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	BatchWorkers int    `mapstructure:"batch_workers"`
	Algorithm    string `mapstructure:"algorithm"`
	StrictFields bool   `mapstructure:"strict_fields"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    polycrypt.LogFormatJSON,
		BatchWorkers: 0,
		Algorithm:    string(polycrypt.DefaultAlgo),
		StrictFields: false,
	}
}

// FromEnv loads the configuration from POLYCRYPT_* environment variables and
// the file named by POLYCRYPT_CONFIG_FILE, if set.
func FromEnv() (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault(keyLogLevel, def.LogLevel)
	v.SetDefault(keyLogFormat, def.LogFormat)
	v.SetDefault(keyBatchWorkers, def.BatchWorkers)
	v.SetDefault(keyAlgorithm, def.Algorithm)
	v.SetDefault(keyStrictFields, def.StrictFields)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if file := os.Getenv(EnvConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every setting holds a supported value.
func (c Config) Validate() error {
	if _, err := polycrypt.ParseEncryptAlgo(c.Algorithm); err != nil {
		return fmt.Errorf("invalid %s: %w", keyAlgorithm, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case polycrypt.LogFormatJSON, polycrypt.LogFormatConsole:
	default:
		return fmt.Errorf("invalid %s %q: want %s or %s", keyLogFormat, c.LogFormat, polycrypt.LogFormatJSON, polycrypt.LogFormatConsole)
	}
	if c.BatchWorkers < 0 {
		return fmt.Errorf("invalid %s %d: must not be negative", keyBatchWorkers, c.BatchWorkers)
	}
	return nil
}

// EncryptAlgo returns the configured algorithm, DefaultAlgo when unset.
func (c Config) EncryptAlgo() polycrypt.EncryptAlgo {
	algo, err := polycrypt.ParseEncryptAlgo(c.Algorithm)
	if err != nil {
		return polycrypt.DefaultAlgo
	}
	return algo
}

// Diagnostics returns the logging options for polycrypt.InitDiagnostics.
func (c Config) Diagnostics() polycrypt.DiagnosticsOptions {
	return polycrypt.DiagnosticsOptions{
		Level:  c.LogLevel,
		Format: strings.ToLower(c.LogFormat),
	}
}
