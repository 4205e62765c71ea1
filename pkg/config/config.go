// Package config provides configuration loading and validation for the
// codesmith MCP server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid metrics port")
	ErrInvalidChunkSize   = errors.New("default chunk size must be positive")
	ErrInvalidParallelism = errors.New("default parallelism must be positive")
	ErrInvalidRetention   = errors.New("rollback retention must be positive")
	ErrInvalidConcurrency = errors.New("rollback concurrency must be positive")
)

const maxPort = 65535

// Config holds all configuration for the codesmith server.
type Config struct {
	Scratch   ScratchConfig   `mapstructure:"scratch"`
	Rollback  RollbackConfig  `mapstructure:"rollback"`
	Streaming StreamingConfig `mapstructure:"streaming"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ScratchConfig controls the temp-file manager's private scratch area.
type ScratchConfig struct {
	Dir        string        `mapstructure:"dir"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	SweepEvery time.Duration `mapstructure:"sweep_every"`
}

// RollbackConfig controls the rollback store's root directory and
// snapshot retention/concurrency.
type RollbackConfig struct {
	Dir                string        `mapstructure:"dir"`
	Retention          time.Duration `mapstructure:"retention"`
	CreateConcurrency  int           `mapstructure:"create_concurrency"`
	RestoreConcurrency int           `mapstructure:"restore_concurrency"`
}

// StreamingConfig controls the streaming file processor's defaults.
type StreamingConfig struct {
	DefaultChunkSize   int           `mapstructure:"default_chunk_size"`
	DefaultParallelism int           `mapstructure:"default_parallelism"`
	ProcessorCount     int           `mapstructure:"processor_count"`
	CheckpointDir      string        `mapstructure:"checkpoint_dir"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
	CleanupHorizon     time.Duration `mapstructure:"cleanup_horizon"`
}

// ServerConfig holds the MCP server's own settings.
type ServerConfig struct {
	Debug        bool   `mapstructure:"debug"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	MetricsPort  int    `mapstructure:"metrics_port"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/codesmith")
	}

	viperCfg.SetEnvPrefix("CODESMITH")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	if validateErr := validateConfig(&config); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("scratch.dir", "/tmp/codesmith")
	viperCfg.SetDefault("scratch.max_age", DefaultScratchMaxAge)
	viperCfg.SetDefault("scratch.sweep_every", DefaultScratchSweepEvery)

	viperCfg.SetDefault("rollback.dir", "/tmp/codesmith/rollback")
	viperCfg.SetDefault("rollback.retention", DefaultRollbackRetention)
	viperCfg.SetDefault("rollback.create_concurrency", DefaultRollbackCreateConcurrency)
	viperCfg.SetDefault("rollback.restore_concurrency", DefaultRollbackRestoreConcurrency)

	viperCfg.SetDefault("streaming.default_chunk_size", DefaultChunkSize)
	viperCfg.SetDefault("streaming.default_parallelism", DefaultParallelism)
	viperCfg.SetDefault("streaming.processor_count", DefaultProcessorCount)
	viperCfg.SetDefault("streaming.checkpoint_dir", "/tmp/codesmith/checkpoints")
	viperCfg.SetDefault("streaming.cleanup_interval", DefaultCleanupInterval)
	viperCfg.SetDefault("streaming.cleanup_horizon", DefaultCleanupHorizon)

	viperCfg.SetDefault("server.debug", false)
	viperCfg.SetDefault("server.otlp_endpoint", "")
	viperCfg.SetDefault("server.metrics_port", DefaultMetricsPort)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Server.MetricsPort <= 0 || config.Server.MetricsPort > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.MetricsPort)
	}

	if config.Streaming.DefaultChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, config.Streaming.DefaultChunkSize)
	}

	if config.Streaming.DefaultParallelism <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidParallelism, config.Streaming.DefaultParallelism)
	}

	if config.Rollback.Retention <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRetention, config.Rollback.Retention)
	}

	if config.Rollback.CreateConcurrency <= 0 || config.Rollback.RestoreConcurrency <= 0 {
		return fmt.Errorf("%w: create=%d restore=%d", ErrInvalidConcurrency,
			config.Rollback.CreateConcurrency, config.Rollback.RestoreConcurrency)
	}

	return nil
}
