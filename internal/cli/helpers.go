// Package cli implements the mcbundle subcommands.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/config"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
	LogFormat  *string
)

// envFileName is loaded from the working directory and the config directory.
const envFileName = ".env"

// loadConfig loads the configuration, applies .env files, the environment and
// global flags, and initializes the logger from the result.
func loadConfig() (*config.Config, error) {
	configPath := getConfigPath()

	envFiles := []string{envFileName}
	if configPath != "" {
		envFiles = append(envFiles, filepath.Join(filepath.Dir(configPath), envFileName))
	}
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()

	// Override config with CLI flags if provided
	if LogFormat != nil && *LogFormat != "" {
		cfg.LogFormat = *LogFormat
	}
	if Verbose != nil && *Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.InitLogger(cfg.LogLevel, logger.ParseFormat(cfg.LogFormat))
	return cfg, nil
}

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		// An empty path makes LoadConfig and SaveConfig fail with a clear error.
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}
