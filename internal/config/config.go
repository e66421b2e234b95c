// Package config loads application settings from $CONFIG_DIR/config.yaml and LEECHER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	AppName   = "video-leecher"
	EnvPrefix = "LEECHER"
)

type Config struct {
	// Paths
	ConfigDir    string // $CONFIG_DIR
	CatalogFile  string // $CONFIG_DIR/catalog.sqlite3
	DatabaseFile string // $CONFIG_DIR/state.db

	// Default download folder for new preferences
	DownloadFolder string

	// Download
	MaxRetryTime           time.Duration
	ProgressUpdateInterval time.Duration

	// Search
	AuthCacheTTL time.Duration

	// Logging
	LogLevel zapcore.Level
}

// Load reads the configuration. The config file is optional; environment variables take precedence over it.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	configDir := v.GetString("config_dir")
	if configDir == "" {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user config directory: %w", err)
		}
		configDir = filepath.Join(userConfigDir, AppName)
	} else if abs, err := filepath.Abs(configDir); err != nil {
		return nil, fmt.Errorf("failed to get absolute path for config dir: %w", err)
	} else {
		configDir = abs
	}
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	downloadFolder := "."
	if home, err := os.UserHomeDir(); err == nil {
		downloadFolder = filepath.Join(home, "Videos")
	}
	v.SetDefault("catalog_file", filepath.Join(configDir, "catalog.sqlite3"))
	v.SetDefault("database_file", filepath.Join(configDir, "state.db"))
	v.SetDefault("download_folder", downloadFolder)
	v.SetDefault("max_retry_time", 30*time.Second)
	v.SetDefault("progress_update_interval", time.Second)
	v.SetDefault("auth_cache_ttl", 5*time.Minute)
	v.SetDefault("log_level", "info")

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("invalid log_level: %w", err)
	}

	return &Config{
		ConfigDir:              configDir,
		CatalogFile:            v.GetString("catalog_file"),
		DatabaseFile:           v.GetString("database_file"),
		DownloadFolder:         v.GetString("download_folder"),
		MaxRetryTime:           v.GetDuration("max_retry_time"),
		ProgressUpdateInterval: v.GetDuration("progress_update_interval"),
		AuthCacheTTL:           v.GetDuration("auth_cache_ttl"),
		LogLevel:               level,
	}, nil
}
