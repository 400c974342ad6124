// Package config loads the application configuration from environment
// variables, optionally layered over a config file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups everything the application reads at startup.
type Config struct {
	App  AppConfig
	Sync SyncConfig
	Lock LockConfig
}

// AppConfig is the general application configuration.
type AppConfig struct {
	// TenantID selects the store this device serves.
	TenantID string
	// DataDir holds the local snapshot database.
	DataDir string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// DBPath returns the local snapshot database file for the tenant.
func (c AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "pos.db")
}

// SyncConfig tunes the synchronization engine. The defaults match the
// backend's measured rate limits; override with care.
type SyncConfig struct {
	BatchSize        int
	BatchDelay       time.Duration
	Cooldown         time.Duration
	DebounceDelay    time.Duration
	SalesWindow      int
	AutosaveInterval time.Duration
}

// LockConfig tunes the idle lock.
type LockConfig struct {
	CheckInterval time.Duration
}

// Load reads configuration from the environment (POS_ prefix) and from
// an optional config.yaml next to the binary. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.pos")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			TenantID: v.GetString("app.tenant_id"),
			DataDir:  v.GetString("app.data_dir"),
			LogLevel: v.GetString("app.log_level"),
		},
		Sync: SyncConfig{
			BatchSize:        v.GetInt("sync.batch_size"),
			BatchDelay:       v.GetDuration("sync.batch_delay"),
			Cooldown:         v.GetDuration("sync.cooldown"),
			DebounceDelay:    v.GetDuration("sync.debounce_delay"),
			SalesWindow:      v.GetInt("sync.sales_window"),
			AutosaveInterval: v.GetDuration("sync.autosave_interval"),
		},
		Lock: LockConfig{
			CheckInterval: v.GetDuration("lock.check_interval"),
		},
	}

	if cfg.App.TenantID == "" {
		return nil, fmt.Errorf("tenant id is required (POS_APP_TENANT_ID)")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", ".")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("sync.batch_size", 5)
	v.SetDefault("sync.batch_delay", 2*time.Second)
	v.SetDefault("sync.cooldown", 60*time.Second)
	v.SetDefault("sync.debounce_delay", 5*time.Second)
	v.SetDefault("sync.sales_window", 100)
	v.SetDefault("sync.autosave_interval", 30*time.Second)

	v.SetDefault("lock.check_interval", 60*time.Second)
}
