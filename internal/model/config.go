package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// APIConfig holds settings for the storefront REST API.
type APIConfig struct {
	// BaseURL is the HTTP(S) root of the API (e.g., https://shop.example.com/api).
	// The push channel URL is derived from it.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`

	// TimeoutSec bounds a single REST request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec" validate:"gte=1"`
}

// RealtimeConfig holds settings for the push connection.
type RealtimeConfig struct {
	HeartbeatSec     int `mapstructure:"heartbeat_sec" yaml:"heartbeat_sec" validate:"gte=1"`
	BackoffBaseMs    int `mapstructure:"backoff_base_ms" yaml:"backoff_base_ms" validate:"gte=1"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms" yaml:"backoff_max_ms" validate:"gtefield=BackoffBaseMs"`
	TicketTimeoutSec int `mapstructure:"ticket_timeout_sec" yaml:"ticket_timeout_sec" validate:"gte=1"`
}

// InboxConfig holds list and reconciliation settings.
type InboxConfig struct {
	PageSize          int `mapstructure:"page_size" yaml:"page_size" validate:"gte=1,lte=100"`
	ResyncIntervalSec int `mapstructure:"resync_interval_sec" yaml:"resync_interval_sec" validate:"gte=0"`
}

// CacheConfig controls the local offline cache.
type CacheConfig struct {
	// Path is the sqlite database file. Empty disables the cache.
	Path string `mapstructure:"path" yaml:"path"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme" validate:"oneof=default light dark"`
}

// LogConfig controls the structured log file.
type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
	Inbox    InboxConfig    `mapstructure:"inbox" yaml:"inbox"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// HeartbeatInterval returns the heartbeat period as a duration.
func (c *AppConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.Realtime.HeartbeatSec) * time.Second
}

// BackoffBase returns the first reconnect delay.
func (c *AppConfig) BackoffBase() time.Duration {
	return time.Duration(c.Realtime.BackoffBaseMs) * time.Millisecond
}

// BackoffMax returns the reconnect delay cap.
func (c *AppConfig) BackoffMax() time.Duration {
	return time.Duration(c.Realtime.BackoffMaxMs) * time.Millisecond
}

// TicketTimeout bounds a single ticket request.
func (c *AppConfig) TicketTimeout() time.Duration {
	return time.Duration(c.Realtime.TicketTimeoutSec) * time.Second
}

// RequestTimeout bounds a single REST request.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// ResyncInterval is the period of background stats reconciliation.
// Zero disables it.
func (c *AppConfig) ResyncInterval() time.Duration {
	return time.Duration(c.Inbox.ResyncIntervalSec) * time.Second
}

// Validate checks the configuration against its struct tags.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// configDir returns ~/.config/shopnotify, falling back to the working
// directory when the home directory is unknown.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "shopnotify")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/shopnotify/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:8000/api",
			TimeoutSec: 30,
		},
		Realtime: RealtimeConfig{
			HeartbeatSec:     30,
			BackoffBaseMs:    1000,
			BackoffMaxMs:     30000,
			TicketTimeoutSec: 10,
		},
		Inbox: InboxConfig{
			PageSize:          20,
			ResyncIntervalSec: 300,
		},
		Cache: CacheConfig{
			Path: filepath.Join(configDir(), "cache.db"),
		},
		Display: DisplayConfig{
			Theme: "default",
		},
		Log: LogConfig{
			Path:  filepath.Join(configDir(), "shopnotify.log"),
			Level: "info",
		},
	}
}

// setDefaults mirrors defaultAppConfig into v so missing keys resolve to
// sensible values.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("realtime.heartbeat_sec", d.Realtime.HeartbeatSec)
	v.SetDefault("realtime.backoff_base_ms", d.Realtime.BackoffBaseMs)
	v.SetDefault("realtime.backoff_max_ms", d.Realtime.BackoffMaxMs)
	v.SetDefault("realtime.ticket_timeout_sec", d.Realtime.TicketTimeoutSec)
	v.SetDefault("inbox.page_size", d.Inbox.PageSize)
	v.SetDefault("inbox.resync_interval_sec", d.Inbox.ResyncIntervalSec)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with SHOPNOTIFY_ override file values
// (e.g., SHOPNOTIFY_API_BASE_URL). If the file does not exist, defaults
// are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("shopnotify")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		_, isPathErr := err.(*os.PathError)
		if !isPathErr && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("realtime", cfg.Realtime)
	v.Set("inbox", cfg.Inbox)
	v.Set("cache", cfg.Cache)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
