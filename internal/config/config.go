// Package config loads and saves household configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all household configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Auth       AuthConfig       `toml:"auth"`
	Orders     OrdersConfig     `toml:"orders"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Appearance AppearanceConfig `toml:"appearance"`
	TUI        TUIConfig        `toml:"tui"`
}

// GeneralConfig holds runtime environment settings.
type GeneralConfig struct {
	Environment string `toml:"environment" env:"HOUSEHOLD_ENV"`
	LogLevel    string `toml:"log_level" env:"HOUSEHOLD_LOG_LEVEL"`
}

// ServerConfig holds listen addresses for `serve`.
type ServerConfig struct {
	Addr       string `toml:"addr" env:"HOUSEHOLD_ADDR"`
	OrdersAddr string `toml:"orders_addr" env:"HOUSEHOLD_ORDERS_ADDR"`
	RunOrders  bool   `toml:"run_orders" env:"HOUSEHOLD_RUN_ORDERS"`
}

// StorageConfig holds database and statement blob settings.
type StorageConfig struct {
	DBPath      string `toml:"db_path,omitempty" env:"HOUSEHOLD_DB_PATH"`
	BlobBackend string `toml:"blob_backend" env:"HOUSEHOLD_BLOB_BACKEND"`
	BlobDir     string `toml:"blob_dir,omitempty" env:"HOUSEHOLD_BLOB_DIR"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty" env:"HOUSEHOLD_S3_ENDPOINT"`
	S3Bucket    string `toml:"s3_bucket,omitempty" env:"HOUSEHOLD_S3_BUCKET"`
	S3Region    string `toml:"s3_region,omitempty" env:"HOUSEHOLD_S3_REGION"`
	S3AccessKey string `toml:"s3_access_key,omitempty" env:"HOUSEHOLD_S3_ACCESS_KEY"`
	S3SecretKey string `toml:"s3_secret_key,omitempty" env:"HOUSEHOLD_S3_SECRET_KEY"`
	S3PathStyle bool   `toml:"s3_path_style" env:"HOUSEHOLD_S3_PATH_STYLE"`
}

// AuthConfig holds bearer-token settings for the API.
type AuthConfig struct {
	Enabled       bool     `toml:"enabled" env:"HOUSEHOLD_AUTH_ENABLED"`
	Secret        string   `toml:"secret,omitempty" env:"HOUSEHOLD_AUTH_SECRET"`
	Issuer        string   `toml:"issuer" env:"HOUSEHOLD_AUTH_ISSUER"`
	Audience      string   `toml:"audience" env:"HOUSEHOLD_AUTH_AUDIENCE"`
	TokenTTLHours int      `toml:"token_ttl_hours" env:"HOUSEHOLD_AUTH_TTL_HOURS"`
	AllowedUsers  []string `toml:"allowed_users,omitempty" env:"HOUSEHOLD_AUTH_ALLOWED_USERS" envSeparator:","`
}

// OrdersConfig holds orders worker client settings.
type OrdersConfig struct {
	WorkerURL      string `toml:"worker_url,omitempty" env:"HOUSEHOLD_ORDERS_URL"`
	APIKey         string `toml:"api_key,omitempty" env:"HOUSEHOLD_ORDERS_API_KEY"`
	CacheDays      int    `toml:"cache_days" env:"HOUSEHOLD_ORDERS_CACHE_DAYS"`
	TimeoutSeconds int    `toml:"timeout_seconds" env:"HOUSEHOLD_ORDERS_TIMEOUT_SECONDS"`
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	Enabled           bool   `toml:"enabled" env:"HOUSEHOLD_SCHEDULER_ENABLED"`
	Timezone          string `toml:"timezone" env:"HOUSEHOLD_SCHEDULER_TZ"`
	RefreshSpec       string `toml:"refresh_spec" env:"HOUSEHOLD_CRON_REFRESH"`
	RenormalizeSpec   string `toml:"renormalize_spec" env:"HOUSEHOLD_CRON_RENORMALIZE"`
	PruneSpec         string `toml:"prune_spec" env:"HOUSEHOLD_CRON_PRUNE"`
	JobTimeoutSeconds int    `toml:"job_timeout_seconds" env:"HOUSEHOLD_JOB_TIMEOUT_SECONDS"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme" env:"HOUSEHOLD_THEME"`
}

// TUIConfig holds dashboard settings.
type TUIConfig struct {
	AutoRefresh        bool `toml:"auto_refresh"`
	RefreshIntervalSec int  `toml:"refresh_interval_sec"`
}

// RefreshInterval returns the dashboard auto-refresh period, never below 5s.
func (t TUIConfig) RefreshInterval() time.Duration {
	return time.Duration(max(t.RefreshIntervalSec, 5)) * time.Second
}

// Blob backends.
const (
	BlobFS = "fs"
	BlobS3 = "s3"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			Environment: "development",
			LogLevel:    "info",
		},
		Server: ServerConfig{
			Addr:       "127.0.0.1:8787",
			OrdersAddr: "127.0.0.1:8788",
		},
		Storage: StorageConfig{
			BlobBackend: BlobFS,
			S3Region:    "auto",
		},
		Auth: AuthConfig{
			Issuer:        "household",
			Audience:      "household-api",
			TokenTTLHours: 24 * 30,
		},
		Orders: OrdersConfig{
			CacheDays:      7,
			TimeoutSeconds: 10,
		},
		Scheduler: SchedulerConfig{
			Enabled:           true,
			Timezone:          "Local",
			RefreshSpec:       "0 3 * * *",
			RenormalizeSpec:   "30 3 * * 0",
			PruneSpec:         "0 4 * * *",
			JobTimeoutSeconds: 120,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
		TUI: TUIConfig{
			AutoRefresh:        true,
			RefreshIntervalSec: 30,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "household")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "household")
}

// DataDir returns the XDG-compliant data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "household")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "household")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DatabasePath returns the configured database path or the default one.
func (s StorageConfig) DatabasePath() string {
	if s.DBPath != "" {
		return s.DBPath
	}
	return filepath.Join(DataDir(), "household.db")
}

// BlobDirectory returns the configured blob directory or the default one.
func (s StorageConfig) BlobDirectory() string {
	if s.BlobDir != "" {
		return s.BlobDir
	}
	return filepath.Join(DataDir(), "blobs")
}

// TokenTTL returns the token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// Timeout returns the orders worker request timeout.
func (o OrdersConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// CacheMaxAge returns how long cached order details stay fresh.
func (o OrdersConfig) CacheMaxAge() time.Duration {
	return time.Duration(o.CacheDays) * 24 * time.Hour
}

// JobTimeout returns the per-run job deadline.
func (s SchedulerConfig) JobTimeout() time.Duration {
	return time.Duration(s.JobTimeoutSeconds) * time.Second
}

// Location resolves the scheduler time zone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || strings.EqualFold(s.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Validate reports configuration that cannot run.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.BlobBackend {
	case BlobFS:
	case BlobS3:
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("storage.s3_bucket is required for the s3 blob backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.blob_backend %q must be %q or %q", c.Storage.BlobBackend, BlobFS, BlobS3))
	}
	if c.Auth.Enabled && len(c.Auth.Secret) < 16 {
		errs = append(errs, errors.New("auth.secret must be at least 16 characters when auth is enabled"))
	}
	if c.Auth.TokenTTLHours <= 0 {
		errs = append(errs, errors.New("auth.token_ttl_hours must be positive"))
	}
	if c.Orders.CacheDays < 0 {
		errs = append(errs, errors.New("orders.cache_days must not be negative"))
	}
	if _, err := c.Scheduler.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFile(ConfigPath())
}

// LoadFile reads the config at path, returning defaults if it doesn't exist.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
