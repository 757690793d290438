package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingClientID is returned when HANDELSBANKEN_CLIENT_ID is not configured.
var ErrMissingClientID = errors.New("HANDELSBANKEN_CLIENT_ID is required")

// Config holds the application configuration loaded from env files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	ClientID          string        `mapstructure:"handelsbanken_client_id"`
	Country           string        `mapstructure:"handelsbanken_country"`
	BaseURL           string        `mapstructure:"handelsbanken_base_url"`
	RedirectURI       string        `mapstructure:"handelsbanken_redirect_uri"`
	HTTPTimeoutSecs   int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout       time.Duration `mapstructure:"-"`
	SkipAuthorization bool          `mapstructure:"skip_authorization"`

	OutputFile          string        `mapstructure:"output_file"`
	PublishersFile      string        `mapstructure:"publishers_file"`
	SyncIntervalSeconds int64         `mapstructure:"sync_interval"`
	SyncInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from env files and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	_ = godotenv.Load(".env")

	v := viper.New()

	v.SetDefault("app_name", "handelsbanken-explorer")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("handelsbanken_client_id", "")
	v.SetDefault("handelsbanken_country", "GB")
	v.SetDefault("handelsbanken_base_url", "https://sandbox.handelsbanken.com/openbanking")
	v.SetDefault("handelsbanken_redirect_uri", "https://example.com")
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("skip_authorization", false)
	v.SetDefault("output_file", "transactions.csv")
	v.SetDefault("publishers_file", "")
	v.SetDefault("sync_interval", 0) // seconds, 0 runs a single pass
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/exported.db")
	v.SetDefault("storage_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.ClientID = strings.TrimSpace(c.ClientID)
	if c.ClientID == "" {
		return ErrMissingClientID
	}
	c.Country = strings.ToUpper(strings.TrimSpace(c.Country))
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return fmt.Errorf("invalid handelsbanken_base_url (must not be empty)")
	}

	if c.HTTPTimeoutSecs <= 0 {
		return fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSecs) * time.Second

	if c.SyncIntervalSeconds < 0 {
		return fmt.Errorf("invalid sync_interval (must not be negative)")
	}
	c.SyncInterval = time.Duration(c.SyncIntervalSeconds) * time.Second

	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second

	c.StorageType = strings.ToLower(strings.TrimSpace(c.StorageType))
	return c.ValidateSync()
}

// ValidateSync rejects a sync loop without a ledger: every tick would export
// every transaction again.
func (c *Config) ValidateSync() error {
	if c.SyncInterval <= 0 {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(c.StorageType)) {
	case "", "none", "disabled":
		return fmt.Errorf("sync_interval requires storage_type memory or bbolt (got %q)", c.StorageType)
	}
	return nil
}
