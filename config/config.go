// Package config handles application configuration management using Viper
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Constants for configuration
const (
	DefaultConfigPath = "./stardust.yaml"
	DefaultDBPath     = "./stardust.sqlite"
	DefaultStatePath  = "./stardust_state.db"
)

// Config holds the application configuration.
type Config struct {
	Network  NetworkConfig  `mapstructure:"network"`
	Storage  StorageConfig  `mapstructure:"storage"`
	API      APIConfig      `mapstructure:"api"`
	User     UserConfig     `mapstructure:"user"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Trader   TraderConfig   `mapstructure:"trader"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	LogLevel string         `mapstructure:"log_level"`
}

// NetworkConfig selects the ledger network.
type NetworkConfig struct {
	Name       string `mapstructure:"name"`
	HorizonURL string `mapstructure:"horizon_url"`
	Passphrase string `mapstructure:"passphrase"`
}

// StorageConfig holds the database paths.
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path"`
	StatePath string `mapstructure:"state_path"`
}

// APIConfig holds the HTTP listener settings.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// UserConfig identifies the single configured user and trading account.
type UserConfig struct {
	ID      string   `mapstructure:"id"`
	Token   string   `mapstructure:"token"`
	Account string   `mapstructure:"account"`
	Signers []string `mapstructure:"signers"`
}

// FetcherConfig tunes the trade poller.
type FetcherConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FetchLimit   int           `mapstructure:"fetch_limit"`
}

// TraderConfig tunes the execution pool.
type TraderConfig struct {
	Workers int `mapstructure:"workers"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	UserID  int64  `mapstructure:"user_id"`
}

// Load reads the yaml config at path (falling back to defaults when the
// file is absent) and applies STARDUST_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("network.name", "test")
	v.SetDefault("storage.db_path", DefaultDBPath)
	v.SetDefault("storage.state_path", DefaultStatePath)
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8090)
	v.SetDefault("fetcher.poll_interval", 10*time.Second)
	v.SetDefault("fetcher.fetch_limit", 200)
	v.SetDefault("trader.workers", 4)
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("STARDUST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultConfigPath
	}
	v.SetConfigFile(path)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
