package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Telegram   TelegramConfig   `toml:"telegram"`
	Spotify    SpotifyConfig    `toml:"spotify"`
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	Reconciler ReconcilerConfig `toml:"reconciler"`
}

// TelegramConfig contains the bot credentials.
type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DatabaseConfig contains database paths.
//
// BackupPath may be empty to disable the mirror copy.
type DatabaseConfig struct {
	Path       string `toml:"path"`
	BackupPath string `toml:"backup_path"`
}

// ServerConfig contains HTTP server settings for the OAuth callback.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ReconcilerConfig contains the polling cadence for playlist change checks.
type ReconcilerConfig struct {
	IntervalMinutes int `toml:"interval_minutes"`
	PageSize        int `toml:"page_size"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the fields required to run the bot are present.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("%w: telegram.bot_token is required", ErrInvalidConfig)
	}
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify.client_id and spotify.client_secret are required", ErrInvalidConfig)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	return nil
}
