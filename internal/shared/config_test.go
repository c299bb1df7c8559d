package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		content := `
[telegram]
bot_token = "123:abc"

[spotify]
client_id = "cid"
client_secret = "secret"
redirect_uri = "http://localhost:8000/callback"

[database]
path = "notify.db"
backup_path = "backup.db"

[server]
host = "0.0.0.0"
port = 8000

[reconciler]
interval_minutes = 15
page_size = 6
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Telegram.BotToken != "123:abc" {
			t.Errorf("unexpected bot token %q", config.Telegram.BotToken)
		}
		if config.Spotify.ClientID != "cid" {
			t.Errorf("unexpected client id %q", config.Spotify.ClientID)
		}
		if config.Reconciler.IntervalMinutes != 15 {
			t.Errorf("unexpected interval %d", config.Reconciler.IntervalMinutes)
		}
		if config.Reconciler.PageSize != 6 {
			t.Errorf("unexpected page size %d", config.Reconciler.PageSize)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("not [valid toml"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		_, err := LoadConfig(path)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Database.Path == "" {
		t.Error("expected a default database path")
	}
	if config.Reconciler.IntervalMinutes != 30 {
		t.Errorf("expected default interval of 30 minutes, got %d", config.Reconciler.IntervalMinutes)
	}
	if config.Server.Port == 0 {
		t.Error("expected a default server port")
	}
}

func TestCreateConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := CreateConfigFile(path); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	if _, err := LoadConfig(path); err != nil {
		t.Errorf("created config should load cleanly: %v", err)
	}

	if err := CreateConfigFile(path); err == nil {
		t.Error("expected error when config already exists")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		config := DefaultConfig()
		config.Telegram.BotToken = "123:abc"
		config.Spotify.ClientID = "cid"
		config.Spotify.ClientSecret = "secret"
		return config
	}

	t.Run("complete config passes", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing bot token", func(t *testing.T) {
		config := valid()
		config.Telegram.BotToken = ""
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("missing spotify credentials", func(t *testing.T) {
		config := valid()
		config.Spotify.ClientSecret = ""
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("missing database path", func(t *testing.T) {
		config := valid()
		config.Database.Path = ""
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
