// Package config loads layered configuration: built-in defaults, an
// optional YAML file, then environment variables. ENV > file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/ZehenForever/eqrespawn/internal/logging"
)

const envPrefix = "EQRESPAWN_"

type Config struct {
	Server  ServerConfig   `koanf:"server"`
	Logs    LogsConfig     `koanf:"logs"`
	Catalog CatalogConfig  `koanf:"catalog"`
	Store   StoreConfig    `koanf:"store"`
	Discord DiscordConfig  `koanf:"discord"`
	Refresh RefreshConfig  `koanf:"refresh"`
	Logging logging.Config `koanf:"logging"`

	Triggers []TriggerConfig `koanf:"triggers"`

	// AliasOverrides maps extra alias text to mob ids, merged over the
	// catalog's own aliases.
	AliasOverrides map[string]string `koanf:"alias_overrides"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type LogsConfig struct {
	// Dir is the EverQuest Logs directory to tail. Empty disables tailing.
	Dir           string   `koanf:"dir"`
	Extensions    []string `koanf:"extensions"`
	Prefixes      []string `koanf:"prefixes"`
	RescanSeconds int      `koanf:"rescan_seconds"`
}

type CatalogConfig struct {
	Path string `koanf:"path"`
}

type StoreConfig struct {
	Path string `koanf:"path"`
	// ReloadSeconds refreshes in-memory state from the store on an
	// interval so independent processes converge. Zero disables.
	ReloadSeconds int `koanf:"reload_seconds"`
}

type DiscordConfig struct {
	Enabled    bool   `koanf:"enabled"`
	WebhookURL string `koanf:"webhook_url"`
	Username   string `koanf:"username"`
	AvatarURL  string `koanf:"avatar_url"`
}

type RefreshConfig struct {
	// Seconds between periodic snapshot broadcasts to connected clients.
	Seconds int `koanf:"seconds"`
}

type TriggerConfig struct {
	ID          string `koanf:"id"`
	Label       string `koanf:"label"`
	Color       string `koanf:"color"`
	Pattern     string `koanf:"pattern"`
	Seconds     int    `koanf:"seconds"`
	RestartMode string `koanf:"restart_mode"`
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: 8390},
		Logs:    LogsConfig{Extensions: []string{".txt"}, Prefixes: []string{"eqlog_"}, RescanSeconds: 5},
		Catalog: CatalogConfig{Path: "mobs.json"},
		Store:   StoreConfig{Path: "data/respawn", ReloadSeconds: 0},
		Refresh: RefreshConfig{Seconds: 30},
		Logging: logging.Config{Level: "info", Format: "json"},
	}
}

// Load reads configuration. path names the YAML file; when empty,
// config.yaml is used if present.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
	}

	// EQRESPAWN_SERVER__PORT=9000 -> server.port. Double underscore
	// separates nesting so keys like webhook_url survive.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if c.Refresh.Seconds < 1 {
		return fmt.Errorf("refresh.seconds must be positive")
	}
	if c.Discord.Enabled && c.Discord.WebhookURL == "" {
		return fmt.Errorf("discord.webhook_url is required when discord is enabled")
	}
	for i, tr := range c.Triggers {
		if tr.Pattern == "" {
			return fmt.Errorf("triggers[%d]: pattern is required", i)
		}
		if tr.Seconds < 1 {
			return fmt.Errorf("triggers[%d]: seconds must be positive", i)
		}
	}
	return nil
}
