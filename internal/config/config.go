package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Auth       AuthConfig       `json:"auth"`
	Completion CompletionConfig `json:"completion"`
}

type ServerConfig struct {
	Address string `json:"address"`
	Mode    string `json:"mode"` // debug/test/release
}

type DatabaseConfig struct {
	Driver string `json:"driver"` // sqlite3, mysql, postgres
	DSN    string `json:"dsn"`
}

type AuthConfig struct {
	Secret          string `json:"secret"`
	TokenTTLMinutes int    `json:"token_ttl_minutes"`
}

// CompletionConfig selects the external completion provider. An empty
// APIKey puts the gateway in mock mode instead of failing startup.
type CompletionConfig struct {
	Provider string `json:"provider"` // openai, gemini, claude
	BaseURL  string `json:"base_url"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Address: ":8000", Mode: "release"},
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "./chathub.db"},
		Auth: AuthConfig{
			Secret:          "09d25e094faa6ca2556c818166b7a9563b93f7099f6f0f4caa6cf63b88e8d3e7",
			TokenTTLMinutes: 60,
		},
		Completion: CompletionConfig{Provider: "openai", Model: "gpt-3.5-turbo"},
	}
}

// Load reads configuration from path on top of the defaults, then applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config %s: %w", path, err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn must be configured")
	}
	if cfg.Auth.TokenTTLMinutes <= 0 {
		cfg.Auth.TokenTTLMinutes = 60
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CHATHUB_ADDR"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("CHATHUB_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("CHATHUB_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Completion.Provider == "openai" {
		c.Completion.APIKey = v
	}
	if v := os.Getenv("COMPLETION_API_KEY"); v != "" {
		c.Completion.APIKey = v
	}
	if v := os.Getenv("TOKEN_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Auth.TokenTTLMinutes = n
		}
	}
}
