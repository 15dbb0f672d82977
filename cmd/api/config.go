package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the API process configuration. Values come from an
// optional TOML file and are overridden by environment variables.
type Config struct {
	ListenAddr  string `toml:"listen_addr"`
	DatabaseURL string `toml:"database_url"`
	JWTSecret   string `toml:"jwt_secret"`
}

// LoadConfig reads path (when present) and applies env overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ListenAddr: ":8080",
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("DATAMART_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url is required (config file or DATABASE_URL)")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret is required (config file or JWT_SECRET)")
	}

	return cfg, nil
}
