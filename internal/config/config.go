package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Config is the full server configuration, read from the environment. A
// .env file is loaded by main before parsing, so both sources work.
type Config struct {
	Addr       string `env:"MICROLOG_ADDR" envDefault:":8080"`
	DataPath   string `env:"MICROLOG_DATA_PATH" envDefault:"microlog.json"`
	SQLitePath string `env:"MICROLOG_SQLITE_PATH"`
	StaticDir  string `env:"MICROLOG_STATIC_DIR"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
