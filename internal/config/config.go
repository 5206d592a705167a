package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	envloader "tunnelout/internal/config/env"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server Configuration
	Environment string `env:"ENV" envDefault:"development"`
	Host        string `env:"HOST" envDefault:"0.0.0.0"`
	Port        int    `env:"PORT" envDefault:"5000"`
	LogFile     string `env:"LOG_FILE"`

	// API access
	AdminAPIKey string `env:"ADMIN_API_KEY"`
	AdminUserID string `env:"ADMIN_USER_ID" envDefault:"admin"`

	// Remote provisioning service
	RemoteBase     string `env:"REMOTE_BASE" envDefault:"https://lnbits.lnpro.xyz"`
	RemoteWSBase   string `env:"REMOTE_WS_BASE" envDefault:"wss://lnbits.lnpro.xyz/api/v1/ws"`
	RemotePublicID string `env:"REMOTE_PUBLIC_ID" envDefault:"aE4CBGPeRqcJufpWDVh53G"`

	// Local state
	DataDir string `env:"DATA_DIR" envDefault:"~/.tunnelout"`
	DBFile  string `env:"DB_FILE" envDefault:"tunnelout.db"`

	// SSH subprocess
	SSHBinary string `env:"SSH_BINARY" envDefault:"ssh"`

	// Rate limiting
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

// Load loads the configuration from environment variables and .env files
func Load() (*Config, error) {
	// ENV-specific file first, then a generic .env in the working directory
	if err := envloader.LoadEnv(); err != nil {
		return nil, err
	}
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Set default log file if not set
	if cfg.LogFile == "" {
		if cfg.Environment == "production" {
			cfg.LogFile = "/app/logs/api.log"
		} else {
			cfg.LogFile = "./logs/api.log"
		}
	}

	expanded, err := ExpandHome(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	cfg.DataDir = expanded

	return cfg, nil
}

// ExpandHome resolves a leading "~/" in a path against the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}
