package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level panel configuration file.
type YAMLConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	DaemonKeys DaemonKeysConfig `yaml:"daemon_keys"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Remote     RemoteConfig     `yaml:"remote"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// DatabaseConfig selects the panel database. An empty DSN with the sqlite
// driver stores panel.db under the data directory.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig controls panel session tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

// DaemonKeysConfig controls daemon key issuance.
type DaemonKeysConfig struct {
	TTL string `yaml:"ttl"`
}

// DaemonConfig controls outbound calls to node daemons.
type DaemonConfig struct {
	Timeout string `yaml:"timeout"`
}

// RemoteConfig controls the endpoints daemons call back into.
type RemoteConfig struct {
	RateLimit int `yaml:"rate_limit"` // requests per minute per node token
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
// Fields missing from the file keep their defaults.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
		},
		Auth: AuthConfig{
			JWTExpiry: "24h",
		},
		DaemonKeys: DaemonKeysConfig{
			TTL: "720m",
		},
		Daemon: DaemonConfig{
			Timeout: "5s",
		},
		Remote: RemoteConfig{
			RateLimit: 600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that every duration field parses and the driver is known.
func (c *YAMLConfig) Validate() error {
	if _, err := lookupDialect(c.Database.Driver); err != nil {
		return err
	}
	durations := map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"auth.jwt_expiry":         c.Auth.JWTExpiry,
		"daemon_keys.ttl":         c.DaemonKeys.TTL,
		"daemon.timeout":          c.Daemon.Timeout,
	}
	for name, raw := range durations {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s %q: must be positive", name, raw)
		}
	}
	return nil
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
