package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/daemon"
	"github.com/pterodactyl/panel/internal/daemonkey"
	"github.com/pterodactyl/panel/internal/service"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// PANEL_DATA_DIR env var, or ~/.panel as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("PANEL_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".panel")
}

// loadConfig builds the effective configuration: defaults, then the YAML
// file viper located, then PANEL_* environment variables and bound flags.
func loadConfig() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.LoadYAMLConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrideString := func(key string, dst *string) {
		if viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	overrideInt := func(key string, dst *int) {
		if viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}
	overrideString("server.host", &cfg.Server.Host)
	overrideInt("server.port", &cfg.Server.Port)
	overrideString("database.driver", &cfg.Database.Driver)
	overrideString("database.dsn", &cfg.Database.DSN)
	overrideString("auth.jwt_secret", &cfg.Auth.JWTSecret)
	overrideString("auth.jwt_expiry", &cfg.Auth.JWTExpiry)
	overrideString("daemon_keys.ttl", &cfg.DaemonKeys.TTL)
	overrideString("daemon.timeout", &cfg.Daemon.Timeout)
	overrideInt("remote.rate_limit", &cfg.Remote.RateLimit)
	overrideString("logging.level", &cfg.Logging.Level)
	overrideString("logging.format", &cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the panel database described by cfg. SQLite without a DSN
// lives under the data directory.
func openStore(cfg *config.YAMLConfig) (*config.Store, error) {
	if cfg.Database.DSN == "" && (cfg.Database.Driver == "" || cfg.Database.Driver == config.DriverSQLite) {
		return config.NewStore(resolveDataDir())
	}
	return config.Open(cfg.Database.Driver, cfg.Database.DSN)
}

// openConfiguredStore loads the configuration and opens its store.
func openConfiguredStore() (*config.YAMLConfig, *config.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open panel database: %w", err)
	}
	return cfg, store, nil
}

// newLogger builds the slog logger described by the logging section.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// duration parses a validated duration field, falling back when empty.
func duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// core bundles the daemon key components and lifecycle services.
type core struct {
	issuer   *daemonkey.Issuer
	rotator  *daemonkey.Rotator
	provider *daemonkey.Provider
	revoker  *daemonkey.Revoker
	users    *service.UserService
	nodes    *service.NodeService
	servers  *service.ServerService
	subusers *service.SubuserService
}

// newCore wires the daemon key components against store, notifying daemons
// over HTTP.
func newCore(cfg *config.YAMLConfig, store *config.Store, logger *slog.Logger) *core {
	notifier := daemon.NewClient(duration(cfg.Daemon.Timeout, daemon.DefaultTimeout), appVersion)
	opts := daemonkey.Options{
		TTL:    duration(cfg.DaemonKeys.TTL, daemonkey.DefaultTTL),
		Logger: logger,
	}
	issuer := daemonkey.NewIssuer(store, notifier, opts)
	rotator := daemonkey.NewRotator(store, notifier, opts)
	revoker := daemonkey.NewRevoker(store, notifier, logger)
	return &core{
		issuer:   issuer,
		rotator:  rotator,
		provider: daemonkey.NewProvider(store, store, issuer, rotator, nil, logger),
		revoker:  revoker,
		users:    service.NewUserService(store, revoker, logger),
		nodes:    service.NewNodeService(store, logger),
		servers:  service.NewServerService(store, revoker, logger),
		subusers: service.NewSubuserService(store, issuer, revoker, logger),
	}
}

// openCore is the common prelude of the management commands.
func openCore() (*config.Store, *core, error) {
	cfg, store, err := openConfiguredStore()
	if err != nil {
		return nil, nil, err
	}
	return store, newCore(cfg, store, newLogger(cfg.Logging, os.Stderr)), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// promptPassword reads a password twice from the terminal.
func promptPassword() (string, error) {
	fmt.Print("Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}
