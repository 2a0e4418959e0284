package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pterodactyl/panel/internal/server"
	"github.com/pterodactyl/panel/internal/service"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the panel API server",
		Long: `Start the HTTP server that serves the panel API, hands out daemon keys
and answers key lookups from node daemons.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dev {
		cfg.Logging.Level = "debug"
	}
	logger := newLogger(cfg.Logging, os.Stderr)

	// 1. Open the panel database
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open panel database: %w", err)
	}
	defer store.Close()
	logger.Info("panel database ready", "driver", store.Driver())

	ctx := context.Background()

	// 2. Session signing secret, generated and persisted on first start
	jwtSecret, err := service.ResolveJWTSecret(ctx, store, cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("resolve session secret: %w", err)
	}
	sessionTTL := duration(cfg.Auth.JWTExpiry, service.DefaultSessionTTL)
	authSvc := service.NewAuthService(store, jwtSecret, sessionTTL)

	// 3. Daemon key lifecycle
	c := newCore(cfg, store, logger)

	users, err := store.ListUsers(ctx)
	if err != nil {
		logger.Warn("failed to count users", "error", err)
	} else if len(users) == 0 {
		logger.Warn("no users found - run: panel user create --admin")
	}

	// 4. Build and start HTTP server
	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Server.Host
	srvCfg.Port = cfg.Server.Port
	srvCfg.ShutdownTimeout = duration(cfg.Server.ShutdownTimeout, 30*time.Second)
	srvCfg.CORSOrigins = cfg.Server.CORS.Origins
	srvCfg.RemoteRateLimit = cfg.Remote.RateLimit
	srvCfg.SessionTTL = sessionTTL
	srvCfg.Version = appVersion

	srv := server.New(srvCfg, server.Deps{
		Store:    store,
		Auth:     authSvc,
		Provider: c.provider,
		Revoker:  c.revoker,
		Users:    c.users,
		Nodes:    c.nodes,
		Servers:  c.servers,
		Subusers: c.subusers,
	}, logger)

	fmt.Printf("→ Panel %s\n", appVersion)
	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Daemon key TTL: %s\n", cfg.DaemonKeys.TTL)
	fmt.Println()

	return srv.ListenAndServe()
}
