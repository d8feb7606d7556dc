package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forumgate/forumgate/internal/config"
	"github.com/forumgate/forumgate/internal/forum"
	"github.com/forumgate/forumgate/internal/i18n"
	"github.com/forumgate/forumgate/internal/server"
	"github.com/forumgate/forumgate/internal/service"
)

const banner = `
 ___                  ___      _
| __|__ _ _ _  _ _ __ / __|__ _| |_ ___
| _/ _ \ '_| || | '  \ (_ / _' |  _/ -_)
|_|\___/_|  \_,_|_|_|_\___\__,_|\__\___|
`

func newServeCmd() *cobra.Command {
	var (
		port   int
		host   string
		dev    bool
		daemon bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ForumGate API server",
		Long:  "Start the HTTP server that exposes the gated registration and login endpoints and the admin API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemon {
				return runDaemonize()
			}
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "Run the server in the background")

	return cmd
}

// runDaemonize re-executes the current binary detached from the terminal,
// with stdout/stderr redirected to the log file.
func runDaemonize() error {
	if pid, err := readPID(); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("server already running (PID %d)", pid)
	}

	if err := os.MkdirAll(resolveDataDir(), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	args := []string{"serve"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}

	child := exec.Command(os.Args[0], args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setSysProcAttr(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start background server: %w", err)
	}
	if err := writePID(child.Process.Pid); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}

	fmt.Printf("Server started in background (PID %d)\n", child.Process.Pid)
	fmt.Printf("  Logs: %s\n", logFilePath())
	fmt.Printf("  Stop: forumgate stop\n")
	return nil
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	logger := newLogger(dev)
	i18n.Init(viper.GetString("language"))

	// 1. Gateway state store (keys, admins, audit log)
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("init gateway store: %w", err)
	}
	defer store.Close()
	logger.Info("gateway store initialized", "path", resolveDataDir())

	// 2. Board database
	board, err := openBoard(logger)
	if err != nil {
		return err
	}
	defer board.Disconnect()

	// 3. Services
	jwtSecret := viper.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		jwtSecret = "forumgate-dev-secret-change-me"
		logger.Warn("auth.jwt_secret is not set, using an insecure development secret")
	}
	authSvc := service.NewAuthorizer(store, jwtSecret)
	keySvc := service.NewKeyService(store, logger)
	userSvc := service.NewUserService(board, &forum.LogMailer{Logger: logger}, registerConfig(), logger)

	// 4. First-run hints
	ctx := context.Background()
	admins, err := store.ListAdmins(ctx)
	if err != nil {
		logger.Warn("failed to check for admin accounts", "error", err)
	} else if len(admins) == 0 {
		logger.Warn("no admin account found - run: forumgate admin create")
	}
	keys, err := store.ListAPIKeys(ctx)
	if err != nil {
		logger.Warn("failed to check for API keys", "error", err)
	} else if len(keys) == 0 {
		logger.Warn("no API keys issued - the gated endpoints answer 404 to everyone; run: forumgate key create")
	}

	// 5. HTTP server
	srvCfg := serverConfig(host, port)
	srv := server.New(srvCfg, store, board, authSvc, userSvc, keySvc, logger)

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer removePID()

	fmt.Printf("→ ForumGate %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Board:      %s (%s)\n", board.DriverName(), "connected")
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Println()

	return srv.ListenAndServe()
}

// openBoard connects the board database from the forum.* settings.
func openBoard(logger *slog.Logger) (forum.Forum, error) {
	driver := viper.GetString("forum.driver")
	dsn := viper.GetString("forum.dsn")
	if driver == "" || dsn == "" {
		return nil, fmt.Errorf("forum.driver and forum.dsn must be configured (run: forumgate config init)")
	}

	prefix := viper.GetString("forum.table_prefix")
	if prefix == "" {
		prefix = "phpbb_"
	}

	registry := newForumRegistry()
	board, err := registry.Open(forum.ConnConfig{
		Driver:      driver,
		DSN:         dsn,
		TablePrefix: prefix,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("board database connected", "driver", driver, "table_prefix", prefix)
	return board, nil
}

// newLogger builds the slog logger from the logging.* settings.
func newLogger(dev bool) *slog.Logger {
	level := slog.LevelInfo
	if dev {
		level = slog.LevelDebug
	} else {
		switch viper.GetString("logging.level") {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if viper.GetString("logging.format") == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// registerConfig reads the board account policy from the register.* settings,
// falling back to stock board defaults.
func registerConfig() config.RegisterConfig {
	cfg := config.DefaultYAMLConfig().Register
	if v := viper.GetInt("register.min_username_chars"); v > 0 {
		cfg.MinUsernameChars = v
	}
	if v := viper.GetInt("register.max_username_chars"); v > 0 {
		cfg.MaxUsernameChars = v
	}
	if v := viper.GetInt("register.min_password_chars"); v > 0 {
		cfg.MinPasswordChars = v
	}
	if v := viper.GetInt("register.max_password_chars"); v > 0 {
		cfg.MaxPasswordChars = v
	}
	if v := viper.GetInt("register.max_login_attempts"); v > 0 {
		cfg.MaxLoginAttempts = v
	}
	return cfg
}

// serverConfig assembles the HTTP server configuration from the server.* and
// auth.* settings; host and port flags take priority when set.
func serverConfig(host string, port int) server.Config {
	cfg := server.DefaultConfig()

	if v := viper.GetString("server.host"); v != "" {
		cfg.Host = v
	}
	if host != "" {
		cfg.Host = host
	}
	if v := viper.GetInt("server.port"); v > 0 {
		cfg.Port = v
	}
	if port > 0 {
		cfg.Port = port
	}
	if v := viper.GetString("server.shutdown_timeout"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := viper.GetInt("server.rate_per_minute"); v > 0 {
		cfg.RatePerMinute = v
	}
	if v := viper.GetStringSlice("server.trusted_proxies"); len(v) > 0 {
		cfg.TrustedProxies = v
	}
	if v := viper.GetStringSlice("server.cors.origins"); len(v) > 0 {
		cfg.CORSOrigins = v
	}
	if v := viper.GetString("auth.jwt_expiry"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.JWTTTL = d
		}
	}
	return cfg
}
