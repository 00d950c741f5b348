package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"evmconnect/pkg/config"
	"evmconnect/pkg/controller"
	"evmconnect/pkg/logging"
	"evmconnect/pkg/provider"
	"evmconnect/pkg/server"
	"evmconnect/pkg/store"
	"evmconnect/pkg/transfer"
	"evmconnect/pkg/tui"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is overridable via build ldflags.
var Version = "dev"

var (
	cfgPath     string
	cfg         config.Config
	verbose     bool
	serverMode  bool
	port        int
	autoConnect bool
)

var rootCmd = &cobra.Command{
	Use:   "evmconnect",
	Short: "Connect to an injected wallet provider and mirror its state",
	Long: `evmconnect detects a wallet provider on the configured JSON-RPC endpoint,
mirrors its accounts, balance and chain id, and on connect submits the
configured transfer from the connected account.

Without --server it runs an interactive terminal UI. With --server it exposes
the same state over HTTP and WebSocket.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		// A missing .env is normal.
		_ = godotenv.Load()

		path, err := config.GetConfigPath(cfgPath)
		if err != nil {
			return fmt.Errorf("determining config path: %w", err)
		}
		cfgPath = path

		cfg, err = config.LoadConfigFromFile(path)
		if err != nil {
			return fmt.Errorf("loading config from %s: %w", path, err)
		}
		config.ApplyEnv(&cfg)
		if verbose {
			cfg.Global.LogLevel = "debug"
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if !cmd.Flags().Changed("port") {
			port = cfg.Global.ServerPort
		}
		return run(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = Version
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to configuration file (default: ~/"+config.ConfigFileName+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.Flags().BoolVar(&serverMode, "server", false, "run headless with the HTTP/WebSocket API")
	rootCmd.Flags().IntVar(&port, "port", 8080, "port for the API server")
	rootCmd.Flags().BoolVar(&autoConnect, "connect", false, "connect as soon as a provider is detected (server mode)")

	rootCmd.AddCommand(checkCmd, configCmd)
}

func newLogger(toFile bool) (*zap.Logger, error) {
	path := ""
	if toFile {
		path = cfg.Global.LogFile
		if path == "" {
			path = config.DefaultLogPath()
		}
	}
	return logging.New(cfg.Global.LogLevel, path)
}

func newGateway(logger *zap.Logger) *provider.RPCGateway {
	return provider.NewRPCGateway(provider.Options{
		URL:           cfg.Provider.URL,
		PollInterval:  cfg.Provider.PollInterval(),
		DetectTimeout: cfg.Provider.DetectTimeout(),
		Logger:        logger,
	})
}

func newBuilder() (controller.TxBuilder, error) {
	if !cfg.Transfer.Enabled {
		return nil, nil
	}
	b, err := transfer.NewBuilder(cfg.Transfer)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func run(ctx context.Context) error {
	// The TUI owns the terminal, so it logs to a file.
	logger, err := newLogger(!serverMode)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	builder, err := newBuilder()
	if err != nil {
		return err
	}

	gw := newGateway(logger)
	defer gw.Close()

	st := store.New()
	defer st.Dispose()

	ctrl := controller.New(gw, st, builder, logger, cfg.Global.BalanceDecimals)
	defer ctrl.Stop()

	logger.Info("Starting",
		zap.String("version", Version),
		zap.String("config", cfgPath),
		zap.String("provider", cfg.Provider.URL),
		zap.Bool("server", serverMode))
	ctrl.Start(ctx)

	if !serverMode {
		return tui.Start(ctrl, st, cfgPath, Version)
	}

	if autoConnect {
		go func() {
			select {
			case <-ctrl.Mounted():
			case <-ctx.Done():
				return
			}
			if err := ctrl.Connect(ctx); err != nil && !errors.Is(err, controller.ErrStopped) {
				logger.Warn("Auto-connect failed", zap.Error(err))
			}
		}()
	}

	srv := server.NewServer(ctrl, st, logger)
	return srv.Start(ctx, port)
}
