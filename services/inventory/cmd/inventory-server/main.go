package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inventoryd/pkg/admission"
	"inventoryd/pkg/bus"
	"inventoryd/pkg/db"
	"inventoryd/pkg/render"
	"inventoryd/pkg/telemetry"
	"inventoryd/services/api"
	"inventoryd/services/inventory"
	"inventoryd/services/inventory/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	debug      bool
}

func (g *globalFlags) load(ctx context.Context) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(ctx, config.Options{Path: g.configPath})
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	if g.debug {
		cfg.Debug = true
	}
	logger, err := telemetry.NewLogger(telemetry.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Debug:  cfg.Debug,
	}, os.Stderr)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logger.With().Str("service", api.ServiceName).Logger(), nil
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "inventory-server",
		Short:         "Laptop check-in ingestion and inventory server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to config.toml (default: next to the executable)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCommand(flags))
	cmd.AddCommand(newBackupCommand(flags))
	cmd.AddCommand(newRestoreCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func runServe(ctx context.Context, flags *globalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := flags.load(ctx)
	if err != nil {
		return err
	}

	cleanup, err := telemetry.Init(ctx, api.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown otel")
		}
	}()

	gdb, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()
	logger.Info().Str("path", cfg.DBPath).Msg("database ready")

	store, err := inventory.NewStore(gdb)
	if err != nil {
		return err
	}
	validator, err := inventory.NewValidator()
	if err != nil {
		return err
	}

	opts := []inventory.IngestorOption{inventory.WithLogger(logger)}
	var notifier api.Notifier
	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL, api.ServiceName)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer b.Close()
		opts = append(opts, inventory.WithPublisher(b, cfg.NATSSubject))
		notifier = b
		logger.Info().Str("url", cfg.NATSURL).Str("subject", cfg.NATSSubject).Msg("publishing check-in notifications")
	}
	ingestor, err := inventory.NewIngestor(store, validator, opts...)
	if err != nil {
		return err
	}
	query, err := inventory.NewQuery(store)
	if err != nil {
		return err
	}

	renderer, err := render.New()
	if err != nil {
		return err
	}

	limiter, err := admission.NewLimiter(admission.Config{
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.RateBurst,
		IdleTTL:       cfg.LimiterIdleTTL,
		SweepInterval: cfg.LimiterSweepInterval,
	})
	if err != nil {
		return err
	}
	go limiter.Run(ctx)

	a, err := api.New(api.Deps{
		Ingestor: ingestor,
		Reader:   query,
		Pinger:   store,
		Notifier: notifier,
		Renderer: renderer,
		Limiter:  limiter,
		Metrics:  api.NewMetrics(limiter),
		Logger:   logger,
	}, api.Config{
		MaxBodyBytes:        cfg.MaxBodyBytes,
		UIRequestsPerMinute: cfg.UIRequestsPerMinute,
		TrustProxyHeaders:   cfg.TrustProxyHeaders,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RequestTimeout:      cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Bind, err)
	}
	if !cfg.TLSEnabled() {
		logger.Warn().Msg("TLS is not configured; check-ins travel in cleartext")
	}

	return api.Serve(ctx, ln, a.Routes(), api.ServeOptions{
		TLSCert:       cfg.TLSCert,
		TLSKey:        cfg.TLSKey,
		ShutdownGrace: cfg.ShutdownGrace,
		Logger:        logger,
	})
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
