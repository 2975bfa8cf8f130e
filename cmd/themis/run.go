package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"mercator-hq/themis/pkg/admission/actionlog"
	"mercator-hq/themis/pkg/admission/metering"
	"mercator-hq/themis/pkg/admission/ratelimit"
	"mercator-hq/themis/pkg/admission/retention"
	"mercator-hq/themis/pkg/billing"
	"mercator-hq/themis/pkg/config"
	"mercator-hq/themis/pkg/server"
	"mercator-hq/themis/pkg/telemetry/events"
	"mercator-hq/themis/pkg/telemetry/logging"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the admission API server",
	Long: `Start the Themis admission API server.

The server exposes the rate limit and metering decision endpoints consumed
by the surrounding API layer, plus health and Prometheus metrics endpoints.

Examples:
  # Start with default config
  themis run

  # Start with custom config
  themis run --config /etc/themis/config.yaml

  # Override listen address
  themis run --listen 0.0.0.0:8085

  # Validate config without starting the server
  themis run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	})
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("Configuration is valid (dry run, not starting server)")
		return nil
	}

	store, err := openStore(&cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	var m *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		m = metrics.New(nil)
		metricsHandler = promhttp.Handler()
	}

	var eventsClient *events.Client
	if cfg.Telemetry.Events.Enabled {
		eventsClient = events.NewClient(events.Config{
			Endpoint:   cfg.Telemetry.Events.Endpoint,
			APIKey:     cfg.Telemetry.Events.APIKey,
			BufferSize: cfg.Telemetry.Events.BufferSize,
			Logger:     logger,
		})
		defer eventsClient.Close()
	}

	userLimiter := ratelimit.NewLimiter(ratelimit.Config{
		Scope:   "user",
		Rules:   buildRules(cfg.Limits.User),
		Store:   store,
		Metrics: m,
		Logger:  logger,
	})
	projectLimiter := ratelimit.NewLimiter(ratelimit.Config{
		Scope:   "project",
		Rules:   buildRules(cfg.Limits.Project),
		Store:   store,
		Metrics: m,
		Logger:  logger,
	})

	var gate *metering.Gate
	if cfg.Metering.Enabled {
		gran, err := metering.ParseGranularity(cfg.Metering.Granularity)
		if err != nil {
			return err
		}

		var billingClient metering.BillingSender
		if cfg.Billing.Enabled {
			billingClient = billing.NewClient(billing.Config{
				BaseURL: cfg.Billing.URL,
				APIKey:  cfg.Billing.APIKey,
				Timeout: cfg.Billing.Timeout,
				Logger:  logger,
			})
		}

		gate = metering.NewGate(metering.Config{
			Threshold:       cfg.Metering.Threshold,
			Granularity:     gran,
			FreeTrial:       cfg.Metering.FreeTrial,
			Cost:            cfg.Metering.Cost,
			ApplicationName: cfg.Billing.ApplicationName,
			Narrative:       cfg.Metering.Narrative,
		}, metering.GateDeps{
			Store:   store,
			Billing: billingClient,
			Events:  eventsClient,
			Metrics: m,
			Logger:  logger,
		})
		defer gate.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pruner := retention.NewPruner(store, time.Hour,
		buildRules(cfg.Limits.User), buildRules(cfg.Limits.Project))
	if cfg.Retention.Enabled {
		scheduler := retention.NewScheduler(pruner, cfg.Retention.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	if cfg.Limits.Watch {
		watcher := config.NewWatcher(cfgFile, logger)
		go func() {
			err := watcher.Watch(ctx, func(fresh *config.Config) {
				userLimiter.SetRules(buildRules(fresh.Limits.User))
				projectLimiter.SetRules(buildRules(fresh.Limits.Project))
				pruner.SetRules(buildRules(fresh.Limits.User), buildRules(fresh.Limits.Project))
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
	}

	var meterGate server.MeteringGate
	if gate != nil {
		meterGate = gate
	}
	handler := server.NewHandler(userLimiter, projectLimiter, meterGate, logger)

	srv := server.NewServer(&cfg.Server, handler.Routes(metricsHandler))
	return srv.Start(ctx)
}

// loadConfig loads the configured file, falling back to built-in defaults
// when the default config file is simply absent.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err == nil {
		return cfg, nil
	}
	if cfgFile == "config.yaml" && errors.Is(err, os.ErrNotExist) {
		slog.Info("no config file found, using built-in defaults")
		return config.NewDefault(), nil
	}
	return nil, err
}

func openStore(cfg *config.StoreConfig) (actionlog.Store, error) {
	switch cfg.Backend {
	case "memory":
		return actionlog.NewMemoryStore(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
		return actionlog.NewSQLiteStoreWithConfig(actionlog.SQLiteConfig{
			Path:         cfg.Path,
			BusyTimeout:  cfg.BusyTimeout,
			MaxOpenConns: cfg.MaxOpenConns,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func buildRules(table map[string]config.LimitRule) ratelimit.Rules {
	rules := make(ratelimit.Rules, len(table))
	for action, rule := range table {
		rules[actionlog.Action(action)] = ratelimit.Rule{
			Threshold: rule.Threshold,
			Window:    time.Duration(rule.WindowSeconds) * time.Second,
		}
	}
	return rules
}
