package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"plantime/internal/config"
	"plantime/internal/ics"
	appLog "plantime/internal/log"
	"plantime/internal/store"
	"plantime/internal/web"
	"plantime/internal/worker"
)

const version = "0.3.0"

var (
	configPath string
	debug      bool

	// cfg is loaded by the root PersistentPreRunE for every subcommand.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "plantime",
	Short: "Release plan timeline server and renderer",
	Long: `plantime lays out a release plan on a day-based timeline with month and
week rows, holiday and special-day markers, phase bars and milestones.

Run "plantime serve" for the HTTP server, or use the one-shot commands to
print a layout, render SVG or capture a PNG.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			appLog.SetLevel(appLog.LevelDebug)
		}
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		cfg = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		appLog.Sync()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the timeline API and pages",
	Long: `Serve loads the plan and holiday feeds, refreshes them on the configured
cron schedule and serves the layout API, the SVG chart and the HTML page.`,
	RunE: runServe,
}

var serveListen string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	appLog.Info("plantime starting", "version", version)
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"refresh", cfg.RefreshCron,
		"px_per_day", cfg.PxPerDay,
		"plan", cfg.PlanPath,
		"feeds", len(cfg.HolidayFeeds),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New(cfg, ics.NewFetcher(cfg.CacheDir, nil))
	if err := st.Refresh(ctx); err != nil {
		// Serve whatever loaded; the next scheduled refresh retries.
		appLog.Error("initial refresh incomplete", err)
	}

	sched := cron.New(cron.WithLocation(cfg.Location()))
	if _, err := sched.AddFunc(cfg.RefreshCron, func() { refresh(ctx, st) }); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", cfg.RefreshCron, err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	pool := worker.NewPool(worker.Options{Workers: cfg.Workers})
	defer func() {
		if err := pool.Close(); err != nil {
			appLog.Error("worker pool close failed", err)
		}
	}()

	err := web.NewServer(cfg, st, pool).Serve(ctx)
	appLog.Info("plantime exiting")
	return err
}

func refresh(ctx context.Context, st *store.Store) {
	if err := st.Refresh(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		appLog.Error("scheduled refresh incomplete", err)
	}
}
