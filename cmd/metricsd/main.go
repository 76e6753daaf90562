package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsboard/metricsd/internal/config"
	"github.com/opsboard/metricsd/internal/core/rules"
	"github.com/opsboard/metricsd/internal/core/storage/postgres"
	"github.com/opsboard/metricsd/internal/migrations"
	"github.com/opsboard/metricsd/internal/refresh"
	"github.com/opsboard/metricsd/internal/rollup"
	"github.com/opsboard/metricsd/internal/server"
)

func main() {
	configPath := flag.String("config", "metricsd.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Metrics.Location()
	if err != nil {
		slog.Error("Invalid timezone", "error", err)
		os.Exit(1)
	}
	refreshInterval, err := time.ParseDuration(cfg.Metrics.RefreshInterval)
	if err != nil {
		slog.Error("Invalid refresh interval", "value", cfg.Metrics.RefreshInterval, "error", err)
		os.Exit(1)
	}

	// Rule-sets and display layout: authored configuration, loaded once.
	ruleRepo, err := rules.NewFileSystemRuleSetRepository(cfg.Metrics.RuleDir)
	if err != nil {
		slog.Error("Failed to load metric rule-sets", "error", err)
		os.Exit(1)
	}
	ruleSets := ruleRepo.RuleSets()
	if cfg.Metrics.RequireRuleSets && len(ruleSets) == 0 {
		slog.Error("No metric rule-sets found", "dir", cfg.Metrics.RuleDir)
		os.Exit(1)
	}
	layout, err := rollup.LoadLayout(cfg.Metrics.LayoutPath)
	if err != nil {
		slog.Error("Failed to load display layout", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded metric configuration",
		"rule_sets", len(ruleSets),
		"display_items", len(layout.Items),
		"timezone", loc.String(),
	)

	// Storage.
	db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Run(db, cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	snapshots, err := postgres.NewSnapshotAdapter(db)
	if err != nil {
		slog.Error("Failed to initialize snapshot store", "error", err)
		os.Exit(1)
	}
	defer snapshots.Close()
	sourceRows := postgres.NewSourceRowAdapter(db)

	// Engine wiring.
	runner := refresh.NewRunner(ruleSets, sourceRows, snapshots)
	scheduler := refresh.NewScheduler(refreshInterval, runner, snapshots, loc)

	refreshSvc := refresh.NewService(runner, loc)
	reportSvc := rollup.NewService(layout, snapshots, loc)

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), db, cfg.Server.Mode)
	refreshSvc.RegisterRoutes(srv.Engine)
	reportSvc.RegisterRoutes(srv.Engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Scheduled {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Periodic refresh disabled by config")
	}

	if cfg.Metrics.ListenChannel != "" {
		listener := refresh.NewListener(cfg.Database.DSN, cfg.Metrics.ListenChannel, runner, loc)
		go func() {
			if err := listener.Start(ctx); err != nil {
				slog.Error("Listener stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Refresh listener disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
