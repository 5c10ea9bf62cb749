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

	"github.com/stride-lab/project-stride/internal/activity"
	"github.com/stride-lab/project-stride/internal/cache"
	corecfg "github.com/stride-lab/project-stride/internal/core/config"
	"github.com/stride-lab/project-stride/internal/core/storage/postgres"
	"github.com/stride-lab/project-stride/internal/inventory"
	"github.com/stride-lab/project-stride/internal/leaderboard"
	"github.com/stride-lab/project-stride/internal/migrations"
	"github.com/stride-lab/project-stride/internal/server"
	"github.com/stride-lab/project-stride/internal/settlement"
	"github.com/stride-lab/project-stride/internal/tiers"
)

func main() {
	configPath := flag.String("config", "stride.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	localTTL, topTTL, meTTL, err := cacheTTLs(cfg.Cache)
	if err != nil {
		slog.Error("Invalid cache TTL", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Reward Tier Config (hot-reloaded from disk)
	tierLoader, err := tiers.NewFileLoader(cfg.Rank.ConfigDir)
	if err != nil {
		slog.Error("Failed to load reward tier config", "dir", cfg.Rank.ConfigDir, "error", err)
		os.Exit(1)
	}
	defer tierLoader.Close()

	// 4. Initialize Cache (local tier + shared tier in Postgres)
	sharedCache := postgres.NewCacheAdapter(dbAdapter.DB())
	twoTier := cache.New(sharedCache, localTTL)

	// 5. Initialize Stores
	boards := postgres.NewBoardAdapter(dbAdapter.DB(), cfg.Database.NativeUpsert)
	ledger := postgres.NewGrantAdapter(dbAdapter.DB())
	daily := postgres.NewDailyAdapter(dbAdapter.DB())
	granter := inventory.NewService(postgres.NewInventoryAdapter(dbAdapter.DB()))

	// 6. Initialize Services
	resolver := leaderboard.NewResolver(boards, twoTier, topTTL, meTTL)
	activitySvc := activity.NewService(boards, daily, twoTier)
	settlementSvc := settlement.NewService(
		leaderboard.NewAuthoritativeReader(boards),
		ledger,
		tierLoader,
		granter,
	)

	// 7. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	activitySvc.RegisterRoutes(srv.Engine)
	resolver.RegisterRoutes(srv.Engine)
	settlementSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

func cacheTTLs(cfg corecfg.CacheConfig) (local, top, me time.Duration, err error) {
	if local, err = time.ParseDuration(cfg.LocalMaxTTL); err != nil {
		return 0, 0, 0, fmt.Errorf("cache.local_max_ttl: %w", err)
	}
	if top, err = time.ParseDuration(cfg.TopTTL); err != nil {
		return 0, 0, 0, fmt.Errorf("cache.top_ttl: %w", err)
	}
	if me, err = time.ParseDuration(cfg.MeTTL); err != nil {
		return 0, 0, 0, fmt.Errorf("cache.me_ttl: %w", err)
	}
	return local, top, me, nil
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
