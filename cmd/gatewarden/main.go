package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gatewarden/internal/analytics"
	"gatewarden/internal/audit"
	"gatewarden/internal/bot"
	"gatewarden/internal/config"
	"gatewarden/internal/export"
	"gatewarden/internal/invites"
	"gatewarden/internal/policy"
	"gatewarden/internal/storage"
	"gatewarden/internal/tasks"
	"gatewarden/internal/token"
	"gatewarden/internal/vpn"
	"gatewarden/internal/webserver"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	defaults := guildDefaults(cfg)

	auditLogger := audit.NewLogger(store, logger)
	engine := policy.NewEngine(store, auditLogger, defaults, logger)

	detector := vpn.NewDetector(cfg.GeoIP.CountryDBPath, cfg.GeoIP.ASNDBPath, logger)
	defer detector.Close()
	engine.SetDetector(detector)

	var tokens *token.Manager
	if cfg.Ingest.Enabled {
		tokens, err = token.NewManager(cfg.LinkTokens.Secret, time.Duration(cfg.LinkTokens.TTLMinutes)*time.Minute)
		if err != nil {
			logger.Fatal("token manager init failed", zap.Error(err))
		}
	}

	tracker := invites.NewTracker(store, logger)
	analyticsService := analytics.New(store, defaults)
	exportService := export.New(store, defaults)

	botSvc, err := bot.New(cfg, defaults, store, engine, auditLogger, analyticsService, exportService, tokens, tracker, logger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}
	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return tasks.NewScheduler(store, exportService, tracker, cfg, logger).Run(groupCtx)
	})
	if cfg.Ingest.Enabled {
		group.Go(func() error {
			return webserver.New(cfg.Ingest, engine, tokens, logger).Run(groupCtx)
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("service error", zap.Error(err))
	}
	logger.Info("shutdown requested")
	if err := botSvc.Close(); err != nil {
		logger.Warn("discord close failed", zap.Error(err))
	}
}

func guildDefaults(cfg config.Config) storage.GuildSettings {
	return storage.GuildSettings{
		WebsiteURL:       cfg.Verification.WebsiteURL,
		MaxAttempts:      cfg.Verification.MaxAttempts,
		VPNThreshold:     cfg.Verification.VPNThreshold,
		AutoBlacklist:    cfg.Verification.AutoBlacklist,
		VPNDetection:     cfg.Verification.VPNDetection,
		AutoBlacklistVPN: cfg.Verification.AutoBlacklistVPN,
		AutoUnverified:   cfg.Verification.AutoUnverified,
		InviteTracking:   cfg.Invites.TrackingEnabled,
		RetentionDays:    cfg.RetentionDays,
	}
}
