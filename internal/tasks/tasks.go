package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gatewarden/internal/config"
	"gatewarden/internal/export"
	"gatewarden/internal/invites"
	"gatewarden/internal/metrics"
	"gatewarden/internal/storage"

	"go.uber.org/zap"
)

const (
	cleanupInterval  = 24 * time.Hour
	backupFilePrefix = "gatewarden-"
)

type Scheduler struct {
	store   *storage.Store
	exports *export.Service
	tracker *invites.Tracker
	cfg     config.Config
	logger  *zap.Logger
}

func NewScheduler(store *storage.Store, exports *export.Service, tracker *invites.Tracker, cfg config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		exports: exports,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	start := func(name string, interval time.Duration, job func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, name, interval, job)
		}()
	}

	start("retention_cleanup", cleanupInterval, s.RunCleanup)

	if s.tracker != nil && s.cfg.Invites.TrackingEnabled {
		poll := s.cfg.Invites.PollMinutes
		if poll <= 0 {
			poll = 10
		}
		start("invite_refresh", time.Duration(poll)*time.Minute, func(context.Context) error {
			s.tracker.Refresh()
			return nil
		})
	}

	if s.exports != nil && s.cfg.Backups.Enabled {
		hours := s.cfg.Backups.IntervalHours
		if hours <= 0 {
			hours = 24
		}
		start("backup", time.Duration(hours)*time.Hour, s.RunBackup)
	}

	wg.Wait()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	run := func() {
		metrics.TaskRunsTotal.WithLabelValues(name).Inc()
		if err := job(ctx); err != nil {
			metrics.TaskErrorsTotal.WithLabelValues(name).Inc()
			s.logger.Warn("task failed", zap.String("task", name), zap.Error(err))
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func (s *Scheduler) RunCleanup(ctx context.Context) error {
	retention := s.cfg.RetentionDays
	if retention <= 0 {
		retention = 90
	}
	cutoff := time.Now().Add(-time.Duration(retention) * 24 * time.Hour)

	purged, err := s.store.CleanupAuditLogs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup audit logs: %w", err)
	}
	reset, err := s.store.ResetStaleAttempts(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("reset stale attempts: %w", err)
	}
	if purged > 0 || reset > 0 {
		s.logger.Info("retention cleanup",
			zap.Int64("audit_purged", purged),
			zap.Int64("attempts_reset", reset),
			zap.Int("retention_days", retention),
		)
	}
	return nil
}

func (s *Scheduler) RunBackup(ctx context.Context) error {
	snapshot, err := s.exports.Full(ctx, "")
	if err != nil {
		return fmt.Errorf("build backup snapshot: %w", err)
	}
	data, err := export.Encode(snapshot)
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if err := os.MkdirAll(s.cfg.Backups.Dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("%s%s-%s.json", backupFilePrefix, time.Now().UTC().Format("20060102T150405"), snapshot.ExportID)
	path := filepath.Join(s.cfg.Backups.Dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	s.logger.Info("backup written", zap.String("path", path), zap.Int("bytes", len(data)))

	return s.pruneBackups()
}

func (s *Scheduler) pruneBackups() error {
	keep := s.cfg.Backups.Keep
	if keep <= 0 {
		return nil
	}

	entries, err := os.ReadDir(s.cfg.Backups.Dir)
	if err != nil {
		return fmt.Errorf("read backup dir: %w", err)
	}

	var backups []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, backupFilePrefix) && strings.HasSuffix(name, ".json") {
			backups = append(backups, name)
		}
	}
	if len(backups) <= keep {
		return nil
	}

	sort.Strings(backups)
	for _, name := range backups[:len(backups)-keep] {
		path := filepath.Join(s.cfg.Backups.Dir, name)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("prune backup failed", zap.String("path", path), zap.Error(err))
			continue
		}
		s.logger.Info("backup pruned", zap.String("path", path))
	}
	return nil
}
