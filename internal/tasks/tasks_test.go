package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gatewarden/internal/config"
	"gatewarden/internal/export"
	"gatewarden/internal/storage"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestRunCleanupPurgesOldAuditLogs(t *testing.T) {
	store := newTestStore(t)

	old := time.Now().Add(-100 * 24 * time.Hour)
	if err := store.AddAuditLog(context.Background(), storage.AuditLog{GuildID: "g1", UserID: "u1", Level: "INFO", Event: "verify_accept", CreatedAt: old}); err != nil {
		t.Fatalf("add audit log: %v", err)
	}
	if err := store.AddAuditLog(context.Background(), storage.AuditLog{GuildID: "g1", UserID: "u2", Level: "WARN", Event: "verify_duplicate", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("add audit log: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.RetentionDays = 90
	scheduler := NewScheduler(store, nil, nil, cfg, zap.NewNop())

	if err := scheduler.RunCleanup(context.Background()); err != nil {
		t.Fatalf("run cleanup: %v", err)
	}

	logs, err := store.ListAuditLogs(context.Background(), "g1", time.Now().Add(-200*24*time.Hour))
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 surviving log, got %d", len(logs))
	}
	if logs[0].Event != "verify_duplicate" {
		t.Fatalf("wrong log survived: %+v", logs[0])
	}
}

func TestRunBackupWritesAndPrunes(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	if err := store.SaveVerified(context.Background(), storage.VerificationRecord{UserID: "u1", HWID: "hw1", IPHash: "h1", VerifiedAt: &now}, "g1"); err != nil {
		t.Fatalf("save verified: %v", err)
	}

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Backups.Enabled = true
	cfg.Backups.Dir = dir
	cfg.Backups.Keep = 2

	defaults := storage.GuildSettings{MaxAttempts: 3, VPNThreshold: 75, RetentionDays: 90}
	scheduler := NewScheduler(store, export.New(store, defaults), nil, cfg, zap.NewNop())

	for i := 0; i < 3; i++ {
		if err := scheduler.RunBackup(context.Background()); err != nil {
			t.Fatalf("run backup %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var backups []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "gatewarden-") && strings.HasSuffix(entry.Name(), ".json") {
			backups = append(backups, entry.Name())
		}
	}
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups after prune, got %d: %v", len(backups), backups)
	}

	data, err := os.ReadFile(filepath.Join(dir, backups[0]))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, `"export_type": "full"`) || !strings.Contains(body, `"u1"`) {
		t.Fatalf("unexpected backup contents:\n%s", body)
	}
}

func TestRunReturnsWhenContextCanceled(t *testing.T) {
	store := newTestStore(t)

	cfg := config.DefaultConfig()
	cfg.Backups.Enabled = false
	cfg.Invites.TrackingEnabled = false
	scheduler := NewScheduler(store, nil, nil, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop after context cancel")
	}
}
