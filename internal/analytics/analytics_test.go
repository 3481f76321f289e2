package analytics

import (
	"context"
	"testing"
	"time"

	"gatewarden/internal/storage"
)

type fixedCounter struct {
	tracked int
}

func (f fixedCounter) TrackedCodes(string) (int, bool) { return f.tracked, true }

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

func TestReport(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	if err := store.SaveVerified(context.Background(), storage.VerificationRecord{UserID: "u1", HWID: "hw1", IPHash: "h1", VerifiedAt: &now}, "g1"); err != nil {
		t.Fatalf("save verified: %v", err)
	}
	if err := store.AddBlacklist(context.Background(), storage.BlacklistEntry{UserID: "u2", Reason: "r", AddedBy: "admin"}); err != nil {
		t.Fatalf("add blacklist: %v", err)
	}
	if err := store.AddAuditLog(context.Background(), storage.AuditLog{GuildID: "g1", UserID: "u1", Level: "INFO", Event: "verify_accept", CreatedAt: now}); err != nil {
		t.Fatalf("add audit log: %v", err)
	}
	if err := store.AddAuditLog(context.Background(), storage.AuditLog{GuildID: "g1", UserID: "u2", Level: "WARN", Event: "verify_blacklisted", CreatedAt: now}); err != nil {
		t.Fatalf("add audit log: %v", err)
	}
	if err := store.SaveInviteAttribution(context.Background(), storage.InviteAttribution{GuildID: "g1", UserID: "u1", InviteCode: "abc", InviterID: "u9", InviterName: "ruth"}); err != nil {
		t.Fatalf("save attribution: %v", err)
	}

	defaults := storage.GuildSettings{MaxAttempts: 3, VPNThreshold: 75, AutoBlacklist: true, VPNDetection: true}
	svc := New(store, defaults)
	svc.SetInvites(fixedCounter{tracked: 4})

	report, err := svc.Report(context.Background(), "g1", 24*time.Hour)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Totals.Verified != 1 {
		t.Fatalf("expected 1 verified, got %d", report.Totals.Verified)
	}
	if report.Totals.Blacklisted != 1 {
		t.Fatalf("expected 1 blacklisted, got %d", report.Totals.Blacklisted)
	}
	if report.MaxAttempts != 3 || !report.AutoBlacklist || !report.VPNDetection {
		t.Fatalf("unexpected settings in report: %+v", report)
	}
	if report.TrackedInvites != 4 {
		t.Fatalf("expected 4 tracked invites, got %d", report.TrackedInvites)
	}
	if report.AuditTotal != 2 || report.AuditByLevel["WARN"] != 1 || report.AuditByLevel["INFO"] != 1 {
		t.Fatalf("unexpected audit breakdown: total=%d byLevel=%v", report.AuditTotal, report.AuditByLevel)
	}
	if len(report.TopInviters) != 1 || report.TopInviters[0].InviterID != "u9" {
		t.Fatalf("unexpected top inviters %+v", report.TopInviters)
	}
}

func TestReportWithoutInviteCounter(t *testing.T) {
	store := newTestStore(t)

	svc := New(store, storage.GuildSettings{MaxAttempts: 3})
	report, err := svc.Report(context.Background(), "g1", time.Hour)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.TrackedInvites != 0 {
		t.Fatalf("expected 0 tracked invites, got %d", report.TrackedInvites)
	}
}
