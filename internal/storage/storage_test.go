package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestUpsertGuildSettings(t *testing.T) {
	store := newTestStore(t)

	settings := GuildSettings{
		GuildID:             "g1",
		VerificationChannel: "c1",
		VerifiedRole:        "r1",
		AdminIDs:            []string{"a1", "a2"},
		MaxAttempts:         4,
		VPNThreshold:        80,
		AutoBlacklist:       true,
		VPNDetection:        true,
		InviteTracking:      true,
		RetentionDays:       30,
	}

	if err := store.UpsertGuildSettings(context.Background(), settings); err != nil {
		t.Fatalf("upsert guild settings: %v", err)
	}

	settings.VerificationChannel = "c2"
	if err := store.UpsertGuildSettings(context.Background(), settings); err != nil {
		t.Fatalf("update guild settings: %v", err)
	}

	got, err := store.GetGuildSettings(context.Background(), "g1", GuildSettings{})
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.VerificationChannel != "c2" {
		t.Fatalf("expected channel c2, got %q", got.VerificationChannel)
	}
	if len(got.AdminIDs) != 2 || got.AdminIDs[0] != "a1" || got.AdminIDs[1] != "a2" {
		t.Fatalf("expected admin ids [a1 a2], got %v", got.AdminIDs)
	}
	if got.VPNThreshold != 80 {
		t.Fatalf("expected threshold 80, got %v", got.VPNThreshold)
	}
	if !got.AutoBlacklist || !got.VPNDetection || !got.InviteTracking {
		t.Fatalf("expected toggles preserved, got %+v", got)
	}
}

func TestGetGuildSettingsDefaults(t *testing.T) {
	store := newTestStore(t)

	defaults := GuildSettings{MaxAttempts: 3, VPNThreshold: 75, AutoBlacklist: true}
	got, err := store.GetGuildSettings(context.Background(), "missing", defaults)
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.GuildID != "missing" {
		t.Fatalf("expected guild id filled in, got %q", got.GuildID)
	}
	if got.MaxAttempts != 3 || got.VPNThreshold != 75 || !got.AutoBlacklist {
		t.Fatalf("expected defaults returned, got %+v", got)
	}
}

func TestSaveVerifiedAndGetRecord(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	record := VerificationRecord{
		UserID:      "u1",
		HWID:        "hw-1",
		IPRaw:       "203.0.113.7",
		IPHash:      "aabbccddeeff0011",
		Username:    "alice",
		DisplayName: "Alice",
		VerifiedAt:  &now,
	}
	if err := store.SaveVerified(context.Background(), record, "g1"); err != nil {
		t.Fatalf("save verified: %v", err)
	}
	if err := store.SaveVerified(context.Background(), record, "g2"); err != nil {
		t.Fatalf("save verified second guild: %v", err)
	}

	got, err := store.GetRecord(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !got.Verified() {
		t.Fatalf("expected verified record, got %+v", got)
	}
	if got.HWID != "hw-1" || got.IPHash != "aabbccddeeff0011" {
		t.Fatalf("unexpected record fields: %+v", got)
	}
	if len(got.GuildIDs) != 2 {
		t.Fatalf("expected 2 guilds, got %v", got.GuildIDs)
	}

	if _, err := store.GetRecord(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindDuplicateHWID(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	first := VerificationRecord{UserID: "u1", HWID: "shared", IPHash: "h1", VerifiedAt: &now}
	if err := store.SaveVerified(context.Background(), first, "g1"); err != nil {
		t.Fatalf("save first: %v", err)
	}

	dup, err := store.FindDuplicateHWID(context.Background(), "shared", "u2")
	if err != nil {
		t.Fatalf("find duplicate: %v", err)
	}
	if dup.UserID != "u1" {
		t.Fatalf("expected duplicate owner u1, got %q", dup.UserID)
	}

	if _, err := store.FindDuplicateHWID(context.Background(), "shared", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected own record excluded, got %v", err)
	}

	if err := store.RevokeRecord(context.Background(), "u1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.FindDuplicateHWID(context.Background(), "shared", "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected revoked record ignored, got %v", err)
	}
}

func TestRecordFailedAttempt(t *testing.T) {
	store := newTestStore(t)

	record := VerificationRecord{UserID: "u1", HWID: "hw-1", IPHash: "h1"}
	count, err := store.RecordFailedAttempt(context.Background(), record)
	if err != nil {
		t.Fatalf("record failed attempt: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	count, err = store.RecordFailedAttempt(context.Background(), record)
	if err != nil {
		t.Fatalf("second failed attempt: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	if err := store.ResetFailedAttempts(context.Background(), "u1"); err != nil {
		t.Fatalf("reset attempts: %v", err)
	}
	got, err := store.GetRecord(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.FailedAttempts != 0 {
		t.Fatalf("expected attempts reset, got %d", got.FailedAttempts)
	}
}

func TestFailedAttemptPreservesVerification(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	record := VerificationRecord{UserID: "u1", HWID: "hw-1", IPHash: "h1", VerifiedAt: &now}
	if err := store.SaveVerified(context.Background(), record, "g1"); err != nil {
		t.Fatalf("save verified: %v", err)
	}

	if _, err := store.RecordFailedAttempt(context.Background(), record); err != nil {
		t.Fatalf("record failed attempt: %v", err)
	}

	got, err := store.GetRecord(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !got.Verified() {
		t.Fatalf("expected verification preserved after failed attempt")
	}
	if got.FailedAttempts != 1 {
		t.Fatalf("expected 1 failed attempt, got %d", got.FailedAttempts)
	}
}

func TestRevokeRecord(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	record := VerificationRecord{UserID: "u1", HWID: "hw-1", IPHash: "h1", VerifiedAt: &now}
	if err := store.SaveVerified(context.Background(), record, "g1"); err != nil {
		t.Fatalf("save verified: %v", err)
	}

	if err := store.RevokeRecord(context.Background(), "u1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	got, err := store.GetRecord(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get record after revoke: %v", err)
	}
	if got.RevokedAt == nil {
		t.Fatalf("expected revoked_at set")
	}
	if got.Verified() {
		t.Fatalf("expected revoked record to report unverified")
	}

	if err := store.RevokeRecord(context.Background(), "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double revoke, got %v", err)
	}
}

func TestBlacklistRoundTrip(t *testing.T) {
	store := newTestStore(t)

	entry := BlacklistEntry{UserID: "u1", Reason: "duplicate hardware", AddedBy: "admin"}
	if err := store.AddBlacklist(context.Background(), entry); err != nil {
		t.Fatalf("add blacklist: %v", err)
	}

	listed, err := store.IsBlacklisted(context.Background(), "u1")
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if !listed {
		t.Fatalf("expected u1 blacklisted")
	}

	got, err := store.GetBlacklistEntry(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get blacklist entry: %v", err)
	}
	if got.Reason != "duplicate hardware" || got.AddedBy != "admin" {
		t.Fatalf("unexpected entry: %+v", got)
	}

	removed, err := store.RemoveBlacklist(context.Background(), "u1")
	if err != nil {
		t.Fatalf("remove blacklist: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal to report true")
	}
	removed, err = store.RemoveBlacklist(context.Background(), "u1")
	if err != nil {
		t.Fatalf("remove blacklist again: %v", err)
	}
	if removed {
		t.Fatalf("expected second removal to report false")
	}
}

func TestRemoveBlacklistResetsAttempts(t *testing.T) {
	store := newTestStore(t)

	record := VerificationRecord{UserID: "u1", HWID: "hw-1", IPHash: "h1"}
	for i := 0; i < 3; i++ {
		if _, err := store.RecordFailedAttempt(context.Background(), record); err != nil {
			t.Fatalf("record failed attempt: %v", err)
		}
	}
	if err := store.AddBlacklist(context.Background(), BlacklistEntry{UserID: "u1", Reason: "too many attempts", AddedBy: "auto"}); err != nil {
		t.Fatalf("add blacklist: %v", err)
	}

	if _, err := store.RemoveBlacklist(context.Background(), "u1"); err != nil {
		t.Fatalf("remove blacklist: %v", err)
	}

	got, err := store.GetRecord(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.FailedAttempts != 0 {
		t.Fatalf("expected attempts reset on unblacklist, got %d", got.FailedAttempts)
	}
}

func TestWhitelistRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if err := store.AddWhitelist(context.Background(), WhitelistEntry{UserID: "u1", AddedBy: "admin"}); err != nil {
		t.Fatalf("add whitelist: %v", err)
	}
	if err := store.AddWhitelist(context.Background(), WhitelistEntry{UserID: "u1", AddedBy: "other"}); err != nil {
		t.Fatalf("re-add whitelist: %v", err)
	}

	listed, err := store.IsWhitelisted(context.Background(), "u1")
	if err != nil {
		t.Fatalf("is whitelisted: %v", err)
	}
	if !listed {
		t.Fatalf("expected u1 whitelisted")
	}

	entries, err := store.ListWhitelist(context.Background())
	if err != nil {
		t.Fatalf("list whitelist: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	removed, err := store.RemoveWhitelist(context.Background(), "u1")
	if err != nil {
		t.Fatalf("remove whitelist: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal to report true")
	}
}

func TestIPBans(t *testing.T) {
	store := newTestStore(t)

	if err := store.AddIPBan(context.Background(), IPBan{IPHash: "h1", Reason: "abuse", AddedBy: "admin"}); err != nil {
		t.Fatalf("add ip ban: %v", err)
	}

	banned, err := store.IsIPBanned(context.Background(), "h1")
	if err != nil {
		t.Fatalf("is ip banned: %v", err)
	}
	if !banned {
		t.Fatalf("expected h1 banned")
	}

	banned, err = store.IsIPBanned(context.Background(), "h2")
	if err != nil {
		t.Fatalf("is ip banned: %v", err)
	}
	if banned {
		t.Fatalf("expected h2 not banned")
	}

	removed, err := store.RemoveIPBan(context.Background(), "h1")
	if err != nil {
		t.Fatalf("remove ip ban: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal to report true")
	}
}

func TestInviteAttributions(t *testing.T) {
	store := newTestStore(t)

	attr := InviteAttribution{
		GuildID:     "g1",
		UserID:      "u1",
		InviteCode:  "abc123",
		InviterID:   "inv1",
		InviterName: "carol",
	}
	if err := store.SaveInviteAttribution(context.Background(), attr); err != nil {
		t.Fatalf("save attribution: %v", err)
	}
	attr.UserID = "u2"
	if err := store.SaveInviteAttribution(context.Background(), attr); err != nil {
		t.Fatalf("save second attribution: %v", err)
	}
	if err := store.SaveInviteAttribution(context.Background(), InviteAttribution{
		GuildID: "g1", UserID: "u3", InviteCode: "zzz", InviterID: "inv2", InviterName: "dan",
	}); err != nil {
		t.Fatalf("save third attribution: %v", err)
	}

	got, err := store.GetInviteAttribution(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("get attribution: %v", err)
	}
	if got.InviterID != "inv1" || got.InviteCode != "abc123" {
		t.Fatalf("unexpected attribution: %+v", got)
	}

	top, err := store.TopInviters(context.Background(), "g1", 5)
	if err != nil {
		t.Fatalf("top inviters: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 inviters, got %d", len(top))
	}
	if top[0].InviterID != "inv1" || top[0].Joins != 2 {
		t.Fatalf("expected inv1 with 2 joins first, got %+v", top[0])
	}

	if _, err := store.GetInviteAttribution(context.Background(), "g1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTotals(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	if err := store.SaveVerified(context.Background(), VerificationRecord{UserID: "u1", HWID: "hw1", IPHash: "h1", VerifiedAt: &now}, "g1"); err != nil {
		t.Fatalf("save verified: %v", err)
	}
	if err := store.SaveVerified(context.Background(), VerificationRecord{UserID: "u2", HWID: "hw2", IPHash: "h2", VerifiedAt: &now}, "g1"); err != nil {
		t.Fatalf("save verified: %v", err)
	}
	if err := store.RevokeRecord(context.Background(), "u2"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.RecordFailedAttempt(context.Background(), VerificationRecord{UserID: "u3", HWID: "hw3", IPHash: "h3"}); err != nil {
		t.Fatalf("record failed attempt: %v", err)
	}
	if err := store.AddBlacklist(context.Background(), BlacklistEntry{UserID: "u4", Reason: "r", AddedBy: "admin"}); err != nil {
		t.Fatalf("add blacklist: %v", err)
	}

	totals, err := store.Totals(context.Background())
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Verified != 1 {
		t.Fatalf("expected 1 verified, got %d", totals.Verified)
	}
	if totals.Revoked != 1 {
		t.Fatalf("expected 1 revoked, got %d", totals.Revoked)
	}
	if totals.Pending != 1 {
		t.Fatalf("expected 1 pending, got %d", totals.Pending)
	}
	if totals.Blacklisted != 1 {
		t.Fatalf("expected 1 blacklisted, got %d", totals.Blacklisted)
	}
	if totals.FailedAttempts != 1 {
		t.Fatalf("expected 1 failed attempt, got %d", totals.FailedAttempts)
	}
}

func TestUsersByIPHash(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	for _, userID := range []string{"u1", "u2"} {
		record := VerificationRecord{UserID: userID, HWID: "hw-" + userID, IPHash: "shared", VerifiedAt: &now}
		if err := store.SaveVerified(context.Background(), record, "g1"); err != nil {
			t.Fatalf("save verified: %v", err)
		}
	}
	if err := store.SaveVerified(context.Background(), VerificationRecord{UserID: "u3", HWID: "hw3", IPHash: "other", VerifiedAt: &now}, "g1"); err != nil {
		t.Fatalf("save verified: %v", err)
	}

	records, err := store.UsersByIPHash(context.Background(), "shared")
	if err != nil {
		t.Fatalf("users by ip hash: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].UserID != "u1" || records[1].UserID != "u2" {
		t.Fatalf("unexpected records %+v", records)
	}

	records, err = store.UsersByIPHash(context.Background(), "")
	if err != nil || records != nil {
		t.Fatalf("expected empty result for empty hash, got %v %v", records, err)
	}
}

func TestResetStaleAttempts(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.RecordFailedAttempt(context.Background(), VerificationRecord{UserID: "u1", HWID: "hw1", IPHash: "h1"}); err != nil {
		t.Fatalf("record failed attempt: %v", err)
	}

	n, err := store.ResetStaleAttempts(context.Background(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("reset stale attempts: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reset, got %d", n)
	}

	got, err := store.GetRecord(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.FailedAttempts != 0 {
		t.Fatalf("expected attempts cleared, got %d", got.FailedAttempts)
	}
}

func TestAuditLogs(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	if err := store.AddAuditLog(context.Background(), AuditLog{
		GuildID: "g1", Level: "INFO", Event: "verify_accept", UserID: "u1", Details: "ok", CreatedAt: now,
	}); err != nil {
		t.Fatalf("add audit log: %v", err)
	}
	if err := store.AddAuditLog(context.Background(), AuditLog{
		GuildID: "g1", Level: "WARN", Event: "verify_duplicate", UserID: "u2", Details: "hwid match", CreatedAt: now,
	}); err != nil {
		t.Fatalf("add audit log: %v", err)
	}
	if err := store.AddAuditLog(context.Background(), AuditLog{
		GuildID: "g1", Level: "INFO", Event: "old_event", UserID: "u3", CreatedAt: now.Add(-48 * time.Hour),
	}); err != nil {
		t.Fatalf("add audit log: %v", err)
	}

	logs, err := store.ListAuditLogs(context.Background(), "g1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs inside the window, got %d", len(logs))
	}
	if logs[0].Level != "INFO" && logs[0].Level != "WARN" {
		t.Fatalf("unexpected log %+v", logs[0])
	}

	n, err := store.CleanupAuditLogs(context.Background(), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("cleanup audit logs: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 old log deleted, got %d", n)
	}
}
