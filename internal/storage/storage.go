package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrNotFound = errors.New("storage: not found")

type Store struct {
	db *sql.DB
}

type GuildSettings struct {
	GuildID             string
	VerificationChannel string
	InviteLogChannel    string
	LogChannel          string
	VerifiedRole        string
	UnverifiedRole      string
	AutoRole            string
	MuteRole            string
	StaffRole           string
	AdminIDs            []string
	WebsiteURL          string
	MaxAttempts         int
	VPNThreshold        float64
	AutoBlacklist       bool
	VPNDetection        bool
	AutoBlacklistVPN    bool
	InviteTracking      bool
	AutoRoleEnabled     bool
	AutoUnverified      bool
	RetentionDays       int
}

type AuditLog struct {
	ID        int64
	GuildID   string
	UserID    string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT verification_channel, invite_log_channel, log_channel,
		verified_role, unverified_role, auto_role, mute_role, staff_role,
		admin_ids, website_url, max_attempts, vpn_threshold,
		auto_blacklist, vpn_detection, auto_blacklist_vpn,
		invite_tracking, autorole_enabled, auto_unverified, retention_days
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	var adminIDs string
	var autoBlacklist, vpnDetection, autoBlacklistVPN, inviteTracking, autoRoleEnabled, autoUnverified int
	err := row.Scan(
		&result.VerificationChannel,
		&result.InviteLogChannel,
		&result.LogChannel,
		&result.VerifiedRole,
		&result.UnverifiedRole,
		&result.AutoRole,
		&result.MuteRole,
		&result.StaffRole,
		&adminIDs,
		&result.WebsiteURL,
		&result.MaxAttempts,
		&result.VPNThreshold,
		&autoBlacklist,
		&vpnDetection,
		&autoBlacklistVPN,
		&inviteTracking,
		&autoRoleEnabled,
		&autoUnverified,
		&result.RetentionDays,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	result.AdminIDs = splitIDs(adminIDs)
	result.AutoBlacklist = autoBlacklist == 1
	result.VPNDetection = vpnDetection == 1
	result.AutoBlacklistVPN = autoBlacklistVPN == 1
	result.InviteTracking = inviteTracking == 1
	result.AutoRoleEnabled = autoRoleEnabled == 1
	result.AutoUnverified = autoUnverified == 1
	if result.MaxAttempts <= 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.VPNThreshold <= 0 {
		result.VPNThreshold = defaults.VPNThreshold
	}
	if result.RetentionDays <= 0 {
		result.RetentionDays = defaults.RetentionDays
	}
	if result.WebsiteURL == "" {
		result.WebsiteURL = defaults.WebsiteURL
	}
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (
			guild_id, verification_channel, invite_log_channel, log_channel,
			verified_role, unverified_role, auto_role, mute_role, staff_role,
			admin_ids, website_url, max_attempts, vpn_threshold,
			auto_blacklist, vpn_detection, auto_blacklist_vpn,
			invite_tracking, autorole_enabled, auto_unverified, retention_days
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			verification_channel = excluded.verification_channel,
			invite_log_channel = excluded.invite_log_channel,
			log_channel = excluded.log_channel,
			verified_role = excluded.verified_role,
			unverified_role = excluded.unverified_role,
			auto_role = excluded.auto_role,
			mute_role = excluded.mute_role,
			staff_role = excluded.staff_role,
			admin_ids = excluded.admin_ids,
			website_url = excluded.website_url,
			max_attempts = excluded.max_attempts,
			vpn_threshold = excluded.vpn_threshold,
			auto_blacklist = excluded.auto_blacklist,
			vpn_detection = excluded.vpn_detection,
			auto_blacklist_vpn = excluded.auto_blacklist_vpn,
			invite_tracking = excluded.invite_tracking,
			autorole_enabled = excluded.autorole_enabled,
			auto_unverified = excluded.auto_unverified,
			retention_days = excluded.retention_days
	`,
		settings.GuildID,
		settings.VerificationChannel,
		settings.InviteLogChannel,
		settings.LogChannel,
		settings.VerifiedRole,
		settings.UnverifiedRole,
		settings.AutoRole,
		settings.MuteRole,
		settings.StaffRole,
		joinIDs(settings.AdminIDs),
		settings.WebsiteURL,
		settings.MaxAttempts,
		settings.VPNThreshold,
		boolToInt(settings.AutoBlacklist),
		boolToInt(settings.VPNDetection),
		boolToInt(settings.AutoBlacklistVPN),
		boolToInt(settings.InviteTracking),
		boolToInt(settings.AutoRoleEnabled),
		boolToInt(settings.AutoUnverified),
		settings.RetentionDays,
	)
	return err
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (guild_id, user_id, level, event, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.GuildID, log.UserID, log.Level, log.Event, log.Details, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, level, event, details, created_at
		FROM audit_logs
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var created int64
		if err := rows.Scan(&log.ID, &log.GuildID, &log.UserID, &log.Level, &log.Event, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupAuditLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func splitIDs(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
