package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type BlacklistEntry struct {
	UserID  string
	Reason  string
	AddedBy string
	AddedAt time.Time
}

type WhitelistEntry struct {
	UserID  string
	AddedBy string
	AddedAt time.Time
}

type IPBan struct {
	IPHash  string
	Reason  string
	AddedBy string
	AddedAt time.Time
}

func (s *Store) AddBlacklist(ctx context.Context, entry BlacklistEntry) error {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blacklist (user_id, reason, added_by, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			reason = excluded.reason,
			added_by = excluded.added_by,
			added_at = excluded.added_at
	`, entry.UserID, entry.Reason, entry.AddedBy, entry.AddedAt.Unix())
	return err
}

func (s *Store) RemoveBlacklist(ctx context.Context, userID string) (removed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM blacklist WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE verification_records SET failed_attempts = 0, updated_at = ? WHERE user_id = ?
	`, time.Now().Unix(), userID)
	if err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) IsBlacklisted(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blacklist WHERE user_id = ?`, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) GetBlacklistEntry(ctx context.Context, userID string) (BlacklistEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, reason, added_by, added_at FROM blacklist WHERE user_id = ?`, userID)
	var entry BlacklistEntry
	var addedAt int64
	if err := row.Scan(&entry.UserID, &entry.Reason, &entry.AddedBy, &addedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BlacklistEntry{}, ErrNotFound
		}
		return BlacklistEntry{}, err
	}
	entry.AddedAt = time.Unix(addedAt, 0)
	return entry, nil
}

func (s *Store) ListBlacklist(ctx context.Context) ([]BlacklistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, reason, added_by, added_at FROM blacklist ORDER BY added_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BlacklistEntry
	for rows.Next() {
		var entry BlacklistEntry
		var addedAt int64
		if err := rows.Scan(&entry.UserID, &entry.Reason, &entry.AddedBy, &addedAt); err != nil {
			return nil, err
		}
		entry.AddedAt = time.Unix(addedAt, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) ClearBlacklist(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blacklist`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Store) AddWhitelist(ctx context.Context, entry WhitelistEntry) error {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO whitelist (user_id, added_by, added_at) VALUES (?, ?, ?)
	`, entry.UserID, entry.AddedBy, entry.AddedAt.Unix())
	return err
}

func (s *Store) RemoveWhitelist(ctx context.Context, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM whitelist WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) IsWhitelisted(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM whitelist WHERE user_id = ?`, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListWhitelist(ctx context.Context) ([]WhitelistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, added_by, added_at FROM whitelist ORDER BY added_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []WhitelistEntry
	for rows.Next() {
		var entry WhitelistEntry
		var addedAt int64
		if err := rows.Scan(&entry.UserID, &entry.AddedBy, &addedAt); err != nil {
			return nil, err
		}
		entry.AddedAt = time.Unix(addedAt, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) AddIPBan(ctx context.Context, ban IPBan) error {
	if ban.AddedAt.IsZero() {
		ban.AddedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ip_bans (ip_hash, reason, added_by, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ip_hash) DO UPDATE SET
			reason = excluded.reason,
			added_by = excluded.added_by,
			added_at = excluded.added_at
	`, ban.IPHash, ban.Reason, ban.AddedBy, ban.AddedAt.Unix())
	return err
}

func (s *Store) RemoveIPBan(ctx context.Context, ipHash string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ip_bans WHERE ip_hash = ?`, ipHash)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) IsIPBanned(ctx context.Context, ipHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ip_bans WHERE ip_hash = ?`, ipHash).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListIPBans(ctx context.Context) ([]IPBan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ip_hash, reason, added_by, added_at FROM ip_bans ORDER BY added_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans []IPBan
	for rows.Next() {
		var ban IPBan
		var addedAt int64
		if err := rows.Scan(&ban.IPHash, &ban.Reason, &ban.AddedBy, &addedAt); err != nil {
			return nil, err
		}
		ban.AddedAt = time.Unix(addedAt, 0)
		bans = append(bans, ban)
	}
	return bans, rows.Err()
}
