package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type VerificationRecord struct {
	UserID         string
	HWID           string
	IPRaw          string
	IPHash         string
	Username       string
	DisplayName    string
	VerifiedAt     *time.Time
	FailedAttempts int
	RevokedAt      *time.Time
	UpdatedAt      time.Time
	GuildIDs       []string
}

func (r VerificationRecord) Verified() bool {
	return r.VerifiedAt != nil && r.RevokedAt == nil
}

func (s *Store) GetRecord(ctx context.Context, userID string) (VerificationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, hwid, ip_raw, ip_hash, username, display_name,
		verified_at, failed_attempts, revoked_at, updated_at
		FROM verification_records WHERE user_id = ?`, userID)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VerificationRecord{}, ErrNotFound
		}
		return VerificationRecord{}, err
	}

	guilds, err := s.recordGuilds(ctx, userID)
	if err != nil {
		return VerificationRecord{}, err
	}
	record.GuildIDs = guilds
	return record, nil
}

func (s *Store) FindDuplicateHWID(ctx context.Context, hwid, excludeUserID string) (VerificationRecord, error) {
	if hwid == "" {
		return VerificationRecord{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, hwid, ip_raw, ip_hash, username, display_name,
		verified_at, failed_attempts, revoked_at, updated_at
		FROM verification_records
		WHERE hwid = ? AND user_id != ? AND revoked_at IS NULL
		ORDER BY user_id
		LIMIT 1`, hwid, excludeUserID)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VerificationRecord{}, ErrNotFound
		}
		return VerificationRecord{}, err
	}
	return record, nil
}

func (s *Store) SaveVerified(ctx context.Context, record VerificationRecord, guildID string) (err error) {
	if record.VerifiedAt == nil {
		now := time.Now()
		record.VerifiedAt = &now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO verification_records (
			user_id, hwid, ip_raw, ip_hash, username, display_name,
			verified_at, failed_attempts, revoked_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			hwid = excluded.hwid,
			ip_raw = excluded.ip_raw,
			ip_hash = excluded.ip_hash,
			username = excluded.username,
			display_name = excluded.display_name,
			verified_at = excluded.verified_at,
			failed_attempts = 0,
			revoked_at = NULL,
			updated_at = excluded.updated_at
	`, record.UserID, record.HWID, record.IPRaw, record.IPHash,
		record.Username, record.DisplayName, record.VerifiedAt.Unix(), record.VerifiedAt.Unix())
	if err != nil {
		return err
	}

	if guildID != "" {
		_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO record_guilds (user_id, guild_id) VALUES (?, ?)`, record.UserID, guildID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) RecordFailedAttempt(ctx context.Context, record VerificationRecord) (int, error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	row := tx.QueryRowContext(ctx, `SELECT failed_attempts FROM verification_records WHERE user_id = ?`, record.UserID)
	scanErr := row.Scan(&count)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return 0, err
	}
	count++

	_, err = tx.ExecContext(ctx, `
		INSERT INTO verification_records (
			user_id, hwid, ip_raw, ip_hash, username, display_name,
			verified_at, failed_attempts, revoked_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, NULL, ?, NULL, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			hwid = excluded.hwid,
			ip_raw = excluded.ip_raw,
			ip_hash = excluded.ip_hash,
			username = excluded.username,
			display_name = excluded.display_name,
			failed_attempts = ?,
			updated_at = excluded.updated_at
	`, record.UserID, record.HWID, record.IPRaw, record.IPHash,
		record.Username, record.DisplayName, count, now.Unix(), count)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ResetFailedAttempts(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE verification_records SET failed_attempts = 0, updated_at = ? WHERE user_id = ?
	`, time.Now().Unix(), userID)
	return err
}

func (s *Store) RevokeRecord(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE verification_records SET revoked_at = ?, updated_at = ?
		WHERE user_id = ? AND revoked_at IS NULL
	`, time.Now().Unix(), time.Now().Unix(), userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context) ([]VerificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, hwid, ip_raw, ip_hash, username, display_name,
		verified_at, failed_attempts, revoked_at, updated_at
		FROM verification_records ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []VerificationRecord
	index := make(map[string]int)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		index[record.UserID] = len(records)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	guildRows, err := s.db.QueryContext(ctx, `SELECT user_id, guild_id FROM record_guilds ORDER BY user_id, guild_id`)
	if err != nil {
		return nil, err
	}
	defer guildRows.Close()

	for guildRows.Next() {
		var userID, guildID string
		if err := guildRows.Scan(&userID, &guildID); err != nil {
			return nil, err
		}
		if i, ok := index[userID]; ok {
			records[i].GuildIDs = append(records[i].GuildIDs, guildID)
		}
	}
	return records, guildRows.Err()
}

func (s *Store) UsersByIPHash(ctx context.Context, ipHash string) ([]VerificationRecord, error) {
	if ipHash == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, hwid, ip_raw, ip_hash, username, display_name,
		verified_at, failed_attempts, revoked_at, updated_at
		FROM verification_records WHERE ip_hash = ? ORDER BY user_id`, ipHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []VerificationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) ResetStaleAttempts(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE verification_records SET failed_attempts = 0, updated_at = ?
		WHERE failed_attempts > 0 AND verified_at IS NULL AND updated_at < ?
	`, time.Now().Unix(), cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Store) recordGuilds(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT guild_id FROM record_guilds WHERE user_id = ? ORDER BY guild_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guilds []string
	for rows.Next() {
		var guildID string
		if err := rows.Scan(&guildID); err != nil {
			return nil, err
		}
		guilds = append(guilds, guildID)
	}
	return guilds, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (VerificationRecord, error) {
	var record VerificationRecord
	var verifiedAt, revokedAt sql.NullInt64
	var updatedAt int64
	err := row.Scan(
		&record.UserID,
		&record.HWID,
		&record.IPRaw,
		&record.IPHash,
		&record.Username,
		&record.DisplayName,
		&verifiedAt,
		&record.FailedAttempts,
		&revokedAt,
		&updatedAt,
	)
	if err != nil {
		return VerificationRecord{}, err
	}
	if verifiedAt.Valid {
		value := time.Unix(verifiedAt.Int64, 0)
		record.VerifiedAt = &value
	}
	if revokedAt.Valid {
		value := time.Unix(revokedAt.Int64, 0)
		record.RevokedAt = &value
	}
	record.UpdatedAt = time.Unix(updatedAt, 0)
	return record, nil
}
