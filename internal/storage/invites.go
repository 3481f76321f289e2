package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type InviteAttribution struct {
	GuildID     string
	UserID      string
	InviteCode  string
	InviterID   string
	InviterName string
	JoinedAt    time.Time
}

type InviterCount struct {
	InviterID   string
	InviterName string
	Joins       int
}

func (s *Store) SaveInviteAttribution(ctx context.Context, attr InviteAttribution) error {
	if attr.JoinedAt.IsZero() {
		attr.JoinedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invite_attributions (guild_id, user_id, invite_code, inviter_id, inviter_name, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			invite_code = excluded.invite_code,
			inviter_id = excluded.inviter_id,
			inviter_name = excluded.inviter_name,
			joined_at = excluded.joined_at
	`, attr.GuildID, attr.UserID, attr.InviteCode, attr.InviterID, attr.InviterName, attr.JoinedAt.Unix())
	return err
}

func (s *Store) GetInviteAttribution(ctx context.Context, guildID, userID string) (InviteAttribution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, invite_code, inviter_id, inviter_name, joined_at
		FROM invite_attributions WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)

	var attr InviteAttribution
	var joinedAt int64
	err := row.Scan(&attr.GuildID, &attr.UserID, &attr.InviteCode, &attr.InviterID, &attr.InviterName, &joinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return InviteAttribution{}, ErrNotFound
		}
		return InviteAttribution{}, err
	}
	attr.JoinedAt = time.Unix(joinedAt, 0)
	return attr, nil
}

func (s *Store) ListInviteAttributions(ctx context.Context, guildID string) ([]InviteAttribution, error) {
	query := `
		SELECT guild_id, user_id, invite_code, inviter_id, inviter_name, joined_at
		FROM invite_attributions ORDER BY joined_at DESC`
	args := []any{}
	if guildID != "" {
		query = `
		SELECT guild_id, user_id, invite_code, inviter_id, inviter_name, joined_at
		FROM invite_attributions WHERE guild_id = ? ORDER BY joined_at DESC`
		args = append(args, guildID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attrs []InviteAttribution
	for rows.Next() {
		var attr InviteAttribution
		var joinedAt int64
		if err := rows.Scan(&attr.GuildID, &attr.UserID, &attr.InviteCode, &attr.InviterID, &attr.InviterName, &joinedAt); err != nil {
			return nil, err
		}
		attr.JoinedAt = time.Unix(joinedAt, 0)
		attrs = append(attrs, attr)
	}
	return attrs, rows.Err()
}

func (s *Store) TopInviters(ctx context.Context, guildID string, limit int) ([]InviterCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT inviter_id, MAX(inviter_name), COUNT(*) AS joins
		FROM invite_attributions
		WHERE guild_id = ? AND inviter_id != ''
		GROUP BY inviter_id
		ORDER BY joins DESC
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []InviterCount
	for rows.Next() {
		var count InviterCount
		if err := rows.Scan(&count.InviterID, &count.InviterName, &count.Joins); err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}
