package storage

import "context"

type Totals struct {
	Verified       int
	Revoked        int
	Pending        int
	Blacklisted    int
	Whitelisted    int
	IPBans         int
	Attributions   int
	FailedAttempts int
}

func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM verification_records WHERE verified_at IS NOT NULL AND revoked_at IS NULL", &t.Verified},
		{"SELECT COUNT(*) FROM verification_records WHERE revoked_at IS NOT NULL", &t.Revoked},
		{"SELECT COUNT(*) FROM verification_records WHERE verified_at IS NULL AND revoked_at IS NULL", &t.Pending},
		{"SELECT COUNT(*) FROM blacklist", &t.Blacklisted},
		{"SELECT COUNT(*) FROM whitelist", &t.Whitelisted},
		{"SELECT COUNT(*) FROM ip_bans", &t.IPBans},
		{"SELECT COUNT(*) FROM invite_attributions", &t.Attributions},
		{"SELECT COALESCE(SUM(failed_attempts), 0) FROM verification_records", &t.FailedAttempts},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return Totals{}, err
		}
	}
	return t, nil
}
