package export

import (
	"context"
	"encoding/json"
	"time"

	"gatewarden/internal/storage"

	"github.com/google/uuid"
)

const (
	TypeFull   = "full"
	TypeHashed = "hashed"
)

type Service struct {
	store    *storage.Store
	defaults storage.GuildSettings
}

func New(store *storage.Store, defaults storage.GuildSettings) *Service {
	return &Service{store: store, defaults: defaults}
}

type Record struct {
	UserID         string     `json:"user_id"`
	HWID           string     `json:"hwid"`
	IPRaw          string     `json:"ip_raw,omitempty"`
	IPHash         string     `json:"ip_hash"`
	Username       string     `json:"username,omitempty"`
	DisplayName    string     `json:"display_name,omitempty"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
	FailedAttempts int        `json:"failed_attempts"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	Guilds         []string   `json:"guilds,omitempty"`
}

type BlacklistEntry struct {
	UserID  string    `json:"user_id"`
	Reason  string    `json:"reason"`
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

type WhitelistEntry struct {
	UserID  string    `json:"user_id"`
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

type Attribution struct {
	UserID      string    `json:"user_id"`
	InviteCode  string    `json:"invite_code"`
	InviterID   string    `json:"inviter_id"`
	InviterName string    `json:"inviter_name,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

type Totals struct {
	Verified       int `json:"verified"`
	Revoked        int `json:"revoked"`
	Pending        int `json:"pending"`
	Blacklisted    int `json:"blacklisted"`
	Whitelisted    int `json:"whitelisted"`
	IPBans         int `json:"ip_bans"`
	Attributions   int `json:"attributions"`
	FailedAttempts int `json:"failed_attempts"`
}

type Settings struct {
	MaxAttempts   int     `json:"max_attempts"`
	VPNThreshold  float64 `json:"vpn_threshold"`
	AutoBlacklist bool    `json:"auto_blacklist"`
	VPNDetection  bool    `json:"vpn_detection"`
	RetentionDays int     `json:"retention_days"`
}

type Snapshot struct {
	ExportedAt   time.Time        `json:"exported_at"`
	ExportID     string           `json:"export_id"`
	ExportType   string           `json:"export_type"`
	Totals       Totals           `json:"totals"`
	Records      []Record         `json:"records"`
	Blacklist    []BlacklistEntry `json:"blacklist,omitempty"`
	Whitelist    []WhitelistEntry `json:"whitelist,omitempty"`
	Attributions []Attribution    `json:"attributions,omitempty"`
	Settings     *Settings        `json:"settings,omitempty"`
}

func (s *Service) Full(ctx context.Context, guildID string) (Snapshot, error) {
	snapshot, err := s.base(ctx, TypeFull, true)
	if err != nil {
		return Snapshot{}, err
	}

	blacklist, err := s.store.ListBlacklist(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, entry := range blacklist {
		snapshot.Blacklist = append(snapshot.Blacklist, BlacklistEntry{
			UserID:  entry.UserID,
			Reason:  entry.Reason,
			AddedBy: entry.AddedBy,
			AddedAt: entry.AddedAt,
		})
	}

	whitelist, err := s.store.ListWhitelist(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, entry := range whitelist {
		snapshot.Whitelist = append(snapshot.Whitelist, WhitelistEntry{
			UserID:  entry.UserID,
			AddedBy: entry.AddedBy,
			AddedAt: entry.AddedAt,
		})
	}

	attributions, err := s.store.ListInviteAttributions(ctx, guildID)
	if err != nil {
		return Snapshot{}, err
	}
	for _, attribution := range attributions {
		snapshot.Attributions = append(snapshot.Attributions, Attribution{
			UserID:      attribution.UserID,
			InviteCode:  attribution.InviteCode,
			InviterID:   attribution.InviterID,
			InviterName: attribution.InviterName,
			JoinedAt:    attribution.JoinedAt,
		})
	}

	settings, err := s.store.GetGuildSettings(ctx, guildID, s.defaults)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Settings = &Settings{
		MaxAttempts:   settings.MaxAttempts,
		VPNThreshold:  settings.VPNThreshold,
		AutoBlacklist: settings.AutoBlacklist,
		VPNDetection:  settings.VPNDetection,
		RetentionDays: settings.RetentionDays,
	}
	return snapshot, nil
}

func (s *Service) Hashed(ctx context.Context) (Snapshot, error) {
	return s.base(ctx, TypeHashed, false)
}

func (s *Service) base(ctx context.Context, exportType string, includeRawIP bool) (Snapshot, error) {
	records, err := s.store.ListRecords(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	totals, err := s.store.Totals(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		ExportedAt: time.Now().UTC(),
		ExportID:   uuid.NewString(),
		ExportType: exportType,
		Totals: Totals{
			Verified:       totals.Verified,
			Revoked:        totals.Revoked,
			Pending:        totals.Pending,
			Blacklisted:    totals.Blacklisted,
			Whitelisted:    totals.Whitelisted,
			IPBans:         totals.IPBans,
			Attributions:   totals.Attributions,
			FailedAttempts: totals.FailedAttempts,
		},
		Records: make([]Record, 0, len(records)),
	}
	for _, record := range records {
		exported := Record{
			UserID:         record.UserID,
			HWID:           record.HWID,
			IPHash:         record.IPHash,
			Username:       record.Username,
			DisplayName:    record.DisplayName,
			VerifiedAt:     record.VerifiedAt,
			FailedAttempts: record.FailedAttempts,
			RevokedAt:      record.RevokedAt,
			Guilds:         record.GuildIDs,
		}
		if includeRawIP {
			exported.IPRaw = record.IPRaw
		}
		snapshot.Records = append(snapshot.Records, exported)
	}
	return snapshot, nil
}

func Encode(snapshot Snapshot) ([]byte, error) {
	return json.MarshalIndent(snapshot, "", "  ")
}
