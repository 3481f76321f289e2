package analytics

import (
	"context"
	"time"

	"gatewarden/internal/storage"
)

type InviteCounter interface {
	TrackedCodes(guildID string) (int, bool)
}

type Service struct {
	store    *storage.Store
	defaults storage.GuildSettings
	invites  InviteCounter
}

func New(store *storage.Store, defaults storage.GuildSettings) *Service {
	return &Service{store: store, defaults: defaults}
}

func (s *Service) SetInvites(counter InviteCounter) {
	s.invites = counter
}

type Report struct {
	Totals         storage.Totals
	MaxAttempts    int
	AutoBlacklist  bool
	VPNDetection   bool
	VPNThreshold   float64
	TrackedInvites int
	TopInviters    []storage.InviterCount
	AuditTotal     int
	AuditByLevel   map[string]int
	Window         time.Duration
}

func (s *Service) Report(ctx context.Context, guildID string, window time.Duration) (Report, error) {
	settings, err := s.store.GetGuildSettings(ctx, guildID, s.defaults)
	if err != nil {
		return Report{}, err
	}
	totals, err := s.store.Totals(ctx)
	if err != nil {
		return Report{}, err
	}
	inviters, err := s.store.TopInviters(ctx, guildID, 5)
	if err != nil {
		return Report{}, err
	}
	logs, err := s.store.ListAuditLogs(ctx, guildID, time.Now().Add(-window))
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Totals:        totals,
		MaxAttempts:   settings.MaxAttempts,
		AutoBlacklist: settings.AutoBlacklist,
		VPNDetection:  settings.VPNDetection,
		VPNThreshold:  settings.VPNThreshold,
		TopInviters:   inviters,
		AuditByLevel:  make(map[string]int),
		Window:        window,
	}
	if s.invites != nil {
		if tracked, ok := s.invites.TrackedCodes(guildID); ok {
			report.TrackedInvites = tracked
		}
	}
	for _, log := range logs {
		report.AuditTotal++
		report.AuditByLevel[log.Level]++
	}
	return report, nil
}
