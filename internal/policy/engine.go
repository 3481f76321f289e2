package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gatewarden/internal/audit"
	"gatewarden/internal/metrics"
	"gatewarden/internal/storage"
	"gatewarden/internal/utils"

	"go.uber.org/zap"
)

var ErrStorageIO = errors.New("storage failure")

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Detector interface {
	Score(ctx context.Context, ip string) float64
}

type countryResolver interface {
	Country(ip string) string
}

type MemberDirectory interface {
	MemberExists(guildID, userID string) bool
}

type RoleManager interface {
	ApplyVerified(guildID, userID string) error
	ApplyMute(guildID, userID string) error
}

type Notifier interface {
	Notify(ctx context.Context, alert Alert)
}

type Engine struct {
	mu       sync.Mutex
	store    *storage.Store
	auditLog *audit.Logger
	defaults storage.GuildSettings
	logger   *zap.Logger
	clock    Clock

	detector Detector
	members  MemberDirectory
	roles    RoleManager
	notifier Notifier
}

func NewEngine(store *storage.Store, auditLog *audit.Logger, defaults storage.GuildSettings, logger *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		auditLog: auditLog,
		defaults: defaults,
		logger:   logger,
		clock:    realClock{},
	}
}

func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
}

func (e *Engine) SetDetector(detector Detector) {
	e.detector = detector
}

func (e *Engine) SetMembers(members MemberDirectory) {
	e.members = members
}

func (e *Engine) SetRoles(roles RoleManager) {
	e.roles = roles
}

func (e *Engine) SetNotifier(notifier Notifier) {
	e.notifier = notifier
}

func (e *Engine) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	if sub.GuildID == "" || sub.UserID == "" {
		return Outcome{}, fmt.Errorf("submission missing guild or user id")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	settings, err := e.store.GetGuildSettings(ctx, sub.GuildID, e.defaults)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: load guild settings: %v", ErrStorageIO, err)
	}

	out := Outcome{GuildID: sub.GuildID, UserID: sub.UserID}

	listed, err := e.store.IsBlacklisted(ctx, sub.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: blacklist lookup: %v", ErrStorageIO, err)
	}
	if listed {
		out.Decision = DecisionBlacklisted
		out.Message = "You are blacklisted from the verification system. Contact an administrator if you believe this is an error."
		e.writeAudit(ctx, audit.LevelWarn, sub, "verify_blacklisted", "submission rejected for blacklisted user")
		return out, nil
	}

	if e.members != nil && !e.members.MemberExists(sub.GuildID, sub.UserID) {
		attempts, autoListed, err := e.recordFailure(ctx, sub, settings, "repeated failed verification attempts")
		if err != nil {
			return Outcome{}, err
		}
		out.Decision = DecisionRejectUnknownMember
		out.Attempts = attempts
		out.AutoBlacklisted = autoListed
		out.Message = "Your account was not found in the server. Join the server first, then verify again."
		e.writeAudit(ctx, audit.LevelWarn, sub, "verify_unknown_member", fmt.Sprintf("attempt %d of %d", attempts, settings.MaxAttempts))
		if autoListed {
			metrics.AutoBlacklistsTotal.WithLabelValues("unknown_member").Inc()
			e.notify(ctx, Alert{
				Decision:        DecisionRejectUnknownMember,
				GuildID:         sub.GuildID,
				UserID:          sub.UserID,
				Username:        sub.Username,
				Attempts:        attempts,
				MaxAttempts:     settings.MaxAttempts,
				AutoBlacklisted: true,
			})
		}
		return out, nil
	}

	ipHash := ""
	if sub.IP != "" {
		ipHash = utils.HashIP(sub.IP)
		banned, err := e.store.IsIPBanned(ctx, ipHash)
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: ip ban lookup: %v", ErrStorageIO, err)
		}
		if banned {
			out.Decision = DecisionRejectIPBanned
			out.Message = "This network address is banned from verification."
			e.writeAudit(ctx, audit.LevelWarn, sub, "verify_ip_banned", "submission from banned address "+ipHash)
			e.notify(ctx, Alert{
				Decision: DecisionRejectIPBanned,
				GuildID:  sub.GuildID,
				UserID:   sub.UserID,
				Username: sub.Username,
			})
			return out, nil
		}
	}

	if sub.HWID != "" {
		dup, err := e.store.FindDuplicateHWID(ctx, sub.HWID, sub.UserID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return Outcome{}, fmt.Errorf("%w: duplicate lookup: %v", ErrStorageIO, err)
		}
		if err == nil {
			attempts, autoListed, failErr := e.recordFailure(ctx, sub, settings, "duplicate hardware id")
			if failErr != nil {
				return Outcome{}, failErr
			}
			out.Decision = DecisionRejectDuplicate
			out.DuplicateOf = dup.UserID
			out.Attempts = attempts
			out.AutoBlacklisted = autoListed
			if autoListed {
				metrics.AutoBlacklistsTotal.WithLabelValues("duplicate").Inc()
			}
			out.Message = "This device is already linked to another account. A moderator has been notified."
			if e.roles != nil && settings.MuteRole != "" {
				if muteErr := e.roles.ApplyMute(sub.GuildID, sub.UserID); muteErr != nil {
					e.logger.Warn("mute on duplicate failed",
						zap.String("guild_id", sub.GuildID),
						zap.String("user_id", sub.UserID),
						zap.Error(muteErr))
				}
			}
			e.writeAudit(ctx, audit.LevelWarn, sub, "verify_duplicate", fmt.Sprintf("hwid shared with user %s, attempt %d of %d", dup.UserID, attempts, settings.MaxAttempts))
			e.notify(ctx, Alert{
				Decision:        DecisionRejectDuplicate,
				GuildID:         sub.GuildID,
				UserID:          sub.UserID,
				Username:        sub.Username,
				DuplicateOf:     dup.UserID,
				Attempts:        attempts,
				MaxAttempts:     settings.MaxAttempts,
				AutoBlacklisted: autoListed,
			})
			return out, nil
		}
	}

	score := sub.VPNScore
	if e.detector != nil && sub.IP != "" {
		if local := e.detector.Score(ctx, sub.IP); local > score {
			score = local
		}
	}
	out.VPNScore = score
	if settings.VPNDetection && score >= settings.VPNThreshold {
		out.Decision = DecisionRejectVPN
		out.Message = "A VPN or proxy connection was detected. Disable it and verify again."
		if settings.AutoBlacklistVPN {
			entry := storage.BlacklistEntry{
				UserID:  sub.UserID,
				Reason:  fmt.Sprintf("vpn score %.0f at or above threshold %.0f", score, settings.VPNThreshold),
				AddedBy: "auto",
			}
			if err := e.store.AddBlacklist(ctx, entry); err != nil {
				return Outcome{}, fmt.Errorf("%w: auto blacklist: %v", ErrStorageIO, err)
			}
			out.AutoBlacklisted = true
			metrics.AutoBlacklistsTotal.WithLabelValues("vpn").Inc()
			e.writeAudit(ctx, audit.LevelCrit, sub, "auto_blacklist", entry.Reason)
		}
		e.writeAudit(ctx, audit.LevelWarn, sub, "verify_vpn", fmt.Sprintf("score %.0f, threshold %.0f", score, settings.VPNThreshold))
		alert := Alert{
			Decision:        DecisionRejectVPN,
			GuildID:         sub.GuildID,
			UserID:          sub.UserID,
			Username:        sub.Username,
			VPNScore:        score,
			AutoBlacklisted: out.AutoBlacklisted,
		}
		if resolver, ok := e.detector.(countryResolver); ok {
			alert.Country = resolver.Country(sub.IP)
		}
		e.notify(ctx, alert)
		return out, nil
	}

	now := e.clock.Now()
	record := storage.VerificationRecord{
		UserID:      sub.UserID,
		HWID:        sub.HWID,
		IPRaw:       sub.IP,
		IPHash:      ipHash,
		Username:    sub.Username,
		DisplayName: sub.DisplayName,
		VerifiedAt:  &now,
	}
	if err := e.store.SaveVerified(ctx, record, sub.GuildID); err != nil {
		return Outcome{}, fmt.Errorf("%w: save record: %v", ErrStorageIO, err)
	}
	out.Decision = DecisionAccept
	out.RoleApplied = true
	out.Message = "Verification successful. Your roles have been updated."
	if e.roles != nil {
		if roleErr := e.roles.ApplyVerified(sub.GuildID, sub.UserID); roleErr != nil {
			out.RoleApplied = false
			e.logger.Warn("role grant failed",
				zap.String("guild_id", sub.GuildID),
				zap.String("user_id", sub.UserID),
				zap.Error(roleErr))
		}
	}
	alert := Alert{
		Decision:    DecisionAccept,
		GuildID:     sub.GuildID,
		UserID:      sub.UserID,
		Username:    sub.Username,
		DisplayName: sub.DisplayName,
		VPNScore:    score,
	}
	if attr, attrErr := e.store.GetInviteAttribution(ctx, sub.GuildID, sub.UserID); attrErr == nil {
		alert.InviterID = attr.InviterID
		alert.InviterName = attr.InviterName
		alert.InviteCode = attr.InviteCode
	}
	e.writeAudit(ctx, audit.LevelInfo, sub, "verify_accept", "verification record saved")
	e.notify(ctx, alert)
	return out, nil
}

func (e *Engine) recordFailure(ctx context.Context, sub Submission, settings storage.GuildSettings, reason string) (int, bool, error) {
	record := storage.VerificationRecord{
		UserID:      sub.UserID,
		HWID:        sub.HWID,
		IPRaw:       sub.IP,
		Username:    sub.Username,
		DisplayName: sub.DisplayName,
	}
	if sub.IP != "" {
		record.IPHash = utils.HashIP(sub.IP)
	}
	attempts, err := e.store.RecordFailedAttempt(ctx, record)
	if err != nil {
		return 0, false, fmt.Errorf("%w: record failed attempt: %v", ErrStorageIO, err)
	}
	if !settings.AutoBlacklist || attempts < settings.MaxAttempts {
		return attempts, false, nil
	}
	entry := storage.BlacklistEntry{
		UserID:  sub.UserID,
		Reason:  fmt.Sprintf("%s (%d failed attempts)", reason, attempts),
		AddedBy: "auto",
	}
	if err := e.store.AddBlacklist(ctx, entry); err != nil {
		return attempts, false, fmt.Errorf("%w: auto blacklist: %v", ErrStorageIO, err)
	}
	e.writeAudit(ctx, audit.LevelCrit, sub, "auto_blacklist", entry.Reason)
	return attempts, true, nil
}

func (e *Engine) notify(ctx context.Context, alert Alert) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, alert)
}

func (e *Engine) writeAudit(ctx context.Context, level string, sub Submission, event, details string) {
	if e.auditLog == nil {
		return
	}
	e.auditLog.Log(ctx, level, sub.GuildID, sub.UserID, event, details)
}
