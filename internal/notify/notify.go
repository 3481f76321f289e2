package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gatewarden/internal/config"
	"gatewarden/internal/policy"
	"gatewarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	maxAdminMentions = 10
	aggregateWindow  = 10 * time.Minute
)

type alertAggregate struct {
	channelID string
	messageID string
	count     int
	lastAt    time.Time
}

type Dispatcher struct {
	session  *discordgo.Session
	store    *storage.Store
	defaults storage.GuildSettings
	cfg      config.NotifyConfig
	logger   *zap.Logger

	aggMu sync.Mutex
	agg   map[string]*alertAggregate
}

func NewDispatcher(session *discordgo.Session, store *storage.Store, defaults storage.GuildSettings, cfg config.NotifyConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		session:  session,
		store:    store,
		defaults: defaults,
		cfg:      cfg,
		logger:   logger,
		agg:      make(map[string]*alertAggregate),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, alert policy.Alert) {
	settings, err := d.store.GetGuildSettings(ctx, alert.GuildID, d.defaults)
	if err != nil {
		d.logger.Warn("load settings for notification", zap.String("guild_id", alert.GuildID), zap.Error(err))
		return
	}
	if alert.Decision == policy.DecisionAccept {
		d.sendSuccess(alert, settings)
		return
	}
	d.sendAlert(alert, settings)
}

func (d *Dispatcher) sendSuccess(alert policy.Alert, settings storage.GuildSettings) {
	if d.session == nil {
		return
	}
	if settings.VerificationChannel != "" {
		embed := SuccessEmbed(alert, d.cfg.EmbedColors)
		if _, err := d.session.ChannelMessageSendEmbed(settings.VerificationChannel, embed); err != nil {
			d.logger.Warn("send success notification", zap.String("guild_id", alert.GuildID), zap.Error(err))
		}
	}
	if d.cfg.DMOnSuccess {
		d.DM(alert.UserID, "You have been verified and now have access to the server.")
	}
}

func (d *Dispatcher) sendAlert(alert policy.Alert, settings storage.GuildSettings) {
	if d.session == nil {
		return
	}
	channelID := settings.VerificationChannel
	if channelID == "" {
		channelID = settings.LogChannel
	}
	if channelID == "" {
		return
	}

	key := alert.GuildID + "|" + alert.UserID + "|" + string(alert.Decision)

	d.aggMu.Lock()
	agg := d.agg[key]
	if agg != nil && agg.channelID == channelID && time.Since(agg.lastAt) <= aggregateWindow {
		agg.count++
		agg.lastAt = time.Now()
		count := agg.count
		messageID := agg.messageID
		d.aggMu.Unlock()
		embed := AlertEmbed(alert, d.cfg.EmbedColors, count)
		if _, err := d.session.ChannelMessageEditEmbed(channelID, messageID, embed); err == nil {
			return
		}
		d.aggMu.Lock()
		delete(d.agg, key)
	}
	d.aggMu.Unlock()

	embed := AlertEmbed(alert, d.cfg.EmbedColors, 1)
	send := &discordgo.MessageSend{
		Content: AdminMentionLine(settings.AdminIDs, settings.StaffRole),
		Embed:   embed,
	}
	msg, err := d.session.ChannelMessageSendComplex(channelID, send)
	if err != nil || msg == nil {
		d.logger.Warn("send alert", zap.String("guild_id", alert.GuildID), zap.Error(err))
		return
	}
	d.aggMu.Lock()
	d.agg[key] = &alertAggregate{channelID: channelID, messageID: msg.ID, count: 1, lastAt: time.Now()}
	d.aggMu.Unlock()
}

func (d *Dispatcher) AdminAlert(ctx context.Context, guildID string, embed *discordgo.MessageEmbed) {
	if d.session == nil || embed == nil {
		return
	}
	settings, err := d.store.GetGuildSettings(ctx, guildID, d.defaults)
	if err != nil {
		d.logger.Warn("load settings for admin alert", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	channelID := settings.VerificationChannel
	if channelID == "" {
		channelID = settings.LogChannel
	}
	if channelID == "" {
		return
	}
	send := &discordgo.MessageSend{
		Content: AdminMentionLine(settings.AdminIDs, settings.StaffRole),
		Embed:   embed,
	}
	if _, err := d.session.ChannelMessageSendComplex(channelID, send); err != nil {
		d.logger.Warn("send admin alert", zap.String("guild_id", guildID), zap.Error(err))
	}
}

func (d *Dispatcher) ForwardAudit(ctx context.Context, entry storage.AuditLog) {
	if d.session == nil {
		return
	}
	if entry.Level != "WARN" && entry.Level != "CRIT" {
		return
	}
	settings, err := d.store.GetGuildSettings(ctx, entry.GuildID, d.defaults)
	if err != nil || settings.LogChannel == "" {
		return
	}
	color := d.cfg.EmbedColors.Warning
	if entry.Level == "CRIT" {
		color = d.cfg.EmbedColors.Error
	}
	embed := &discordgo.MessageEmbed{
		Title:     "Audit event",
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Level", Value: entry.Level, Inline: true},
			{Name: "Event", Value: entry.Event, Inline: true},
			{Name: "User", Value: "<@" + entry.UserID + ">", Inline: true},
			{Name: "Details", Value: entry.Details, Inline: false},
		},
	}
	if _, err := d.session.ChannelMessageSendEmbed(settings.LogChannel, embed); err != nil {
		d.logger.Warn("forward audit event", zap.String("guild_id", entry.GuildID), zap.Error(err))
	}
}

func (d *Dispatcher) DM(userID, content string) {
	if d.session == nil || userID == "" || content == "" {
		return
	}
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return
	}
	_, _ = d.session.ChannelMessageSend(channel.ID, content)
}

func AdminMentionLine(adminIDs []string, staffRole string) string {
	if len(adminIDs) == 0 {
		if staffRole != "" {
			return "<@&" + staffRole + ">"
		}
		return ""
	}
	mentions := make([]string, 0, maxAdminMentions)
	for i, id := range adminIDs {
		if i == maxAdminMentions {
			break
		}
		mentions = append(mentions, "<@"+id+">")
	}
	line := strings.Join(mentions, " ")
	if omitted := len(adminIDs) - maxAdminMentions; omitted > 0 {
		line += fmt.Sprintf(" (%d more admins not mentioned)", omitted)
	}
	return line
}

func SuccessEmbed(alert policy.Alert, colors config.EmbedColors) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Member verified",
		Description: fmt.Sprintf("<@%s> completed verification.", alert.UserID),
		Color:       colors.Success,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if alert.Username != "" {
		value := alert.Username
		if alert.DisplayName != "" && alert.DisplayName != alert.Username {
			value += " (" + alert.DisplayName + ")"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Member", Value: value, Inline: true})
	}
	inviter := "Unknown"
	if alert.InviterID != "" {
		inviter = fmt.Sprintf("<@%s> (`%s`)", alert.InviterID, alert.InviteCode)
	} else if alert.InviterName != "" {
		inviter = fmt.Sprintf("%s (`%s`)", alert.InviterName, alert.InviteCode)
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Invited by", Value: inviter, Inline: true})
	return embed
}

func AlertEmbed(alert policy.Alert, colors config.EmbedColors, count int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Color:     colors.Warning,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	switch alert.Decision {
	case policy.DecisionRejectDuplicate:
		embed.Title = "Duplicate hardware detected"
		embed.Description = fmt.Sprintf("<@%s> submitted a device already linked to <@%s>. Review required.", alert.UserID, alert.DuplicateOf)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Attempts", Value: fmt.Sprintf("%d of %d", alert.Attempts, alert.MaxAttempts), Inline: true,
		})
	case policy.DecisionRejectVPN:
		embed.Title = "VPN or proxy detected"
		embed.Description = fmt.Sprintf("<@%s> attempted to verify through a VPN or proxy.", alert.UserID)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Score", Value: fmt.Sprintf("%.0f", alert.VPNScore), Inline: true,
		})
		if alert.Country != "" {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name: "Country", Value: alert.Country, Inline: true,
			})
		}
	case policy.DecisionRejectUnknownMember:
		embed.Title = "Verification attempts from outside the server"
		embed.Description = fmt.Sprintf("User <@%s> keeps submitting verification requests without being a member.", alert.UserID)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Attempts", Value: fmt.Sprintf("%d of %d", alert.Attempts, alert.MaxAttempts), Inline: true,
		})
	case policy.DecisionRejectIPBanned:
		embed.Title = "Banned network address"
		embed.Color = colors.Error
		embed.Description = fmt.Sprintf("<@%s> attempted to verify from a banned network address.", alert.UserID)
	default:
		embed.Title = "Verification alert"
		embed.Description = fmt.Sprintf("<@%s> triggered a verification alert.", alert.UserID)
	}
	if alert.AutoBlacklisted {
		embed.Color = colors.Error
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Auto-blacklist", Value: "Failed-attempt limit reached. The user was blacklisted automatically.", Inline: false,
		})
	}
	if count > 1 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Occurrences", Value: fmt.Sprintf("%d in the last 10 minutes", count), Inline: true,
		})
	}
	return embed
}
