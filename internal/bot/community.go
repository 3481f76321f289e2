package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"gatewarden/internal/audit"
	"gatewarden/internal/storage"
	"gatewarden/internal/utils"
)

const statsWindow = 7 * 24 * time.Hour

func (b *Bot) handleVerification(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, _ []*discordgo.ApplicationCommandInteractionDataOption) {
	user := interactionUser(interaction)
	settings := b.guildSettings(ctx, interaction.GuildID)
	if settings.WebsiteURL == "" || settings.VerificationChannel == "" || b.tokens == nil {
		respondEmbed(session, interaction, b.errorEmbed("Verification is not configured for this server yet. Ask an administrator to run /config."), true)
		return
	}

	signed, err := b.tokens.Mint(user.ID, interaction.GuildID)
	if err != nil {
		b.logger.Error("mint verification token",
			zap.String("user_id", user.ID),
			zap.Error(err))
		respondEmbed(session, interaction, b.errorEmbed("Could not create a verification link. Try again in a moment."), true)
		return
	}
	link := utils.AppendQuery(settings.WebsiteURL, map[string]string{"token": signed})

	embed := commandEmbed("Server verification",
		fmt.Sprintf("Open the link below to verify your device and unlock %s. The link is personal, do not share it.", guildName(session, interaction.GuildID)),
		b.cfg.Notifications.EmbedColors.Info,
		[]*discordgo.MessageEmbedField{
			{Name: "Verification link", Value: link},
			{Name: "Expires in", Value: fmt.Sprintf("%d minutes", int(b.tokens.TTL().Minutes())), Inline: true},
		})
	respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleUserinfo(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	target := options[0].UserValue(session)
	if target == nil {
		respondEmbed(session, interaction, b.errorEmbed("Pick a member to inspect."), true)
		return
	}

	var fields []*discordgo.MessageEmbedField
	record, err := b.store.GetRecord(ctx, target.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Verification", Value: "No record", Inline: true})
	case err != nil:
		b.logger.Error("load verification record",
			zap.String("user_id", target.ID),
			zap.Error(err))
		respondEmbed(session, interaction, b.errorEmbed("Could not load the verification record."), true)
		return
	default:
		status := "Pending"
		switch {
		case record.Verified():
			status = "Verified " + record.VerifiedAt.UTC().Format("2006-01-02 15:04")
		case record.RevokedAt != nil:
			status = "Revoked " + record.RevokedAt.UTC().Format("2006-01-02 15:04")
		}
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Verification", Value: status, Inline: true},
			&discordgo.MessageEmbedField{Name: "Failed attempts", Value: strconv.Itoa(record.FailedAttempts), Inline: true},
		)
		if record.HWID != "" {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Hardware ID", Value: truncateID(record.HWID), Inline: true})
		}
		if record.IPHash != "" {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Network hash", Value: record.IPHash, Inline: true})
		}
	}

	if entry, err := b.store.GetBlacklistEntry(ctx, target.ID); err == nil {
		value := entry.Reason
		if entry.AddedBy != "" && entry.AddedBy != "auto" {
			value = fmt.Sprintf("%s (by <@%s>)", entry.Reason, entry.AddedBy)
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Blacklisted", Value: value})
	}
	if whitelisted, err := b.store.IsWhitelisted(ctx, target.ID); err == nil && whitelisted {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Export whitelist", Value: "Yes", Inline: true})
	}
	if attr, err := b.store.GetInviteAttribution(ctx, interaction.GuildID, target.ID); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Invited by",
			Value: fmt.Sprintf("%s (`%s`) on %s", inviterRef(attr), attr.InviteCode, attr.JoinedAt.UTC().Format("2006-01-02")),
		})
	}

	embed := commandEmbed("User info", fmt.Sprintf("<@%s>", target.ID), b.cfg.Notifications.EmbedColors.Info, fields)
	respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, _ []*discordgo.ApplicationCommandInteractionDataOption) {
	report, err := b.analytics.Report(ctx, interaction.GuildID, statsWindow)
	if err != nil {
		b.logger.Error("build stats report",
			zap.String("guild_id", interaction.GuildID),
			zap.Error(err))
		respondEmbed(session, interaction, b.errorEmbed("Could not build the statistics report."), true)
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Verified", Value: strconv.Itoa(report.Totals.Verified), Inline: true},
		{Name: "Pending", Value: strconv.Itoa(report.Totals.Pending), Inline: true},
		{Name: "Revoked", Value: strconv.Itoa(report.Totals.Revoked), Inline: true},
		{Name: "Blacklisted", Value: strconv.Itoa(report.Totals.Blacklisted), Inline: true},
		{Name: "Whitelisted", Value: strconv.Itoa(report.Totals.Whitelisted), Inline: true},
		{Name: "IP bans", Value: strconv.Itoa(report.Totals.IPBans), Inline: true},
		{Name: "Failed attempts", Value: strconv.Itoa(report.Totals.FailedAttempts), Inline: true},
		{Name: "Attributed joins", Value: strconv.Itoa(report.Totals.Attributions), Inline: true},
		{Name: "Tracked invites", Value: strconv.Itoa(report.TrackedInvites), Inline: true},
	}

	policyLine := fmt.Sprintf("%d attempts before auto-blacklist", report.MaxAttempts)
	if !report.AutoBlacklist {
		policyLine = "auto-blacklist off"
	}
	if report.VPNDetection {
		policyLine += fmt.Sprintf(", VPN threshold %.0f", report.VPNThreshold)
	} else {
		policyLine += ", VPN detection off"
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "Policy", Value: policyLine})

	if report.AuditTotal > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Audit events (7 days)",
			Value: fmt.Sprintf("%d total, %d WARN, %d CRIT",
				report.AuditTotal,
				report.AuditByLevel[audit.LevelWarn],
				report.AuditByLevel[audit.LevelCrit]),
		})
	}
	if len(report.TopInviters) > 0 {
		lines := make([]string, 0, len(report.TopInviters))
		for i, inviter := range report.TopInviters {
			name := inviter.InviterName
			if name == "" && inviter.InviterID != "" {
				name = "<@" + inviter.InviterID + ">"
			}
			if name == "" {
				name = "Unknown"
			}
			lines = append(lines, fmt.Sprintf("%d. %s (%d joins)", i+1, name, inviter.Joins))
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Top inviters", Value: strings.Join(lines, "\n")})
	}

	embed := commandEmbed("Verification statistics", "", b.cfg.Notifications.EmbedColors.Info, fields)
	respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleInvites(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	sub := options[0]
	switch sub.Name {
	case "status":
		settings := b.guildSettings(ctx, interaction.GuildID)
		state := "disabled"
		if settings.InviteTracking {
			state = "enabled"
		}
		tracked, snapshotted := 0, false
		if b.tracker != nil {
			tracked, snapshotted = b.tracker.TrackedCodes(interaction.GuildID)
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Tracking", Value: state, Inline: true},
			{Name: "Tracked codes", Value: strconv.Itoa(tracked), Inline: true},
		}
		if !snapshotted {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Snapshot", Value: "No invite snapshot for this server yet"})
		}
		if top, err := b.store.TopInviters(ctx, interaction.GuildID, 5); err == nil && len(top) > 0 {
			lines := make([]string, 0, len(top))
			for i, inviter := range top {
				name := inviter.InviterName
				if name == "" && inviter.InviterID != "" {
					name = "<@" + inviter.InviterID + ">"
				}
				if name == "" {
					name = "Unknown"
				}
				lines = append(lines, fmt.Sprintf("%d. %s (%d joins)", i+1, name, inviter.Joins))
			}
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Top inviters", Value: strings.Join(lines, "\n")})
		}
		respondEmbed(session, interaction, commandEmbed("Invite tracking", "", b.cfg.Notifications.EmbedColors.Info, fields), true)

	case "lookup":
		if len(sub.Options) == 0 {
			return
		}
		target := sub.Options[0].UserValue(session)
		if target == nil {
			respondEmbed(session, interaction, b.errorEmbed("Pick a member to look up."), true)
			return
		}
		attr, err := b.store.GetInviteAttribution(ctx, interaction.GuildID, target.ID)
		if errors.Is(err, storage.ErrNotFound) {
			respondEmbed(session, interaction, commandEmbed("Invite lookup",
				fmt.Sprintf("No invite attribution recorded for <@%s>.", target.ID),
				b.cfg.Notifications.EmbedColors.Info, nil), true)
			return
		}
		if err != nil {
			respondEmbed(session, interaction, b.errorEmbed("Could not load the invite attribution."), true)
			return
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Invite code", Value: "`" + attr.InviteCode + "`", Inline: true},
			{Name: "Invited by", Value: inviterRef(attr), Inline: true},
			{Name: "Joined", Value: attr.JoinedAt.UTC().Format("2006-01-02 15:04"), Inline: true},
		}
		respondEmbed(session, interaction, commandEmbed("Invite lookup", fmt.Sprintf("<@%s>", target.ID), b.cfg.Notifications.EmbedColors.Info, fields), true)
	}
}

func (b *Bot) handleHelp(_ context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, _ []*discordgo.ApplicationCommandInteractionDataOption) {
	var everyone, staff, owner []string
	for _, cmd := range b.commands {
		line := fmt.Sprintf("`/%s` %s", cmd.definition.Name, cmd.definition.Description)
		switch cmd.tier {
		case TierOwner:
			owner = append(owner, line)
		case TierEveryone:
			everyone = append(everyone, line)
		default:
			staff = append(staff, line)
		}
	}
	sort.Strings(everyone)
	sort.Strings(staff)
	sort.Strings(owner)
	fields := []*discordgo.MessageEmbedField{
		{Name: "Member commands", Value: strings.Join(everyone, "\n")},
		{Name: "Staff commands", Value: strings.Join(staff, "\n")},
		{Name: "Owner commands", Value: strings.Join(owner, "\n")},
	}
	embed := commandEmbed("Command overview",
		"Quick start: set a verification channel with /config channel, point /config website at your verification page, pick roles with /config roles, then members run /verification.",
		b.cfg.Notifications.EmbedColors.Info, fields)
	respondEmbed(session, interaction, embed, true)
}
