package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"gatewarden/internal/audit"
	"gatewarden/internal/export"
	"gatewarden/internal/storage"
	"gatewarden/internal/utils"
)

const listDisplayCap = 15

func (b *Bot) handleConfig(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	sub := options[0]
	settings := b.guildSettings(ctx, interaction.GuildID)
	settings.GuildID = interaction.GuildID

	switch sub.Name {
	case "view":
		b.respondConfigView(session, interaction, settings)
		return
	case "channel":
		for _, opt := range sub.Options {
			channel := opt.ChannelValue(session)
			if channel == nil {
				continue
			}
			switch opt.Name {
			case "verification":
				settings.VerificationChannel = channel.ID
			case "log":
				settings.LogChannel = channel.ID
			case "invite_log":
				settings.InviteLogChannel = channel.ID
			}
		}
	case "website":
		normalized, _, err := utils.NormalizeURL(sub.Options[0].StringValue())
		if err != nil {
			respondEmbed(session, interaction, b.errorEmbed("That does not look like a valid URL."), true)
			return
		}
		settings.WebsiteURL = normalized
	case "roles":
		for _, opt := range sub.Options {
			role := opt.RoleValue(session, interaction.GuildID)
			if role == nil {
				continue
			}
			switch opt.Name {
			case "verified":
				settings.VerifiedRole = role.ID
			case "unverified":
				settings.UnverifiedRole = role.ID
			case "mute":
				settings.MuteRole = role.ID
			case "staff":
				settings.StaffRole = role.ID
			}
		}
	case "toggles":
		for _, opt := range sub.Options {
			value := opt.BoolValue()
			switch opt.Name {
			case "auto_blacklist":
				settings.AutoBlacklist = value
			case "vpn_detection":
				settings.VPNDetection = value
			case "auto_blacklist_vpn":
				settings.AutoBlacklistVPN = value
			case "invite_tracking":
				settings.InviteTracking = value
			case "auto_unverified":
				settings.AutoUnverified = value
			}
		}
	case "limits":
		for _, opt := range sub.Options {
			switch opt.Name {
			case "max_attempts":
				value := int(opt.IntValue())
				if value < 1 {
					respondEmbed(session, interaction, b.errorEmbed("max_attempts must be at least 1."), true)
					return
				}
				settings.MaxAttempts = value
			case "vpn_threshold":
				value := opt.FloatValue()
				if value < 0 || value > 100 {
					respondEmbed(session, interaction, b.errorEmbed("vpn_threshold must be between 0 and 100."), true)
					return
				}
				settings.VPNThreshold = value
			case "retention_days":
				value := int(opt.IntValue())
				if value < 1 {
					respondEmbed(session, interaction, b.errorEmbed("retention_days must be at least 1."), true)
					return
				}
				settings.RetentionDays = value
			}
		}
	case "admins":
		var action string
		var target *discordgo.User
		for _, opt := range sub.Options {
			switch opt.Name {
			case "action":
				action = opt.StringValue()
			case "user":
				target = opt.UserValue(session)
			}
		}
		if target == nil {
			respondEmbed(session, interaction, b.errorEmbed("Pick a user to add or remove."), true)
			return
		}
		switch action {
		case "add":
			for _, id := range settings.AdminIDs {
				if id == target.ID {
					respondEmbed(session, interaction, commandEmbed("Settings unchanged",
						fmt.Sprintf("<@%s> is already on the admin list.", target.ID),
						b.cfg.Notifications.EmbedColors.Info, nil), true)
					return
				}
			}
			settings.AdminIDs = append(settings.AdminIDs, target.ID)
		case "remove":
			filtered := make([]string, 0, len(settings.AdminIDs))
			for _, id := range settings.AdminIDs {
				if id != target.ID {
					filtered = append(filtered, id)
				}
			}
			settings.AdminIDs = filtered
		default:
			return
		}
	default:
		return
	}

	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.logger.Error("save guild settings",
			zap.String("guild_id", interaction.GuildID),
			zap.Error(err))
		respondEmbed(session, interaction, b.errorEmbed("Could not save the settings."), true)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, interactionUser(interaction).ID, "config_update", "section "+sub.Name)
	respondEmbed(session, interaction, commandEmbed("Settings updated",
		fmt.Sprintf("Updated the %s settings.", sub.Name),
		b.cfg.Notifications.EmbedColors.Success, nil), true)
}

func (b *Bot) respondConfigView(session *discordgo.Session, interaction *discordgo.InteractionCreate, settings storage.GuildSettings) {
	autorole := "disabled"
	if settings.AutoRole != "" {
		autorole = roleRef(settings.AutoRole)
		if !settings.AutoRoleEnabled {
			autorole += " (disabled)"
		}
	}
	admins := "none"
	if len(settings.AdminIDs) > 0 {
		mentions := make([]string, 0, len(settings.AdminIDs))
		for _, id := range settings.AdminIDs {
			mentions = append(mentions, "<@"+id+">")
		}
		admins = strings.Join(mentions, " ")
	}
	website := settings.WebsiteURL
	if website == "" {
		website = "not set"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Verification channel", Value: channelRef(settings.VerificationChannel), Inline: true},
		{Name: "Log channel", Value: channelRef(settings.LogChannel), Inline: true},
		{Name: "Invite log channel", Value: channelRef(settings.InviteLogChannel), Inline: true},
		{Name: "Website", Value: website},
		{Name: "Verified role", Value: roleRef(settings.VerifiedRole), Inline: true},
		{Name: "Unverified role", Value: roleRef(settings.UnverifiedRole), Inline: true},
		{Name: "Mute role", Value: roleRef(settings.MuteRole), Inline: true},
		{Name: "Staff role", Value: roleRef(settings.StaffRole), Inline: true},
		{Name: "Auto role", Value: autorole, Inline: true},
		{Name: "Limits", Value: fmt.Sprintf("%d attempts, VPN threshold %.0f, retention %d days",
			settings.MaxAttempts, settings.VPNThreshold, settings.RetentionDays)},
		{Name: "Toggles", Value: toggleSummary(settings)},
		{Name: "Extra admins", Value: admins},
	}
	respondEmbed(session, interaction, commandEmbed("Server settings", "", b.cfg.Notifications.EmbedColors.Info, fields), true)
}

func toggleSummary(settings storage.GuildSettings) string {
	line := func(name string, on bool) string {
		if on {
			return name + ": on"
		}
		return name + ": off"
	}
	return strings.Join([]string{
		line("auto_blacklist", settings.AutoBlacklist),
		line("vpn_detection", settings.VPNDetection),
		line("auto_blacklist_vpn", settings.AutoBlacklistVPN),
		line("invite_tracking", settings.InviteTracking),
		line("auto_unverified", settings.AutoUnverified),
	}, "\n")
}

func (b *Bot) handleBlacklist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	sub := options[0]
	invoker := interactionUser(interaction)

	switch sub.Name {
	case "add":
		var target *discordgo.User
		reason := "manually blacklisted"
		for _, opt := range sub.Options {
			switch opt.Name {
			case "user":
				target = opt.UserValue(session)
			case "reason":
				reason = opt.StringValue()
			}
		}
		if target == nil {
			respondEmbed(session, interaction, b.errorEmbed("Pick a user to blacklist."), true)
			return
		}
		entry := storage.BlacklistEntry{UserID: target.ID, Reason: reason, AddedBy: invoker.ID}
		if err := b.store.AddBlacklist(ctx, entry); err != nil {
			b.logger.Error("add blacklist entry",
				zap.String("user_id", target.ID),
				zap.Error(err))
			respondEmbed(session, interaction, b.errorEmbed("Could not update the blacklist."), true)
			return
		}
		b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, target.ID, "blacklist_add", fmt.Sprintf("by %s: %s", invoker.ID, reason))
		if b.notify != nil {
			alert := commandEmbed("User blacklisted",
				fmt.Sprintf("<@%s> was blacklisted by <@%s>.", target.ID, invoker.ID),
				b.cfg.Notifications.EmbedColors.Warning,
				[]*discordgo.MessageEmbedField{{Name: "Reason", Value: reason}})
			b.notify.AdminAlert(ctx, interaction.GuildID, alert)
		}
		respondEmbed(session, interaction, commandEmbed("Blacklisted",
			fmt.Sprintf("<@%s> can no longer verify.", target.ID),
			b.cfg.Notifications.EmbedColors.Success, nil), true)

	case "remove":
		if len(sub.Options) == 0 {
			return
		}
		b.liftBlacklist(ctx, session, interaction, sub.Options[0].UserValue(session))

	case "list":
		entries, err := b.store.ListBlacklist(ctx)
		if err != nil {
			respondEmbed(session, interaction, b.errorEmbed("Could not load the blacklist."), true)
			return
		}
		if len(entries) == 0 {
			respondEmbed(session, interaction, commandEmbed("Blacklist", "The blacklist is empty.", b.cfg.Notifications.EmbedColors.Info, nil), true)
			return
		}
		lines := make([]string, 0, listDisplayCap)
		for i, entry := range entries {
			if i == listDisplayCap {
				lines = append(lines, fmt.Sprintf("and %d more", len(entries)-listDisplayCap))
				break
			}
			lines = append(lines, fmt.Sprintf("<@%s> %s", entry.UserID, entry.Reason))
		}
		embed := commandEmbed("Blacklist",
			fmt.Sprintf("%d entries", len(entries)),
			b.cfg.Notifications.EmbedColors.Info,
			[]*discordgo.MessageEmbedField{{Name: "Entries", Value: strings.Join(lines, "\n")}})
		respondEmbed(session, interaction, embed, true)

	case "clear":
		removed, err := b.store.ClearBlacklist(ctx)
		if err != nil {
			respondEmbed(session, interaction, b.errorEmbed("Could not clear the blacklist."), true)
			return
		}
		b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, invoker.ID, "blacklist_clear", fmt.Sprintf("%d entries removed", removed))
		respondEmbed(session, interaction, commandEmbed("Blacklist cleared",
			fmt.Sprintf("Removed %d entries.", removed),
			b.cfg.Notifications.EmbedColors.Success, nil), true)
	}
}

func (b *Bot) handleUnblacklist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	b.liftBlacklist(ctx, session, interaction, options[0].UserValue(session))
}

func (b *Bot) liftBlacklist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, target *discordgo.User) {
	if target == nil {
		respondEmbed(session, interaction, b.errorEmbed("Pick a user to remove from the blacklist."), true)
		return
	}
	removed, err := b.store.RemoveBlacklist(ctx, target.ID)
	if err != nil {
		b.logger.Error("remove blacklist entry",
			zap.String("user_id", target.ID),
			zap.Error(err))
		respondEmbed(session, interaction, b.errorEmbed("Could not update the blacklist."), true)
		return
	}
	if !removed {
		respondEmbed(session, interaction, commandEmbed("Blacklist",
			fmt.Sprintf("<@%s> is not on the blacklist.", target.ID),
			b.cfg.Notifications.EmbedColors.Info, nil), true)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, target.ID, "blacklist_remove", "by "+interactionUser(interaction).ID)
	respondEmbed(session, interaction, commandEmbed("Blacklist entry removed",
		fmt.Sprintf("<@%s> can verify again. Failed attempts were reset.", target.ID),
		b.cfg.Notifications.EmbedColors.Success, nil), true)
}

func (b *Bot) handleWhitelist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	sub := options[0]
	invoker := interactionUser(interaction)

	switch sub.Name {
	case "add":
		if len(sub.Options) == 0 {
			return
		}
		target := sub.Options[0].UserValue(session)
		if target == nil {
			respondEmbed(session, interaction, b.errorEmbed("Pick a user to whitelist."), true)
			return
		}
		if err := b.store.AddWhitelist(ctx, storage.WhitelistEntry{UserID: target.ID, AddedBy: invoker.ID}); err != nil {
			respondEmbed(session, interaction, b.errorEmbed("Could not update the whitelist."), true)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, target.ID, "whitelist_add", "by "+invoker.ID)
		respondEmbed(session, interaction, commandEmbed("Whitelisted",
			fmt.Sprintf("<@%s> may now request hashed data exports.", target.ID),
			b.cfg.Notifications.EmbedColors.Success, nil), true)

	case "remove":
		if len(sub.Options) == 0 {
			return
		}
		target := sub.Options[0].UserValue(session)
		if target == nil {
			respondEmbed(session, interaction, b.errorEmbed("Pick a user to remove."), true)
			return
		}
		removed, err := b.store.RemoveWhitelist(ctx, target.ID)
		if err != nil {
			respondEmbed(session, interaction, b.errorEmbed("Could not update the whitelist."), true)
			return
		}
		if !removed {
			respondEmbed(session, interaction, commandEmbed("Whitelist",
				fmt.Sprintf("<@%s> is not on the whitelist.", target.ID),
				b.cfg.Notifications.EmbedColors.Info, nil), true)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, target.ID, "whitelist_remove", "by "+invoker.ID)
		respondEmbed(session, interaction, commandEmbed("Whitelist entry removed",
			fmt.Sprintf("<@%s> no longer has export access.", target.ID),
			b.cfg.Notifications.EmbedColors.Success, nil), true)

	case "list":
		entries, err := b.store.ListWhitelist(ctx)
		if err != nil {
			respondEmbed(session, interaction, b.errorEmbed("Could not load the whitelist."), true)
			return
		}
		if len(entries) == 0 {
			respondEmbed(session, interaction, commandEmbed("Whitelist", "The whitelist is empty.", b.cfg.Notifications.EmbedColors.Info, nil), true)
			return
		}
		lines := make([]string, 0, len(entries))
		for i, entry := range entries {
			if i == listDisplayCap {
				lines = append(lines, fmt.Sprintf("and %d more", len(entries)-listDisplayCap))
				break
			}
			lines = append(lines, fmt.Sprintf("<@%s> (added by <@%s>)", entry.UserID, entry.AddedBy))
		}
		embed := commandEmbed("Whitelist",
			fmt.Sprintf("%d entries", len(entries)),
			b.cfg.Notifications.EmbedColors.Info,
			[]*discordgo.MessageEmbedField{{Name: "Entries", Value: strings.Join(lines, "\n")}})
		respondEmbed(session, interaction, embed, true)
	}
}

func (b *Bot) handleUnverify(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	target := options[0].UserValue(session)
	if target == nil {
		respondEmbed(session, interaction, b.errorEmbed("Pick a member to unverify."), true)
		return
	}
	err := b.store.RevokeRecord(ctx, target.ID)
	if errors.Is(err, storage.ErrNotFound) {
		respondEmbed(session, interaction, commandEmbed("Unverify",
			fmt.Sprintf("No verification record for <@%s>.", target.ID),
			b.cfg.Notifications.EmbedColors.Info, nil), true)
		return
	}
	if err != nil {
		b.logger.Error("revoke verification",
			zap.String("user_id", target.ID),
			zap.Error(err))
		respondEmbed(session, interaction, b.errorEmbed("Could not revoke the verification."), true)
		return
	}

	settings := b.guildSettings(ctx, interaction.GuildID)
	if settings.VerifiedRole != "" {
		if err := session.GuildMemberRoleRemove(interaction.GuildID, target.ID, settings.VerifiedRole); err != nil {
			b.logger.Warn("remove verified role",
				zap.String("user_id", target.ID),
				zap.Error(err))
		}
	}
	if settings.AutoUnverified && settings.UnverifiedRole != "" {
		if err := session.GuildMemberRoleAdd(interaction.GuildID, target.ID, settings.UnverifiedRole); err != nil {
			b.logger.Warn("assign unverified role",
				zap.String("user_id", target.ID),
				zap.Error(err))
		}
	}
	b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, target.ID, "unverify", "by "+interactionUser(interaction).ID)
	respondEmbed(session, interaction, commandEmbed("Verification revoked",
		fmt.Sprintf("<@%s> must verify again to regain access.", target.ID),
		b.cfg.Notifications.EmbedColors.Success, nil), true)
}

func (b *Bot) handleExport(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	user := interactionUser(interaction)
	isOwner := b.cfg.OwnerID != "" && user.ID == b.cfg.OwnerID

	var snapshot export.Snapshot
	var err error
	variant := options[0].Name
	switch variant {
	case export.TypeFull:
		if !isOwner {
			respondEmbed(session, interaction, b.errorEmbed("Only the bot owner can export raw data."), true)
			return
		}
		snapshot, err = b.exports.Full(ctx, interaction.GuildID)
	case export.TypeHashed:
		if !isOwner {
			whitelisted, checkErr := b.store.IsWhitelisted(ctx, user.ID)
			if checkErr != nil || !whitelisted {
				respondEmbed(session, interaction, b.errorEmbed("You do not have permission to export data."), true)
				return
			}
		}
		snapshot, err = b.exports.Hashed(ctx)
	default:
		return
	}
	if err != nil {
		b.logger.Error("build export",
			zap.String("type", variant),
			zap.Error(err))
		respondEmbed(session, interaction, b.errorEmbed("Could not build the export."), true)
		return
	}

	body, err := export.Encode(snapshot)
	if err != nil {
		b.logger.Error("encode export", zap.Error(err))
		respondEmbed(session, interaction, b.errorEmbed("Could not build the export."), true)
		return
	}
	channel, err := session.UserChannelCreate(user.ID)
	if err != nil {
		respondEmbed(session, interaction, b.errorEmbed("Could not open a DM. Check your privacy settings and try again."), true)
		return
	}
	_, err = session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: fmt.Sprintf("Verification data export (%s).", variant),
		Files: []*discordgo.File{{
			Name:        fmt.Sprintf("gatewarden-export-%s.json", snapshot.ExportID),
			ContentType: "application/json",
			Reader:      bytes.NewReader(body),
		}},
	})
	if err != nil {
		b.logger.Warn("deliver export",
			zap.String("user_id", user.ID),
			zap.Error(err))
		respondEmbed(session, interaction, b.errorEmbed("Could not deliver the export by DM."), true)
		return
	}
	b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, user.ID, "export", variant+" export sent")
	respondEmbed(session, interaction, commandEmbed("Export sent",
		"Check your DMs for the JSON file.",
		b.cfg.Notifications.EmbedColors.Success, nil), true)
}

func (b *Bot) handleAutorole(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	sub := options[0]
	settings := b.guildSettings(ctx, interaction.GuildID)
	settings.GuildID = interaction.GuildID

	var confirmation string
	switch sub.Name {
	case "enable":
		if settings.AutoRole == "" {
			respondEmbed(session, interaction, b.errorEmbed("Set a role first with /autorole set."), true)
			return
		}
		settings.AutoRoleEnabled = true
		confirmation = fmt.Sprintf("Verified members now also receive %s.", roleRef(settings.AutoRole))
	case "disable":
		settings.AutoRoleEnabled = false
		confirmation = "The automatic role is no longer granted."
	case "set":
		if len(sub.Options) == 0 {
			return
		}
		role := sub.Options[0].RoleValue(session, interaction.GuildID)
		if role == nil {
			respondEmbed(session, interaction, b.errorEmbed("Pick a role to grant."), true)
			return
		}
		settings.AutoRole = role.ID
		confirmation = fmt.Sprintf("Auto role set to %s. Enable it with /autorole enable.", roleRef(role.ID))
		if settings.AutoRoleEnabled {
			confirmation = fmt.Sprintf("Auto role set to %s.", roleRef(role.ID))
		}
	default:
		return
	}

	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.logger.Error("save guild settings",
			zap.String("guild_id", interaction.GuildID),
			zap.Error(err))
		respondEmbed(session, interaction, b.errorEmbed("Could not save the settings."), true)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, interactionUser(interaction).ID, "autorole_update", sub.Name)
	respondEmbed(session, interaction, commandEmbed("Auto role updated", confirmation, b.cfg.Notifications.EmbedColors.Success, nil), true)
}

func (b *Bot) handleIPBan(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	sub := options[0]
	invoker := interactionUser(interaction)

	var ip, reason string
	for _, opt := range sub.Options {
		switch opt.Name {
		case "ip":
			ip = opt.StringValue()
		case "reason":
			reason = opt.StringValue()
		}
	}
	if !utils.IsValidIP(ip) {
		respondEmbed(session, interaction, b.errorEmbed("That is not a valid IP address."), true)
		return
	}
	ipHash := utils.HashIP(ip)

	switch sub.Name {
	case "add":
		if reason == "" {
			reason = "manually banned network address"
		}
		if err := b.store.AddIPBan(ctx, storage.IPBan{IPHash: ipHash, Reason: reason, AddedBy: invoker.ID}); err != nil {
			b.logger.Error("add ip ban", zap.Error(err))
			respondEmbed(session, interaction, b.errorEmbed("Could not store the ban."), true)
			return
		}
		records, err := b.store.UsersByIPHash(ctx, ipHash)
		if err != nil {
			b.logger.Warn("lookup users by address", zap.Error(err))
		}
		banned := 0
		for _, record := range records {
			if err := session.GuildBanCreateWithReason(interaction.GuildID, record.UserID, reason, 0); err != nil {
				b.logger.Warn("ban member",
					zap.String("user_id", record.UserID),
					zap.Error(err))
				continue
			}
			banned++
		}
		b.audit.Log(ctx, audit.LevelCrit, interaction.GuildID, invoker.ID, "ip_ban", fmt.Sprintf("hash %s, %d members banned", ipHash, banned))
		if b.notify != nil {
			alert := commandEmbed("Network address banned",
				fmt.Sprintf("<@%s> banned a network address.", invoker.ID),
				b.cfg.Notifications.EmbedColors.Error,
				[]*discordgo.MessageEmbedField{
					{Name: "Reason", Value: reason},
					{Name: "Members banned", Value: fmt.Sprintf("%d", banned), Inline: true},
				})
			b.notify.AdminAlert(ctx, interaction.GuildID, alert)
		}
		respondEmbed(session, interaction, commandEmbed("Network address banned",
			fmt.Sprintf("Future submissions from this address are rejected. %d associated members were banned from this server.", banned),
			b.cfg.Notifications.EmbedColors.Success, nil), true)

	case "remove":
		removed, err := b.store.RemoveIPBan(ctx, ipHash)
		if err != nil {
			respondEmbed(session, interaction, b.errorEmbed("Could not update the ban list."), true)
			return
		}
		if !removed {
			respondEmbed(session, interaction, commandEmbed("IP ban",
				"That network address is not banned.",
				b.cfg.Notifications.EmbedColors.Info, nil), true)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, invoker.ID, "ip_ban_remove", "hash "+ipHash)
		respondEmbed(session, interaction, commandEmbed("IP ban lifted",
			"Submissions from this address are allowed again.",
			b.cfg.Notifications.EmbedColors.Success, nil), true)

	case "check":
		banned, err := b.store.IsIPBanned(ctx, ipHash)
		if err != nil {
			respondEmbed(session, interaction, b.errorEmbed("Could not check the address."), true)
			return
		}
		status := "Not banned"
		if banned {
			status = "Banned"
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Status", Value: status, Inline: true},
			{Name: "Network hash", Value: ipHash, Inline: true},
		}
		if records, err := b.store.UsersByIPHash(ctx, ipHash); err == nil && len(records) > 0 {
			lines := make([]string, 0, len(records))
			for i, record := range records {
				if i == 10 {
					lines = append(lines, fmt.Sprintf("and %d more", len(records)-10))
					break
				}
				lines = append(lines, "<@"+record.UserID+">")
			}
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Seen on this address", Value: strings.Join(lines, "\n")})
		}
		respondEmbed(session, interaction, commandEmbed("IP ban check", "", b.cfg.Notifications.EmbedColors.Info, fields), true)
	}
}
