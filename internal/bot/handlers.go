package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"gatewarden/internal/config"
	"gatewarden/internal/storage"
)

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", len(event.Guilds)))
	b.registerCommands()
	if b.tracker != nil {
		for _, guild := range event.Guilds {
			b.tracker.Snapshot(guild.ID)
		}
	}
	go b.sweepUnverified(context.Background(), event.Guilds)
}

func (b *Bot) onGuildCreate(_ *discordgo.Session, event *discordgo.GuildCreate) {
	if b.tracker != nil {
		b.tracker.Snapshot(event.ID)
	}
}

func (b *Bot) onGuildDelete(_ *discordgo.Session, event *discordgo.GuildDelete) {
	if b.tracker != nil {
		b.tracker.Forget(event.ID)
	}
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.User == nil || event.User.Bot || event.GuildID == "" {
		return
	}
	ctx := context.Background()
	settings := b.guildSettings(ctx, event.GuildID)

	var attr storage.InviteAttribution
	attributed := false
	if b.tracker != nil && settings.InviteTracking {
		attr, attributed = b.tracker.TrackJoin(ctx, event.GuildID, event.User.ID)
	}

	if settings.AutoUnverified && settings.UnverifiedRole != "" {
		record, err := b.store.GetRecord(ctx, event.User.ID)
		if err != nil || !record.Verified() {
			if err := session.GuildMemberRoleAdd(event.GuildID, event.User.ID, settings.UnverifiedRole); err != nil {
				b.logger.Warn("assign unverified role",
					zap.String("guild_id", event.GuildID),
					zap.String("user_id", event.User.ID),
					zap.Error(err))
			}
		}
	}

	if settings.InviteLogChannel != "" {
		embed := joinLogEmbed(event.User, attr, attributed, b.cfg.Notifications.EmbedColors)
		if _, err := session.ChannelMessageSendEmbed(settings.InviteLogChannel, embed); err != nil {
			b.logger.Warn("send join log",
				zap.String("channel_id", settings.InviteLogChannel),
				zap.Error(err))
		}
	}
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := interaction.ApplicationCommandData()
	cmd, ok := b.registry[data.Name]
	if !ok {
		respondEmbed(session, interaction, b.errorEmbed("Unknown command."), true)
		return
	}
	if interaction.GuildID == "" {
		respondEmbed(session, interaction, b.errorEmbed("This command only works inside a server."), true)
		return
	}
	ctx := context.Background()
	settings := b.guildSettings(ctx, interaction.GuildID)
	if !b.allowed(interaction, cmd.tier, settings) {
		respondEmbed(session, interaction, b.errorEmbed("You do not have permission to use this command."), true)
		return
	}
	cmd.handler(ctx, session, interaction, data.Options)
}

func (b *Bot) sweepUnverified(ctx context.Context, guilds []*discordgo.Guild) {
	for _, guild := range guilds {
		settings := b.guildSettings(ctx, guild.ID)
		if !settings.AutoUnverified || settings.UnverifiedRole == "" {
			continue
		}
		applied := 0
		after := ""
		for {
			members, err := b.session.GuildMembers(guild.ID, after, 1000)
			if err != nil {
				b.logger.Warn("list guild members",
					zap.String("guild_id", guild.ID),
					zap.Error(err))
				break
			}
			if len(members) == 0 {
				break
			}
			last := members[len(members)-1]
			if last.User == nil {
				break
			}
			for _, member := range members {
				if member.User == nil || member.User.Bot {
					continue
				}
				if hasRole(member, settings.UnverifiedRole) {
					continue
				}
				if settings.VerifiedRole != "" && hasRole(member, settings.VerifiedRole) {
					continue
				}
				record, err := b.store.GetRecord(ctx, member.User.ID)
				if err == nil && record.Verified() {
					continue
				}
				if err := b.session.GuildMemberRoleAdd(guild.ID, member.User.ID, settings.UnverifiedRole); err != nil {
					b.logger.Warn("assign unverified role",
						zap.String("guild_id", guild.ID),
						zap.String("user_id", member.User.ID),
						zap.Error(err))
					continue
				}
				applied++
			}
			after = last.User.ID
			if len(members) < 1000 {
				break
			}
		}
		if applied > 0 {
			b.logger.Info("unverified sweep",
				zap.String("guild_id", guild.ID),
				zap.Int("applied", applied))
		}
	}
}

func joinLogEmbed(user *discordgo.User, attr storage.InviteAttribution, attributed bool, colors config.EmbedColors) *discordgo.MessageEmbed {
	invitedBy := "Unknown"
	if attributed {
		invitedBy = fmt.Sprintf("%s (`%s`)", inviterRef(attr), attr.InviteCode)
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Invited by", Value: invitedBy, Inline: true},
	}
	if created, err := discordgo.SnowflakeTimestamp(user.ID); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Account created",
			Value:  created.UTC().Format("2006-01-02"),
			Inline: true,
		})
	}
	embed := commandEmbed("Member joined", fmt.Sprintf("<@%s> (%s)", user.ID, user.Username), colors.Info, fields)
	return embed
}
