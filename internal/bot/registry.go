package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"gatewarden/internal/storage"
)

type Tier int

const (
	TierEveryone Tier = iota
	TierModerator
	TierAdmin
	TierOwner
)

type handlerFunc func(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption)

type command struct {
	definition *discordgo.ApplicationCommand
	tier       Tier
	handler    handlerFunc
}

func (b *Bot) allowed(interaction *discordgo.InteractionCreate, tier Tier, settings storage.GuildSettings) bool {
	user := interactionUser(interaction)
	if user == nil {
		return false
	}
	if b.cfg.OwnerID != "" && user.ID == b.cfg.OwnerID {
		return true
	}
	switch tier {
	case TierEveryone:
		return true
	case TierOwner:
		return false
	default:
		return hasStaffAccess(interaction.Member, settings)
	}
}

func hasStaffAccess(member *discordgo.Member, settings storage.GuildSettings) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if member.User != nil {
		for _, id := range settings.AdminIDs {
			if id == member.User.ID {
				return true
			}
		}
	}
	if settings.StaffRole == "" {
		return false
	}
	return hasRole(member, settings.StaffRole)
}

func respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}
