package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"gatewarden/internal/analytics"
	"gatewarden/internal/audit"
	"gatewarden/internal/config"
	"gatewarden/internal/export"
	"gatewarden/internal/invites"
	"gatewarden/internal/notify"
	"gatewarden/internal/policy"
	"gatewarden/internal/storage"
	"gatewarden/internal/token"
)

type Bot struct {
	cfg       config.Config
	defaults  storage.GuildSettings
	store     *storage.Store
	engine    *policy.Engine
	audit     *audit.Logger
	analytics *analytics.Service
	exports   *export.Service
	tokens    *token.Manager
	tracker   *invites.Tracker
	notify    *notify.Dispatcher
	logger    *zap.Logger

	session  *discordgo.Session
	commands []command
	registry map[string]command
}

func New(cfg config.Config, defaults storage.GuildSettings, store *storage.Store, engine *policy.Engine, auditLog *audit.Logger, analyticsService *analytics.Service, exportService *export.Service, tokens *token.Manager, tracker *invites.Tracker, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildInvites

	b := &Bot{
		cfg:       cfg,
		defaults:  defaults,
		store:     store,
		engine:    engine,
		audit:     auditLog,
		analytics: analyticsService,
		exports:   exportService,
		tokens:    tokens,
		tracker:   tracker,
		logger:    logger,
		session:   session,
	}
	b.notify = notify.NewDispatcher(session, store, defaults, cfg.Notifications, logger)

	engine.SetNotifier(b.notify)
	engine.SetMembers(b)
	engine.SetRoles(b)
	auditLog.SetNotifier(b.notify.ForwardAudit)
	if tracker != nil {
		tracker.SetFetcher(b)
		if analyticsService != nil {
			analyticsService.SetInvites(tracker)
		}
	}

	b.commands = b.buildCommands()
	b.registry = make(map[string]command, len(b.commands))
	for _, cmd := range b.commands {
		b.registry[cmd.definition.Name] = cmd
	}
	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onGuildDelete)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onInteractionCreate)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	settings, err := b.store.GetGuildSettings(ctx, guildID, b.defaults)
	if err != nil {
		b.logger.Warn("load guild settings",
			zap.String("guild_id", guildID),
			zap.Error(err))
		settings = b.defaults
		settings.GuildID = guildID
	}
	return settings
}

func (b *Bot) MemberExists(guildID, userID string) bool {
	if member, err := b.session.State.Member(guildID, userID); err == nil && member != nil {
		return true
	}
	member, err := b.session.GuildMember(guildID, userID)
	return err == nil && member != nil
}

func (b *Bot) ApplyVerified(guildID, userID string) error {
	settings := b.guildSettings(context.Background(), guildID)
	if settings.VerifiedRole == "" {
		return nil
	}
	if err := b.session.GuildMemberRoleAdd(guildID, userID, settings.VerifiedRole); err != nil {
		return fmt.Errorf("add verified role: %w", err)
	}
	if settings.UnverifiedRole != "" {
		if err := b.session.GuildMemberRoleRemove(guildID, userID, settings.UnverifiedRole); err != nil {
			b.logger.Warn("remove unverified role",
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
	if settings.AutoRoleEnabled && settings.AutoRole != "" {
		if err := b.session.GuildMemberRoleAdd(guildID, userID, settings.AutoRole); err != nil {
			b.logger.Warn("add auto role",
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
	return nil
}

func (b *Bot) ApplyMute(guildID, userID string) error {
	settings := b.guildSettings(context.Background(), guildID)
	if settings.MuteRole == "" {
		return nil
	}
	return b.session.GuildMemberRoleAdd(guildID, userID, settings.MuteRole)
}

func (b *Bot) GuildInvites(guildID string) ([]invites.Invite, error) {
	list, err := b.session.GuildInvites(guildID)
	if err != nil {
		return nil, err
	}
	tracked := make([]invites.Invite, 0, len(list))
	for _, invite := range list {
		item := invites.Invite{Code: invite.Code, Uses: invite.Uses}
		if invite.Inviter != nil {
			item.InviterID = invite.Inviter.ID
			item.InviterName = invite.Inviter.Username
		}
		tracked = append(tracked, item)
	}
	return tracked, nil
}

func (b *Bot) errorEmbed(message string) *discordgo.MessageEmbed {
	return commandEmbed("Error", message, b.cfg.Notifications.EmbedColors.Error, nil)
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func guildName(session *discordgo.Session, guildID string) string {
	if guild, err := session.State.Guild(guildID); err == nil && guild.Name != "" {
		return guild.Name
	}
	return "this server"
}

func hasRole(member *discordgo.Member, roleID string) bool {
	for _, role := range member.Roles {
		if role == roleID {
			return true
		}
	}
	return false
}

func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16] + "..."
}

func channelRef(id string) string {
	if id == "" {
		return "not set"
	}
	return "<#" + id + ">"
}

func roleRef(id string) string {
	if id == "" {
		return "not set"
	}
	return "<@&" + id + ">"
}

func inviterRef(attr storage.InviteAttribution) string {
	if attr.InviterID != "" {
		return "<@" + attr.InviterID + ">"
	}
	if attr.InviterName != "" {
		return attr.InviterName
	}
	return "Unknown"
}
