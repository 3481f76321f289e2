package bot

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) buildCommands() []command {
	textChannel := []discordgo.ChannelType{discordgo.ChannelTypeGuildText}

	return []command{
		{
			tier:    TierEveryone,
			handler: b.handleVerification,
			definition: &discordgo.ApplicationCommand{
				Name:        "verification",
				Description: "Get your personal verification link",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Obtenir votre lien de vérification personnel",
					discordgo.EnglishUS: "Get your personal verification link",
					discordgo.SpanishES: "Obtén tu enlace personal de verificación",
				},
			},
		},
		{
			tier:    TierAdmin,
			handler: b.handleConfig,
			definition: &discordgo.ApplicationCommand{
				Name:        "config",
				Description: "View or change verification settings for this server",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Voir ou modifier les réglages de vérification du serveur",
					discordgo.EnglishUS: "View or change verification settings for this server",
					discordgo.SpanishES: "Ver o cambiar la configuración de verificación del servidor",
				},
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "view",
						Description: "Show the current settings",
						DescriptionLocalizations: map[discordgo.Locale]string{
							discordgo.French:    "Afficher les réglages actuels",
							discordgo.SpanishES: "Mostrar la configuración actual",
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "channel",
						Description: "Set the verification and log channels",
						DescriptionLocalizations: map[discordgo.Locale]string{
							discordgo.French:    "Définir les salons de vérification et de journalisation",
							discordgo.SpanishES: "Configurar los canales de verificación y registro",
						},
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:         discordgo.ApplicationCommandOptionChannel,
								Name:         "verification",
								Description:  "Channel where verification results are posted",
								ChannelTypes: textChannel,
							},
							{
								Type:         discordgo.ApplicationCommandOptionChannel,
								Name:         "log",
								Description:  "Channel that receives forwarded audit events",
								ChannelTypes: textChannel,
							},
							{
								Type:         discordgo.ApplicationCommandOptionChannel,
								Name:         "invite_log",
								Description:  "Channel that receives member join logs",
								ChannelTypes: textChannel,
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "website",
						Description: "Set the verification website URL",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionString,
								Name:        "url",
								Description: "Public URL of the verification page",
								Required:    true,
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "roles",
						Description: "Set the verification roles",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionRole,
								Name:        "verified",
								Description: "Role granted after a successful verification",
							},
							{
								Type:        discordgo.ApplicationCommandOptionRole,
								Name:        "unverified",
								Description: "Role held by members who have not verified yet",
							},
							{
								Type:        discordgo.ApplicationCommandOptionRole,
								Name:        "mute",
								Description: "Role applied on duplicate-device rejections",
							},
							{
								Type:        discordgo.ApplicationCommandOptionRole,
								Name:        "staff",
								Description: "Role that grants access to staff commands",
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "toggles",
						Description: "Switch policy features on or off",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionBoolean,
								Name:        "auto_blacklist",
								Description: "Blacklist users that exceed the attempt limit",
							},
							{
								Type:        discordgo.ApplicationCommandOptionBoolean,
								Name:        "vpn_detection",
								Description: "Reject submissions that look like VPN or proxy traffic",
							},
							{
								Type:        discordgo.ApplicationCommandOptionBoolean,
								Name:        "auto_blacklist_vpn",
								Description: "Blacklist users rejected for VPN traffic",
							},
							{
								Type:        discordgo.ApplicationCommandOptionBoolean,
								Name:        "invite_tracking",
								Description: "Attribute joins to the invite that was used",
							},
							{
								Type:        discordgo.ApplicationCommandOptionBoolean,
								Name:        "auto_unverified",
								Description: "Give new members the unverified role on join",
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "limits",
						Description: "Set attempt, VPN and retention limits",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionInteger,
								Name:        "max_attempts",
								Description: "Failed attempts allowed before auto-blacklist",
							},
							{
								Type:        discordgo.ApplicationCommandOptionNumber,
								Name:        "vpn_threshold",
								Description: "VPN score from 0 to 100 that triggers a rejection",
							},
							{
								Type:        discordgo.ApplicationCommandOptionInteger,
								Name:        "retention_days",
								Description: "Days to keep audit logs and stale attempts",
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "admins",
						Description: "Add or remove extra admins for alert mentions",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionString,
								Name:        "action",
								Description: "What to do with the user",
								Required:    true,
								Choices: []*discordgo.ApplicationCommandOptionChoice{
									{Name: "add", Value: "add"},
									{Name: "remove", Value: "remove"},
								},
							},
							{
								Type:        discordgo.ApplicationCommandOptionUser,
								Name:        "user",
								Description: "The user to add or remove",
								Required:    true,
							},
						},
					},
				},
			},
		},
		{
			tier:    TierAdmin,
			handler: b.handleBlacklist,
			definition: &discordgo.ApplicationCommand{
				Name:        "blacklist",
				Description: "Manage the verification blacklist",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Gérer la liste noire de vérification",
					discordgo.EnglishUS: "Manage the verification blacklist",
					discordgo.SpanishES: "Gestionar la lista negra de verificación",
				},
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "add",
						Description: "Block a user from verifying",
						DescriptionLocalizations: map[discordgo.Locale]string{
							discordgo.French:    "Empêcher un utilisateur de se vérifier",
							discordgo.SpanishES: "Impedir que un usuario se verifique",
						},
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionUser,
								Name:        "user",
								Description: "The user to blacklist",
								Required:    true,
							},
							{
								Type:        discordgo.ApplicationCommandOptionString,
								Name:        "reason",
								Description: "Why the user is being blacklisted",
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "remove",
						Description: "Remove a user from the blacklist",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionUser,
								Name:        "user",
								Description: "The user to remove",
								Required:    true,
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "list",
						Description: "List blacklisted users",
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "clear",
						Description: "Remove every blacklist entry",
					},
				},
			},
		},
		{
			tier:    TierAdmin,
			handler: b.handleUnblacklist,
			definition: &discordgo.ApplicationCommand{
				Name:        "unblacklist",
				Description: "Remove a user from the blacklist and reset their attempts",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Retirer un utilisateur de la liste noire et remettre ses tentatives à zéro",
					discordgo.EnglishUS: "Remove a user from the blacklist and reset their attempts",
					discordgo.SpanishES: "Quitar a un usuario de la lista negra y reiniciar sus intentos",
				},
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "The user to remove",
						Required:    true,
					},
				},
			},
		},
		{
			tier:    TierOwner,
			handler: b.handleWhitelist,
			definition: &discordgo.ApplicationCommand{
				Name:        "whitelist",
				Description: "Manage access to hashed data exports",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Gérer l'accès aux exports de données anonymisées",
					discordgo.EnglishUS: "Manage access to hashed data exports",
					discordgo.SpanishES: "Gestionar el acceso a las exportaciones anonimizadas",
				},
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "add",
						Description: "Grant a user access to hashed exports",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionUser,
								Name:        "user",
								Description: "The user to whitelist",
								Required:    true,
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "remove",
						Description: "Revoke a user's export access",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionUser,
								Name:        "user",
								Description: "The user to remove",
								Required:    true,
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "list",
						Description: "List whitelisted users",
					},
				},
			},
		},
		{
			tier:    TierAdmin,
			handler: b.handleUnverify,
			definition: &discordgo.ApplicationCommand{
				Name:        "unverify",
				Description: "Revoke a member's verification",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Révoquer la vérification d'un membre",
					discordgo.EnglishUS: "Revoke a member's verification",
					discordgo.SpanishES: "Revocar la verificación de un miembro",
				},
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "The member whose verification is revoked",
						Required:    true,
					},
				},
			},
		},
		{
			tier:    TierEveryone,
			handler: b.handleExport,
			definition: &discordgo.ApplicationCommand{
				Name:        "export",
				Description: "Export verification data as a JSON file",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Exporter les données de vérification au format JSON",
					discordgo.EnglishUS: "Export verification data as a JSON file",
					discordgo.SpanishES: "Exportar los datos de verificación como archivo JSON",
				},
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "full",
						Description: "Full export including raw network addresses (owner only)",
						DescriptionLocalizations: map[discordgo.Locale]string{
							discordgo.French:    "Export complet avec adresses réseau en clair (propriétaire uniquement)",
							discordgo.SpanishES: "Exportación completa con direcciones de red (solo propietario)",
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "hashed",
						Description: "Anonymized export with hashed network addresses",
						DescriptionLocalizations: map[discordgo.Locale]string{
							discordgo.French:    "Export anonymisé avec adresses réseau hachées",
							discordgo.SpanishES: "Exportación anonimizada con direcciones de red cifradas",
						},
					},
				},
			},
		},
		{
			tier:    TierAdmin,
			handler: b.handleStats,
			definition: &discordgo.ApplicationCommand{
				Name:        "stats",
				Description: "Show verification statistics for this server",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Afficher les statistiques de vérification du serveur",
					discordgo.EnglishUS: "Show verification statistics for this server",
					discordgo.SpanishES: "Mostrar las estadísticas de verificación del servidor",
				},
			},
		},
		{
			tier:    TierAdmin,
			handler: b.handleInvites,
			definition: &discordgo.ApplicationCommand{
				Name:        "invites",
				Description: "Inspect invite tracking",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Inspecter le suivi des invitations",
					discordgo.EnglishUS: "Inspect invite tracking",
					discordgo.SpanishES: "Inspeccionar el seguimiento de invitaciones",
				},
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "status",
						Description: "Show tracker state and top inviters",
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "lookup",
						Description: "Show which invite brought a member in",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionUser,
								Name:        "user",
								Description: "The member to look up",
								Required:    true,
							},
						},
					},
				},
			},
		},
		{
			tier:    TierAdmin,
			handler: b.handleAutorole,
			definition: &discordgo.ApplicationCommand{
				Name:        "autorole",
				Description: "Manage the extra role granted to verified members",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Gérer le rôle supplémentaire attribué aux membres vérifiés",
					discordgo.EnglishUS: "Manage the extra role granted to verified members",
					discordgo.SpanishES: "Gestionar el rol adicional otorgado a los miembros verificados",
				},
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "enable",
						Description: "Start granting the configured role",
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "disable",
						Description: "Stop granting the configured role",
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "set",
						Description: "Choose the role to grant",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionRole,
								Name:        "role",
								Description: "The role to grant to verified members",
								Required:    true,
							},
						},
					},
				},
			},
		},
		{
			tier:    TierAdmin,
			handler: b.handleIPBan,
			definition: &discordgo.ApplicationCommand{
				Name:        "ipban",
				Description: "Manage banned network addresses",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Gérer les adresses réseau bannies",
					discordgo.EnglishUS: "Manage banned network addresses",
					discordgo.SpanishES: "Gestionar las direcciones de red bloqueadas",
				},
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "add",
						Description: "Ban a network address and its associated members",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionString,
								Name:        "ip",
								Description: "The address to ban",
								Required:    true,
							},
							{
								Type:        discordgo.ApplicationCommandOptionString,
								Name:        "reason",
								Description: "Why the address is being banned",
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "remove",
						Description: "Lift a network address ban",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionString,
								Name:        "ip",
								Description: "The address to unban",
								Required:    true,
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "check",
						Description: "Check an address and list users seen on it",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionString,
								Name:        "ip",
								Description: "The address to check",
								Required:    true,
							},
						},
					},
				},
			},
		},
		{
			tier:    TierModerator,
			handler: b.handleUserinfo,
			definition: &discordgo.ApplicationCommand{
				Name:        "userinfo",
				Description: "Show verification details for a member",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Afficher les détails de vérification d'un membre",
					discordgo.EnglishUS: "Show verification details for a member",
					discordgo.SpanishES: "Mostrar los detalles de verificación de un miembro",
				},
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "The member to inspect",
						Required:    true,
					},
				},
			},
		},
		{
			tier:    TierEveryone,
			handler: b.handleHelp,
			definition: &discordgo.ApplicationCommand{
				Name:        "help",
				Description: "List available commands",
				DescriptionLocalizations: &map[discordgo.Locale]string{
					discordgo.French:    "Lister les commandes disponibles",
					discordgo.EnglishUS: "List available commands",
					discordgo.SpanishES: "Listar los comandos disponibles",
				},
			},
		},
	}
}

func (b *Bot) registerCommands() {
	appID := b.session.State.User.ID

	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		b.logger.Warn("list registered commands", zap.Error(err))
		for _, cmd := range b.commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd.definition); err != nil {
				b.logger.Error("register command",
					zap.String("command", cmd.definition.Name),
					zap.Error(err))
			}
		}
		return
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{}, len(b.commands))
	for _, cmd := range b.commands {
		desired[cmd.definition.Name] = struct{}{}
		if current, ok := existingByName[cmd.definition.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd.definition); err != nil {
				b.logger.Error("update command",
					zap.String("command", cmd.definition.Name),
					zap.Error(err))
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd.definition); err != nil {
			b.logger.Error("register command",
				zap.String("command", cmd.definition.Name),
				zap.Error(err))
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		if err := b.session.ApplicationCommandDelete(appID, "", cmd.ID); err != nil {
			b.logger.Warn("delete stale command",
				zap.String("command", cmd.Name),
				zap.Error(err))
		}
	}

	for _, guild := range b.session.State.Guilds {
		guildCommands, err := b.session.ApplicationCommands(appID, guild.ID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCommands {
			if err := b.session.ApplicationCommandDelete(appID, guild.ID, cmd.ID); err != nil {
				b.logger.Warn("delete guild command",
					zap.String("command", cmd.Name),
					zap.String("guild_id", guild.ID),
					zap.Error(err))
			}
		}
	}
}
