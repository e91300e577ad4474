package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const (
	CommandParty = "party"

	SubcommandStatus  = "status"
	SubcommandRefresh = "refresh"
	SubcommandProtect = "protect"
	SubcommandDelete  = "delete"
)

var commandDefinitions = map[string]*discordgo.ApplicationCommand{
	CommandParty: {
		Name:        CommandParty,
		Description: "Manage the party hosted in this channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubcommandStatus,
				Description: "Show who is coming and when",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubcommandRefresh,
				Description: "Re-render every status message of this party",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubcommandProtect,
				Description: "Keep this channel from being cleaned up automatically",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubcommandDelete,
				Description: "Close this party and delete its channel",
			},
		},
	},
}

var defaultCommandOrder = []string{CommandParty}

// RegisterSlashCommands registers the requested slash commands for a guild.
// When no command names are provided, all known commands are registered.
func RegisterSlashCommands(s *discordgo.Session, guildID string, names ...string) error {
	if guildID == "" {
		return fmt.Errorf("discord: guildID is required to register slash commands")
	}

	if len(names) == 0 {
		names = defaultCommandOrder
	}

	var failures []string
	for _, name := range names {
		definition, ok := commandDefinitions[name]
		if !ok {
			log.Warn().Str("command", name).Msg("discord: unknown slash command")
			continue
		}

		if _, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, definition); err != nil {
			if isDuplicateCommandError(err) {
				log.Info().Str("command", name).Msg("discord: slash command already registered")
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			log.Warn().Err(err).Str("command", name).Msg("discord: failed to register command")
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("discord: slash command registration errors: %s", strings.Join(failures, "; "))
	}
	return nil
}

// Subcommand returns the invoked subcommand name of an application command.
func Subcommand(data discordgo.ApplicationCommandInteractionData) string {
	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
			return opt.Name
		}
	}
	return ""
}

// RespondEphemeral answers an interaction with a message only the invoker sees.
func RespondEphemeral(s *discordgo.Session, i *discordgo.Interaction, content string) error {
	return InteractionRespondNoEmbed(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func isDuplicateCommandError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		if strings.Contains(strings.ToLower(restErr.Message.Message), "already exists") {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "50035") && strings.Contains(msg, "already exists")
}
