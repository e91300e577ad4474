package parties

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	shareddiscord "github.com/stake-plus/raidparty/src/discord"
	"github.com/stake-plus/raidparty/src/party"
)

// Registry is the part of the party manager the handler drives.
type Registry interface {
	GetParty(channelID string) (party.Party, bool)
	DeleteParty(ctx context.Context, channelID string, deleteChannel bool) error
	HandleChannelDeleted(ctx context.Context, channelID string) error
	HandleChannelMessage(ctx context.Context, channelID string) error
}

// Handler turns platform events and /party commands into registry calls.
type Handler struct {
	Parties         Registry
	ModeratorRoleID string
}

// Result is the reply to a /party command plus work to run once the reply
// has been delivered.
type Result struct {
	Reply    string
	Followup func(ctx context.Context) error
}

// ChannelDeleted self-heals the registry when a party channel disappears.
func (h *Handler) ChannelDeleted(ctx context.Context, channelID string) {
	if err := h.Parties.HandleChannelDeleted(ctx, channelID); err != nil {
		log.Error().Err(err).Str("channel", channelID).Msg("parties: cleanup after channel delete failed")
	}
}

// MessageCreated forwards activity in a party channel so scheduled deletions
// get their reminders.
func (h *Handler) MessageCreated(ctx context.Context, channelID string) {
	if err := h.Parties.HandleChannelMessage(ctx, channelID); err != nil && !errors.Is(err, party.ErrPartyDeleted) {
		log.Warn().Err(err).Str("channel", channelID).Msg("parties: deletion warning failed")
	}
}

// Command runs a /party subcommand issued in channelID.
func (h *Handler) Command(ctx context.Context, channelID, subcommand string, member *discordgo.Member) (Result, error) {
	p, ok := h.Parties.GetParty(channelID)
	if !ok {
		return Result{Reply: "There is no party in this channel."}, nil
	}

	switch subcommand {
	case shareddiscord.SubcommandStatus:
		content := p.StatusContent()
		return Result{Reply: strings.TrimSpace(content.Title + "\n" + content.Body)}, nil
	case shareddiscord.SubcommandRefresh:
		if err := p.RefreshStatusMessages(ctx); err != nil {
			return Result{}, fmt.Errorf("refresh %s: %w", channelID, err)
		}
		return Result{Reply: "Status messages refreshed."}, nil
	case shareddiscord.SubcommandProtect:
		if !h.canManage(p, member) {
			return Result{Reply: "Only the organiser or a moderator can do that."}, nil
		}
		if err := p.ProtectFromDeletion(ctx); err != nil {
			return Result{}, fmt.Errorf("protect %s: %w", channelID, err)
		}
		return Result{Reply: "This channel will not be cleaned up automatically."}, nil
	case shareddiscord.SubcommandDelete:
		if !h.canManage(p, member) {
			return Result{Reply: "Only the organiser or a moderator can do that."}, nil
		}
		return Result{
			Reply: "Closing this party.",
			Followup: func(ctx context.Context) error {
				return h.Parties.DeleteParty(ctx, channelID, true)
			},
		}, nil
	default:
		return Result{Reply: fmt.Sprintf("Unknown subcommand %q.", subcommand)}, nil
	}
}

func (h *Handler) canManage(p party.Party, member *discordgo.Member) bool {
	if member == nil || member.User == nil {
		return false
	}
	if member.User.ID == p.CreatedByID() {
		return true
	}
	return h.ModeratorRoleID != "" && shareddiscord.HasRole(member, h.ModeratorRoleID)
}
