package discord

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// EditMessageComplexNoEmbed edits an existing message and keeps URLs from embedding.
func EditMessageComplexNoEmbed(ctx context.Context, s *discordgo.Session, edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	if edit == nil {
		return nil, errors.New("discord: message edit payload cannot be nil")
	}

	if edit.Content != nil {
		cleaned := WrapURLsNoEmbed(*edit.Content)
		edit.Content = &cleaned
	}
	if edit.Embeds != nil {
		sanitizeEmbeds(*edit.Embeds)
	}
	return s.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
}

// SendComplexMessageNoEmbed sends a complex message payload with sanitized embeds/content.
func SendComplexMessageNoEmbed(ctx context.Context, s *discordgo.Session, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	if msg == nil {
		return nil, errors.New("discord: message payload cannot be nil")
	}

	sanitizeMessageSend(msg)
	return s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
}

// InteractionRespondNoEmbed wraps InteractionRespond ensuring the data content is sanitized.
func InteractionRespondNoEmbed(s *discordgo.Session, interaction *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	if resp != nil && resp.Data != nil {
		if resp.Data.Content != "" {
			resp.Data.Content = WrapURLsNoEmbed(resp.Data.Content)
		}
		sanitizeEmbeds(resp.Data.Embeds)
	}
	return s.InteractionRespond(interaction, resp)
}

func sanitizeMessageSend(msg *discordgo.MessageSend) {
	if msg.Content != "" {
		msg.Content = WrapURLsNoEmbed(msg.Content)
	}
	sanitizeEmbeds(msg.Embeds)
}

func sanitizeEmbeds(embeds []*discordgo.MessageEmbed) {
	for _, embed := range embeds {
		if embed == nil {
			continue
		}
		if embed.Description != "" {
			embed.Description = WrapURLsNoEmbed(embed.Description)
		}
		if embed.Footer != nil && embed.Footer.Text != "" {
			embed.Footer.Text = WrapURLsNoEmbed(embed.Footer.Text)
		}
		for _, field := range embed.Fields {
			if field == nil {
				continue
			}
			field.Name = WrapURLsNoEmbed(field.Name)
			field.Value = WrapURLsNoEmbed(field.Value)
		}
	}
}
