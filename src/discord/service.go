package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/raidparty/src/platform"
)

// Client adapts a discordgo session to the platform services used by the
// party manager.
type Client struct {
	session *discordgo.Session
}

// NewClient wraps an open session.
func NewClient(s *discordgo.Session) *Client {
	return &Client{session: s}
}

// Services returns the platform services backed by this client.
func (c *Client) Services() platform.Services {
	return platform.Services{
		Channels: channels{c.session},
		Messages: messages{c.session},
		Members:  members{c.session},
	}
}

// translate maps Discord "unknown resource" failures onto platform.ErrNotFound.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return fmt.Errorf("%w: %v", platform.ErrNotFound, err)
	}
	return err
}

func isNotFoundError(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeUnknownMessage,
			discordgo.ErrCodeUnknownMember,
			discordgo.ErrCodeUnknownUser:
			return true
		}
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

type channels struct {
	s *discordgo.Session
}

func toChannel(ch *discordgo.Channel) *platform.Channel {
	return &platform.Channel{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		ParentID: ch.ParentID,
		Name:     ch.Name,
	}
}

func (c channels) Resolve(ctx context.Context, channelID string) (*platform.Channel, error) {
	ch, err := c.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	return toChannel(ch), nil
}

func (c channels) Create(ctx context.Context, guildID, name string, opts platform.ChannelOptions) (*platform.Channel, error) {
	ch, err := c.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    opts.Topic,
		ParentID: opts.ParentID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	return toChannel(ch), nil
}

func (c channels) Delete(ctx context.Context, channelID string) error {
	return translate(doWithRetry(ctx, retryAttempts, retryInitialDelay, func() error {
		_, err := c.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
		return err
	}))
}

func (c channels) Rename(ctx context.Context, channelID, name string) error {
	_, err := c.s.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return translate(err)
}

func (c channels) Reparent(ctx context.Context, channelID, parentID string, syncPermissions bool) error {
	edit := &discordgo.ChannelEdit{ParentID: parentID}
	if syncPermissions && parentID != "" {
		parent, err := c.s.Channel(parentID, discordgo.WithContext(ctx))
		if err != nil {
			return translate(err)
		}
		edit.PermissionOverwrites = parent.PermissionOverwrites
	}
	_, err := c.s.ChannelEdit(channelID, edit, discordgo.WithContext(ctx))
	return translate(err)
}

type messages struct {
	s *discordgo.Session
}

func (m messages) Send(ctx context.Context, channelID string, content platform.Content) (*platform.Message, error) {
	styled := Render(content)
	msg, err := SendComplexMessageNoEmbed(ctx, m.s, channelID, &discordgo.MessageSend{
		Content:    styled.Content,
		Components: styled.Components,
	})
	if err != nil {
		return nil, translate(err)
	}
	return &platform.Message{ID: msg.ID, ChannelID: msg.ChannelID}, nil
}

func (m messages) Edit(ctx context.Context, msg platform.Message, content platform.Content) error {
	styled := Render(content)
	components := styled.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	edit := discordgo.NewMessageEdit(msg.ChannelID, msg.ID).SetContent(styled.Content)
	edit.Components = &components
	return translate(doWithRetry(ctx, retryAttempts, retryInitialDelay, func() error {
		_, err := EditMessageComplexNoEmbed(ctx, m.s, edit)
		return err
	}))
}

func (m messages) Delete(ctx context.Context, msg platform.Message) error {
	return translate(doWithRetry(ctx, retryAttempts, retryInitialDelay, func() error {
		return m.s.ChannelMessageDelete(msg.ChannelID, msg.ID, discordgo.WithContext(ctx))
	}))
}

func (m messages) Fetch(ctx context.Context, channelID, messageID string) (*platform.Message, error) {
	msg, err := m.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	return &platform.Message{ID: msg.ID, ChannelID: msg.ChannelID}, nil
}

func (m messages) Pin(ctx context.Context, msg platform.Message) error {
	return translate(m.s.ChannelMessagePin(msg.ChannelID, msg.ID, discordgo.WithContext(ctx)))
}

type members struct {
	s *discordgo.Session
}

func (m members) Member(ctx context.Context, guildID, memberID string) (*platform.Member, error) {
	member, err := m.s.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	return toMember(member), nil
}

func toMember(member *discordgo.Member) *platform.Member {
	out := &platform.Member{DisplayName: member.Nick}
	if member.User != nil {
		out.ID = member.User.ID
		out.Username = member.User.Username
		if out.DisplayName == "" {
			out.DisplayName = member.User.GlobalName
		}
	}
	return out
}
