// Package platform describes the chat platform collaborators the party engine
// talks to. The discord package provides the production implementation.
package platform

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a channel, message or member no longer exists.
var ErrNotFound = errors.New("platform: not found")

// IsNotFound reports whether err signals a vanished channel, message or member.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Channel is a resolved channel handle.
type Channel struct {
	ID       string
	GuildID  string
	ParentID string
	Name     string
}

// Message identifies a message that exists on the platform.
type Message struct {
	ID        string
	ChannelID string
}

// Member is a guild member.
type Member struct {
	ID          string
	Username    string
	DisplayName string
}

// Name returns the display name when set, otherwise the username.
func (m Member) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Username
}

// Content is a rendered status message before platform specific styling.
type Content struct {
	Title string
	Body  string
}

// ChannelOptions controls channel creation.
type ChannelOptions struct {
	ParentID string
	Topic    string
}

// ChannelService resolves and manages channels.
type ChannelService interface {
	Resolve(ctx context.Context, channelID string) (*Channel, error)
	Create(ctx context.Context, guildID, name string, opts ChannelOptions) (*Channel, error)
	Delete(ctx context.Context, channelID string) error
	Rename(ctx context.Context, channelID, name string) error
	// Reparent moves a channel under parentID. When syncPermissions is set the
	// channel's permission overwrites are replaced with the parent's.
	Reparent(ctx context.Context, channelID, parentID string, syncPermissions bool) error
}

// MessageService sends and manages messages.
type MessageService interface {
	Send(ctx context.Context, channelID string, content Content) (*Message, error)
	Edit(ctx context.Context, msg Message, content Content) error
	Delete(ctx context.Context, msg Message) error
	Fetch(ctx context.Context, channelID, messageID string) (*Message, error)
	Pin(ctx context.Context, msg Message) error
}

// MemberService resolves guild members.
type MemberService interface {
	Member(ctx context.Context, guildID, memberID string) (*Member, error)
}

// Services bundles the collaborators the party manager needs.
type Services struct {
	Channels ChannelService
	Messages MessageService
	Members  MemberService
}
