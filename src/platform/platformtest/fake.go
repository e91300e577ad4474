// Package platformtest provides an in-memory chat platform for tests.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stake-plus/raidparty/src/platform"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("platformtest: injected failure")

// Edit records one message edit.
type Edit struct {
	Message platform.Message
	Content platform.Content
}

// Fake implements platform.ChannelService and platform.MemberService on top of
// maps. Its message side is exposed through Messages.
type Fake struct {
	mu sync.Mutex

	nextID   int
	channels map[string]*platform.Channel
	messages map[string]map[string]platform.Content
	members  map[string]map[string]platform.Member

	DeletedMessages []platform.Message
	DeletedChannels []string
	Edits           []Edit
	Pins            []platform.Message
	Sent            []Edit

	// FailMessageDelete makes Delete fail with ErrInjected for these message ids.
	FailMessageDelete map[string]bool
}

// New returns an empty fake platform.
func New() *Fake {
	return &Fake{
		channels:          make(map[string]*platform.Channel),
		messages:          make(map[string]map[string]platform.Content),
		members:           make(map[string]map[string]platform.Member),
		FailMessageDelete: make(map[string]bool),
	}
}

// Services returns the fake wired into every collaborator slot.
func (f *Fake) Services() platform.Services {
	return platform.Services{Channels: f, Messages: Messages{f}, Members: f}
}

// Messages is the platform.MessageService view of a Fake.
type Messages struct{ f *Fake }

func (f *Fake) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

// AddChannel registers a channel directly.
func (f *Fake) AddChannel(ch platform.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := ch
	f.channels[ch.ID] = &c
}

// AddMember registers a guild member.
func (f *Fake) AddMember(guildID string, m platform.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[guildID] == nil {
		f.members[guildID] = make(map[string]platform.Member)
	}
	f.members[guildID][m.ID] = m
}

// RemoveChannel drops a channel as if it had been deleted out-of-band.
func (f *Fake) RemoveChannel(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, channelID)
	delete(f.messages, channelID)
}

// RemoveMessage drops a message as if it had been deleted out-of-band.
func (f *Fake) RemoveMessage(channelID, messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages[channelID], messageID)
}

// PutMessage registers a message directly and returns it.
func (f *Fake) PutMessage(channelID string, content platform.Content) platform.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("m")
	if f.messages[channelID] == nil {
		f.messages[channelID] = make(map[string]platform.Content)
	}
	f.messages[channelID][id] = content
	return platform.Message{ID: id, ChannelID: channelID}
}

// Channel returns a copy of a registered channel.
func (f *Fake) Channel(channelID string) (platform.Channel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.Channel{}, false
	}
	return *ch, true
}

// MessageContent returns the current content of a message.
func (f *Fake) MessageContent(channelID, messageID string) (platform.Content, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.messages[channelID][messageID]
	return c, ok
}

// Resolve implements platform.ChannelService.
func (f *Fake) Resolve(_ context.Context, channelID string) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	c := *ch
	return &c, nil
}

// Create implements platform.ChannelService.
func (f *Fake) Create(_ context.Context, guildID, name string, opts platform.ChannelOptions) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := &platform.Channel{ID: f.id("c"), GuildID: guildID, ParentID: opts.ParentID, Name: name}
	f.channels[ch.ID] = ch
	c := *ch
	return &c, nil
}

// Delete implements platform.ChannelService.
func (f *Fake) Delete(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(f.channels, channelID)
	delete(f.messages, channelID)
	f.DeletedChannels = append(f.DeletedChannels, channelID)
	return nil
}

// Rename implements platform.ChannelService.
func (f *Fake) Rename(_ context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.Name = name
	return nil
}

// Reparent implements platform.ChannelService.
func (f *Fake) Reparent(_ context.Context, channelID, parentID string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.ParentID = parentID
	return nil
}

// Send implements platform.MessageService.
func (m Messages) Send(_ context.Context, channelID string, content platform.Content) (*platform.Message, error) {
	f := m.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return nil, platform.ErrNotFound
	}
	id := f.id("m")
	if f.messages[channelID] == nil {
		f.messages[channelID] = make(map[string]platform.Content)
	}
	f.messages[channelID][id] = content
	msg := platform.Message{ID: id, ChannelID: channelID}
	f.Sent = append(f.Sent, Edit{Message: msg, Content: content})
	return &msg, nil
}

// Edit implements platform.MessageService.
func (m Messages) Edit(_ context.Context, msg platform.Message, content platform.Content) error {
	f := m.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[msg.ChannelID][msg.ID]; !ok {
		return platform.ErrNotFound
	}
	f.messages[msg.ChannelID][msg.ID] = content
	f.Edits = append(f.Edits, Edit{Message: msg, Content: content})
	return nil
}

// Delete implements platform.MessageService.
func (m Messages) Delete(_ context.Context, msg platform.Message) error {
	f := m.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailMessageDelete[msg.ID] {
		return ErrInjected
	}
	if _, ok := f.messages[msg.ChannelID][msg.ID]; !ok {
		return platform.ErrNotFound
	}
	delete(f.messages[msg.ChannelID], msg.ID)
	f.DeletedMessages = append(f.DeletedMessages, msg)
	return nil
}

// Fetch implements platform.MessageService.
func (m Messages) Fetch(_ context.Context, channelID, messageID string) (*platform.Message, error) {
	f := m.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[channelID][messageID]; !ok {
		return nil, platform.ErrNotFound
	}
	return &platform.Message{ID: messageID, ChannelID: channelID}, nil
}

// Pin implements platform.MessageService.
func (m Messages) Pin(_ context.Context, msg platform.Message) error {
	f := m.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[msg.ChannelID][msg.ID]; !ok {
		return platform.ErrNotFound
	}
	f.Pins = append(f.Pins, msg)
	return nil
}

// Member implements platform.MemberService.
func (f *Fake) Member(_ context.Context, guildID, memberID string) (*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[guildID][memberID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return &m, nil
}
