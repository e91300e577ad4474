package party

import (
	"fmt"
	"strings"

	"github.com/stake-plus/raidparty/src/platform"
)

// MessageRef identifies a tracked message as "channelId:messageId".
type MessageRef string

// NewMessageRef builds a reference from its parts.
func NewMessageRef(channelID, messageID string) MessageRef {
	return MessageRef(channelID + ":" + messageID)
}

// RefOf returns the reference for a platform message.
func RefOf(msg platform.Message) MessageRef {
	return NewMessageRef(msg.ChannelID, msg.ID)
}

// ParseMessageRef validates a raw reference.
func ParseMessageRef(raw string) (MessageRef, error) {
	ref := MessageRef(raw)
	if _, _, err := ref.Split(); err != nil {
		return "", err
	}
	return ref, nil
}

// Split returns the channel and message ids.
func (r MessageRef) Split() (channelID, messageID string, err error) {
	channelID, messageID, ok := strings.Cut(string(r), ":")
	if !ok || channelID == "" || messageID == "" || strings.Contains(messageID, ":") {
		return "", "", fmt.Errorf("party: malformed message reference %q", string(r))
	}
	return channelID, messageID, nil
}

// ChannelID returns the channel part, or "" when malformed.
func (r MessageRef) ChannelID() string {
	ch, _, _ := r.Split()
	return ch
}

// MessageID returns the message part, or "" when malformed.
func (r MessageRef) MessageID() string {
	_, id, _ := r.Split()
	return id
}

// Message converts the reference to a platform message handle.
func (r MessageRef) Message() platform.Message {
	ch, id, _ := r.Split()
	return platform.Message{ID: id, ChannelID: ch}
}
