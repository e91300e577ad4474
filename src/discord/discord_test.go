package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/raidparty/src/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))

	unknownMessage := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage, Message: "Unknown Message"},
	}
	assert.True(t, platform.IsNotFound(translate(unknownMessage)))

	unknownChannel := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusBadRequest},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel},
	}
	assert.True(t, platform.IsNotFound(translate(fmt.Errorf("wrapped: %w", unknownChannel))))

	forbidden := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
		Message:  &discordgo.APIErrorMessage{Code: 50013, Message: "Missing Permissions"},
	}
	err := translate(forbidden)
	assert.False(t, platform.IsNotFound(err))
	assert.Same(t, forbidden, err)

	assert.False(t, platform.IsNotFound(translate(errors.New("timeout"))))
}

func TestToMember(t *testing.T) {
	m := toMember(&discordgo.Member{Nick: "Ash", User: &discordgo.User{ID: "U1", Username: "ash99", GlobalName: "Ash K"}})
	assert.Equal(t, "U1", m.ID)
	assert.Equal(t, "Ash", m.Name())

	m = toMember(&discordgo.Member{User: &discordgo.User{ID: "U2", Username: "misty", GlobalName: "Misty W"}})
	assert.Equal(t, "Misty W", m.Name())

	m = toMember(&discordgo.Member{User: &discordgo.User{ID: "U3", Username: "brock"}})
	assert.Equal(t, "brock", m.Name())
}

func TestRender_Box(t *testing.T) {
	msg := Render(platform.Content{Title: "Mewtwo @ Fountain", Body: "- Ash (coming)\n- Misty"})

	assert.True(t, strings.HasPrefix(msg.Content, "```ansi\n"))
	assert.True(t, strings.HasSuffix(msg.Content, "\n```"))
	require.Len(t, msg.BoxLines, 6)
	assert.Contains(t, msg.BoxLines[1], "Mewtwo @ Fountain")
	assert.Contains(t, msg.BoxLines[3], "• Ash (coming)")
	for _, line := range msg.BoxLines {
		assert.Equal(t, runeLen(msg.BoxLines[0]), runeLen(line))
	}
	assert.Nil(t, msg.Components)
}

func TestRender_LinksBecomeButtons(t *testing.T) {
	msg := Render(platform.Content{Body: "Map: https://maps.example.com/gym/42 and again https://maps.example.com/gym/42."})

	assert.NotContains(t, msg.Content, "https://")
	assert.Contains(t, msg.Content, "[Link 1]")
	assert.NotContains(t, msg.Content, "[Link 2]")
	require.Len(t, msg.Components, 1)
	row, ok := msg.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 1)
	button := row.Components[0].(discordgo.Button)
	assert.Equal(t, "https://maps.example.com/gym/42", button.URL)
	assert.Equal(t, "Link 1 · maps.example.com/gym", button.Label)
}

func TestRender_FitsOneMessage(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&body, "attendee number %d\n", i)
	}
	msg := Render(platform.Content{Title: "Big raid", Body: body.String()})

	assert.LessOrEqual(t, runeLen(msg.Content), MaxDiscordMessageLen)
	assert.Contains(t, msg.Content, truncatedLine)
	assert.Contains(t, msg.Content, "attendee number 0")
}

func TestRender_Empty(t *testing.T) {
	msg := Render(platform.Content{})
	assert.Contains(t, msg.Content, "_No content_")
	assert.Len(t, msg.BoxLines, 3)
}

func TestWrapURLsNoEmbed(t *testing.T) {
	assert.Equal(t, "see <https://a.example/x>.", WrapURLsNoEmbed("see https://a.example/x."))
	assert.Equal(t, "plain text", WrapURLsNoEmbed("plain text"))
}

func TestHasRole(t *testing.T) {
	member := &discordgo.Member{Roles: []string{"r1", "r2"}}
	assert.True(t, HasRole(member, ""))
	assert.True(t, HasRole(member, "r2"))
	assert.False(t, HasRole(member, "r3"))
	assert.False(t, HasRole(nil, "r1"))
}

func TestSubcommand(t *testing.T) {
	data := discordgo.ApplicationCommandInteractionData{
		Name: CommandParty,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: SubcommandRefresh, Type: discordgo.ApplicationCommandOptionSubCommand},
		},
	}
	assert.Equal(t, SubcommandRefresh, Subcommand(data))
	assert.Empty(t, Subcommand(discordgo.ApplicationCommandInteractionData{}))
}

func TestIsDuplicateCommandError(t *testing.T) {
	dup := &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: 50035, Message: "Application command with that name already exists"}}
	assert.True(t, isDuplicateCommandError(dup))
	assert.False(t, isDuplicateCommandError(errors.New("boom")))
}

func TestWrapURLsNoEmbed_AlreadyWrapped(t *testing.T) {
	assert.Equal(t, "<https://a.example/x> and <https://b.example>!", WrapURLsNoEmbed("<https://a.example/x> and https://b.example!"))
}

func TestDoWithRetry(t *testing.T) {
	ctx := context.Background()
	unavailable := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusServiceUnavailable, Status: "503"}}

	calls := 0
	err := doWithRetry(ctx, 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return unavailable
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	notFound := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound, Status: "404"}}
	err = doWithRetry(ctx, 3, time.Millisecond, func() error {
		calls++
		return notFound
	})
	assert.Same(t, notFound, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = doWithRetry(ctx, 2, time.Millisecond, func() error {
		calls++
		return unavailable
	})
	assert.ErrorIs(t, err, unavailable)
	assert.Equal(t, 2, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = doWithRetry(cancelled, 3, time.Hour, func() error { return unavailable })
	assert.ErrorIs(t, err, context.Canceled)
}
