package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// HasRole checks whether the invoking member holds roleID. Empty roleID always returns true.
func HasRole(member *discordgo.Member, roleID string) bool {
	if roleID == "" {
		return true
	}
	if member == nil {
		return false
	}
	return slices.Contains(member.Roles, roleID)
}
