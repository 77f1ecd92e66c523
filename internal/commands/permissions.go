package commands

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// checkPermissions allows the server owner and any member whose resolved
// permissions include Administrator.
func checkPermissions(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.Member == nil || i.Member.User == nil {
		return false
	}
	if hasAdministrator(i.Member) {
		return true
	}
	return isGuildOwner(s, i.GuildID, i.Member.User.ID)
}

// hasAdministrator reads the permissions Discord resolves for the invoking
// member on every interaction.
func hasAdministrator(m *discordgo.Member) bool {
	return m.Permissions&discordgo.PermissionAdministrator != 0
}

func isGuildOwner(s *discordgo.Session, guildID, userID string) bool {
	if s == nil || s.State == nil {
		return false
	}
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return false
	}
	return guild.OwnerID == userID
}

// respondPermissionError sends a permission denied error response
func respondPermissionError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	embed := &discordgo.MessageEmbed{
		Title:       "Access Denied",
		Description: message,
		Color:       0x2B2D31,
		Footer:      footer(),
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}
