package commands

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// setLogChannel stores the channel that receives incident reports.
func (h *Handler) setLogChannel(ctx context.Context, guildID, channelID uint64) (*discordgo.MessageEmbed, error) {
	if err := h.store.SetLogChannel(ctx, guildID, channelID); err != nil {
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}

	return &discordgo.MessageEmbed{
		Title:       "✅ Log Channel Configured",
		Description: fmt.Sprintf("Incident reports will be sent to <#%d>", channelID),
		Color:       0x57F287,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "📊 Report Format",
				Value:  "Each report includes:\n• Incident type and severity\n• Member and threat score\n• Action taken\n• Detection reasons",
				Inline: false,
			},
		},
		Footer: footer(),
	}, nil
}
