package commands

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// handlePing reports gateway heartbeat and REST round-trip latency
func handlePing(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	startTime := time.Now()

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		return err
	}

	apiStart := time.Now()
	_, err = s.Channel(i.ChannelID)
	apiLatency := time.Since(apiStart)
	if err != nil {
		return fmt.Errorf("failed to measure API latency: %w", err)
	}

	embed := pingEmbed(s.HeartbeatLatency(), apiLatency, time.Since(startTime))

	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})

	return err
}

func pingEmbed(ws, api, response time.Duration) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🚀 Pong!",
		Color: latencyColor((ws + api) / 2),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "⚡ WebSocket",
				Value:  fmt.Sprintf("`%dms`", ws.Milliseconds()),
				Inline: true,
			},
			{
				Name:   "📡 API",
				Value:  fmt.Sprintf("`%dms`", api.Milliseconds()),
				Inline: true,
			},
			{
				Name:   "🔄 Response",
				Value:  fmt.Sprintf("`%dms`", response.Milliseconds()),
				Inline: true,
			},
		},
		Footer:    footer(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func latencyColor(avg time.Duration) int {
	switch {
	case avg < 30*time.Millisecond:
		return 0x00FF00 // Green
	case avg < 60*time.Millisecond:
		return 0xFFFF00 // Yellow
	case avg < 120*time.Millisecond:
		return 0xFFA500 // Orange
	default:
		return 0xFF0000 // Red
	}
}
