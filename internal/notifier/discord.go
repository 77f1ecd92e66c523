package notifier

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/database"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/models"
)

type EmbedSender interface {
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
}

// SessionSender posts embeds through a gateway session.
type SessionSender struct {
	Session *discordgo.Session
}

func (s SessionSender) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := s.Session.ChannelMessageSendEmbed(channelID, embed)
	return err
}

type GuildConfigSource interface {
	GetGuildConfig(ctx context.Context, guildID uint64) (*database.GuildConfig, error)
}

// IncidentNotifier posts an embed for every incident to the guild's log
// channel, or to the fallback alert channel when the guild has none.
type IncidentNotifier struct {
	sender   EmbedSender
	guilds   GuildConfigSource
	fallback string
	async    bool
}

func NewIncidentNotifier(sender EmbedSender, guilds GuildConfigSource, fallbackChannel string) *IncidentNotifier {
	return &IncidentNotifier{sender: sender, guilds: guilds, fallback: fallbackChannel, async: true}
}

func (n *IncidentNotifier) channelFor(ctx context.Context, guildID uint64) string {
	if n.guilds != nil {
		gc, err := n.guilds.GetGuildConfig(ctx, guildID)
		if err != nil {
			logging.Warn("Failed to load log channel for guild %d: %v", guildID, err)
		} else if gc.LogChannelID != "" {
			return gc.LogChannelID
		}
	}
	return n.fallback
}

func (n *IncidentNotifier) NotifyIncident(ctx context.Context, inc *models.Incident) {
	if n.sender == nil {
		return
	}
	channelID := n.channelFor(ctx, inc.GuildID)
	if channelID == "" {
		return
	}

	embed := IncidentEmbed(inc)
	send := func() {
		if err := n.sender.SendEmbed(channelID, embed); err != nil {
			logging.Warn("Failed to post incident %s to channel %s: %v", inc.ID, channelID, err)
		}
	}
	if n.async {
		go send()
		return
	}
	send()
}

func severityColor(severity string) int {
	switch severity {
	case "critical":
		return 0xED4245
	case "high":
		return 0xE67E22
	case "medium":
		return 0xFEE75C
	default:
		return 0x5865F2
	}
}

func incidentTitle(incidentType string) string {
	switch incidentType {
	case models.IncidentRaidDetection:
		return "🚨 Raid Detected"
	case models.IncidentBehavioralThreat:
		return "⚠️ Behavioral Threat Detected"
	default:
		return "Incident"
	}
}

// IncidentEmbed renders an incident for a log channel.
func IncidentEmbed(inc *models.Incident) *discordgo.MessageEmbed {
	action := inc.ActionTaken
	if action == "" {
		action = "none"
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "👤 Member",
			Value:  fmt.Sprintf("<@%d> (`%d`)", inc.UserID, inc.UserID),
			Inline: true,
		},
		{
			Name:   "📊 Threat Score",
			Value:  fmt.Sprintf("**%.2f** (%s)", inc.ThreatScore, inc.Severity),
			Inline: true,
		},
		{
			Name:   "🔨 Action",
			Value:  action,
			Inline: true,
		},
	}

	if reasons, ok := inc.Evidence["reasons"].([]string); ok && len(reasons) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Reasons",
			Value: "• " + strings.Join(reasons, "\n• "),
		})
	}

	if traps, ok := inc.Evidence["honeypot_traps"].([]map[string]interface{}); ok && len(traps) > 0 {
		seen := make(map[string]bool)
		for _, t := range traps {
			seen[fmt.Sprint(t["trap_type"])] = true
		}
		kinds := make([]string, 0, len(seen))
		for k := range seen {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "🍯 Honeypots",
			Value: fmt.Sprintf("%d catches (%s)", len(traps), strings.Join(kinds, ", ")),
		})
	}

	created := inc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	fields = append(fields, &discordgo.MessageEmbedField{
		Name:  "🕐 Timestamp",
		Value: fmt.Sprintf("<t:%d:F>", created.Unix()),
	})

	return &discordgo.MessageEmbed{
		Title:       incidentTitle(inc.IncidentType),
		Color:       severityColor(inc.Severity),
		Description: inc.Description,
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Incident " + inc.ID,
		},
		Timestamp: created.Format(time.RFC3339),
	}
}
