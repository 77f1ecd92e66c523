package commands

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// raidStatus summarises the live join analysis and lockdown state for a guild.
func (h *Handler) raidStatus(guildID uint64) *discordgo.MessageEmbed {
	analysis := h.raids.RaidStatus(guildID)
	lock := h.lockdown.Status(guildID)

	color := 0x57F287
	status := "🟢 Normal"
	switch {
	case lock.Active:
		color = 0xED4245
		status = "🔒 Lockdown"
	case analysis.IsRaid:
		color = 0xFEE75C
		status = "⚠️ Raid pattern detected"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Status", Value: status, Inline: false},
		{
			Name:   "Joins",
			Value:  fmt.Sprintf("5s `%d` · 30s `%d` · 1m `%d` · 5m `%d`", analysis.JoinRate5s, analysis.JoinRate30s, analysis.JoinRate1m, analysis.JoinRate5m),
			Inline: false,
		},
		{Name: "Threat Score", Value: fmt.Sprintf("`%.2f`", analysis.ThreatScore), Inline: true},
		{Name: "New Accounts", Value: fmt.Sprintf("`%.0f%%`", analysis.NewAccountRatio*100), Inline: true},
		{Name: "Name Similarity", Value: fmt.Sprintf("`%.0f%%`", analysis.UsernameSimilarity*100), Inline: true},
	}

	if len(analysis.Reasons) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Reasons",
			Value: strings.Join(analysis.Reasons, "\n"),
		})
	}
	if lock.Active {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Lockdown",
			Value: fmt.Sprintf("%s since <t:%d:R>", lock.Reason, lock.Since.Unix()),
		})
	}
	if h.summary != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Pipeline",
			Value: h.summary(),
		})
	}

	return &discordgo.MessageEmbed{
		Title:  "🛡️ Raid Status",
		Color:  color,
		Fields: fields,
		Footer: footer(),
	}
}
