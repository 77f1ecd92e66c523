package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-antiraid/internal/models"
	"go-antiraid/pkg/util"

	"github.com/bwmarrin/discordgo"
)

// honeypotCommand runs one /honeypot subcommand. Trap changes are applied
// to the live registry and persisted so they survive a restart.
func (h *Handler) honeypotCommand(ctx context.Context, guildID uint64, sub string, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) (*discordgo.MessageEmbed, error) {
	switch sub {
	case "add_channel", "remove_channel":
		channelID, ok := snowflakeOption(opts, "channel")
		if !ok {
			return nil, fmt.Errorf("missing channel option")
		}
		value := util.Uint64ToString(channelID)
		if sub == "add_channel" {
			added := h.honeypot.RegisterHiddenChannel(guildID, channelID)
			if err := h.store.SaveTrap(ctx, guildID, models.TrapHiddenChannel, value); err != nil {
				return nil, fmt.Errorf("failed to save trap: %w", err)
			}
			return trapChangedEmbed("Hidden channel trap added", fmt.Sprintf("<#%s>", value), added), nil
		}
		removed := h.honeypot.UnregisterHiddenChannel(guildID, channelID)
		if err := h.store.DeleteTrap(ctx, guildID, models.TrapHiddenChannel, value); err != nil {
			return nil, fmt.Errorf("failed to delete trap: %w", err)
		}
		return trapChangedEmbed("Hidden channel trap removed", fmt.Sprintf("<#%s>", value), removed), nil

	case "add_command", "remove_command":
		command, ok := stringOption(opts, "command")
		command = strings.ToLower(strings.TrimSpace(command))
		if !ok || command == "" {
			return nil, fmt.Errorf("missing command option")
		}
		if sub == "add_command" {
			added := h.honeypot.RegisterFakeCommand(guildID, command)
			if err := h.store.SaveTrap(ctx, guildID, models.TrapFakeCommand, command); err != nil {
				return nil, fmt.Errorf("failed to save trap: %w", err)
			}
			return trapChangedEmbed("Fake command trap added", fmt.Sprintf("`%s`", command), added), nil
		}
		removed := h.honeypot.UnregisterFakeCommand(guildID, command)
		if err := h.store.DeleteTrap(ctx, guildID, models.TrapFakeCommand, command); err != nil {
			return nil, fmt.Errorf("failed to delete trap: %w", err)
		}
		return trapChangedEmbed("Fake command trap removed", fmt.Sprintf("`%s`", command), removed), nil

	case "list":
		return h.trapListEmbed(guildID), nil

	case "catches":
		if userID, ok := snowflakeOption(opts, "user"); ok {
			return catchesEmbed(userID, h.honeypot.Catches(guildID, userID), h.honeypot.ThreatMultiplier(guildID, userID)), nil
		}
		total, err := h.store.CountHoneypotCatches(ctx, guildID)
		if err != nil {
			return nil, fmt.Errorf("failed to count catches: %w", err)
		}
		return &discordgo.MessageEmbed{
			Title:       "🍯 Honeypot Catches",
			Description: fmt.Sprintf("%d catches recorded in this server", total),
			Color:       0x5865F2,
			Footer:      footer(),
		}, nil

	case "clear":
		userID, ok := snowflakeOption(opts, "user")
		if !ok {
			return nil, fmt.Errorf("missing user option")
		}
		cleared := len(h.honeypot.Catches(guildID, userID))
		h.honeypot.ClearCatches(guildID, userID)
		return &discordgo.MessageEmbed{
			Title:       "🧹 Catches Cleared",
			Description: fmt.Sprintf("Cleared %d catches for <@%d>", cleared, userID),
			Color:       0x57F287,
			Footer:      footer(),
		}, nil
	}

	return nil, fmt.Errorf("unknown honeypot subcommand: %s", sub)
}

func trapChangedEmbed(title, target string, changed bool) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "✅ " + title,
		Description: target,
		Color:       0x57F287,
		Footer:      footer(),
	}
	if !changed {
		embed.Title = "ℹ️ No change"
		embed.Description = target + " was already in that state"
		embed.Color = 0x2B2D31
	}
	return embed
}

func (h *Handler) trapListEmbed(guildID uint64) *discordgo.MessageEmbed {
	traps := h.honeypot.Traps(guildID)

	channels := "None"
	if len(traps.HiddenChannels) > 0 {
		lines := make([]string, 0, len(traps.HiddenChannels))
		for _, id := range traps.HiddenChannels {
			lines = append(lines, fmt.Sprintf("<#%d>", id))
		}
		channels = strings.Join(lines, "\n")
	}

	commands := "None"
	if len(traps.FakeCommands) > 0 {
		lines := make([]string, 0, len(traps.FakeCommands))
		for _, c := range traps.FakeCommands {
			lines = append(lines, fmt.Sprintf("`%s`", c))
		}
		commands = strings.Join(lines, "\n")
	}

	return &discordgo.MessageEmbed{
		Title: "🍯 Honeypot Traps",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Hidden Channels", Value: channels, Inline: true},
			{Name: "Fake Commands", Value: commands, Inline: true},
		},
		Footer: footer(),
	}
}

func catchesEmbed(userID uint64, catches []models.HoneypotCatch, multiplier float64) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, c := range catches {
		fmt.Fprintf(&b, "• %s `%s` (%.2f) <t:%d:R>\n", c.TrapType, c.TrapID, c.Severity, c.CaughtAt.Unix())
	}
	if b.Len() == 0 {
		b.WriteString("No catches")
	}

	return &discordgo.MessageEmbed{
		Title:       "🍯 Honeypot Catches",
		Description: fmt.Sprintf("<@%d>\n%s", userID, b.String()),
		Color:       0xFEE75C,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Threat Multiplier", Value: fmt.Sprintf("`%.2f`", multiplier), Inline: true},
			{Name: "Catches", Value: fmt.Sprintf("`%d`", len(catches)), Inline: true},
		},
		Footer:    footer(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
