package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// setLockdown flips the guild lockdown. While active, every new joiner is kicked.
func (h *Handler) setLockdown(ctx context.Context, guildID, actorID uint64, enable bool) (*discordgo.MessageEmbed, error) {
	if enable {
		changed, err := h.lockdown.ActivateLockdown(ctx, guildID, fmt.Sprintf("Manual lockdown by <@%d>", actorID))
		if err != nil {
			return nil, fmt.Errorf("failed to activate lockdown: %w", err)
		}
		if !changed {
			return lockdownEmbed("🔒 Lockdown Already Active", "New members are already being removed on join", 0xED4245), nil
		}
		return lockdownEmbed("🔒 Lockdown Enabled", "New members will be kicked on join until lockdown is disabled", 0xED4245), nil
	}

	changed, err := h.lockdown.DeactivateLockdown(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate lockdown: %w", err)
	}
	if !changed {
		return lockdownEmbed("🔓 Lockdown Not Active", "The server was not in lockdown", 0x2B2D31), nil
	}
	return lockdownEmbed("🔓 Lockdown Disabled", "New members can join normally", 0x57F287), nil
}

func lockdownEmbed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Footer:      footer(),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}
