package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const whitelistViewLimit = 25

// whitelistCommand runs one /whitelist subcommand.
func (h *Handler) whitelistCommand(ctx context.Context, guildID, actorID uint64, sub string, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) (*discordgo.MessageEmbed, error) {
	switch sub {
	case "add":
		userID, ok := snowflakeOption(opts, "user")
		if !ok {
			return nil, fmt.Errorf("no user specified")
		}
		reason, _ := stringOption(opts, "reason")
		if reason == "" {
			reason = "Manually whitelisted"
		}
		if err := h.store.AddWhitelist(ctx, guildID, userID, reason, actorID); err != nil {
			return nil, fmt.Errorf("failed to add to whitelist: %w", err)
		}
		if err := h.resetMember(ctx, guildID, userID); err != nil {
			return nil, err
		}
		return &discordgo.MessageEmbed{
			Title:       "✅ Whitelist Updated",
			Description: fmt.Sprintf("<@%d> is now exempt from raid and spam detection", userID),
			Color:       0x57F287,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Reason", Value: reason, Inline: false},
			},
			Footer: footer(),
		}, nil

	case "remove":
		userID, ok := snowflakeOption(opts, "user")
		if !ok {
			return nil, fmt.Errorf("no user specified")
		}
		removed, err := h.store.RemoveWhitelist(ctx, guildID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to remove from whitelist: %w", err)
		}
		if !removed {
			return &discordgo.MessageEmbed{
				Title:       "ℹ️ Not Whitelisted",
				Description: fmt.Sprintf("<@%d> was not on the whitelist", userID),
				Color:       0x2B2D31,
				Footer:      footer(),
			}, nil
		}
		return &discordgo.MessageEmbed{
			Title:       "✅ Whitelist Updated",
			Description: fmt.Sprintf("<@%d> is no longer exempt", userID),
			Color:       0x57F287,
			Footer:      footer(),
		}, nil

	case "view":
		entries, err := h.store.GetWhitelist(ctx, guildID)
		if err != nil {
			return nil, fmt.Errorf("failed to load whitelist: %w", err)
		}
		if len(entries) == 0 {
			return &discordgo.MessageEmbed{
				Title:       "📋 Whitelist",
				Description: "No whitelisted members",
				Color:       0x2B2D31,
				Footer:      footer(),
			}, nil
		}

		var b strings.Builder
		for idx, e := range entries {
			if idx == whitelistViewLimit {
				fmt.Fprintf(&b, "…and %d more", len(entries)-whitelistViewLimit)
				break
			}
			fmt.Fprintf(&b, "• <@%d> %s (added by <@%d>)\n", e.UserID, e.Reason, e.AddedBy)
		}
		return &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("📋 Whitelist (%d)", len(entries)),
			Description: b.String(),
			Color:       0x5865F2,
			Footer:      footer(),
		}, nil
	}

	return nil, fmt.Errorf("unknown whitelist subcommand: %s", sub)
}

// resetMember drops the member's message history and honeypot catches so a
// later removal from the whitelist starts them from a clean profile.
func (h *Handler) resetMember(ctx context.Context, guildID, userID uint64) error {
	if h.behavior != nil {
		h.behavior.Forget(guildID, userID)
	}
	h.honeypot.ClearCatches(guildID, userID)
	if err := h.store.DeleteBehaviorProfile(ctx, guildID, userID); err != nil {
		return fmt.Errorf("failed to reset behavior profile: %w", err)
	}
	return nil
}
