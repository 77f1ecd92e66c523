package commands

import (
	"context"
	"fmt"
	"time"

	"go-antiraid/internal/bot"
	"go-antiraid/internal/database"
	"go-antiraid/internal/decision"
	"go-antiraid/internal/detectors"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/models"
	"go-antiraid/pkg/util"

	"github.com/bwmarrin/discordgo"
)

const commandTimeout = 5 * time.Second

// Store is the persistence the commands write through.
type Store interface {
	AddWhitelist(ctx context.Context, guildID, userID uint64, reason string, addedBy uint64) error
	RemoveWhitelist(ctx context.Context, guildID, userID uint64) (bool, error)
	GetWhitelist(ctx context.Context, guildID uint64) ([]*database.WhitelistedUser, error)
	SaveTrap(ctx context.Context, guildID uint64, trapType models.TrapType, value string) error
	DeleteTrap(ctx context.Context, guildID uint64, trapType models.TrapType, value string) error
	CountHoneypotCatches(ctx context.Context, guildID uint64) (int, error)
	SetLogChannel(ctx context.Context, guildID, channelID uint64) error
	GetRecentIncidents(ctx context.Context, guildID uint64, limit int) ([]*models.Incident, error)
	CountForensicEvents(ctx context.Context, guildID uint64) (int, error)
	GetBehaviorProfile(ctx context.Context, guildID, userID uint64) (*database.BehaviorProfile, error)
	DeleteBehaviorProfile(ctx context.Context, guildID, userID uint64) error
}

// RaidStatusSource reports the live join analysis for a guild.
type RaidStatusSource interface {
	RaidStatus(guildID uint64) detectors.RaidAnalysis
}

// Deps are the components the command handler operates on.
type Deps struct {
	Store    Store
	Joins    *detectors.JoinLedger
	Behavior *detectors.BehaviorProfiler
	Honeypot *detectors.HoneypotRegistry
	Lockdown *decision.LockdownManager
	Raids    RaidStatusSource
	Summary  func() string
}

// Handler manages all command interactions
type Handler struct {
	store     Store
	joins     *detectors.JoinLedger
	behavior  *detectors.BehaviorProfiler
	honeypot  *detectors.HoneypotRegistry
	lockdown  *decision.LockdownManager
	raids     RaidStatusSource
	summary   func() string
	hostStats func(context.Context) HostStats
	now       func() time.Time
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		store:     d.Store,
		joins:     d.Joins,
		behavior:  d.Behavior,
		honeypot:  d.Honeypot,
		lockdown:  d.Lockdown,
		raids:     d.Raids,
		summary:   d.Summary,
		hostStats: gatherHostStats,
		now:       time.Now,
	}
}

// Initialize builds the command handler, hooks it into the session and
// registers the slash commands.
func Initialize(session *bot.Session, d Deps) (*Handler, error) {
	h := NewHandler(d)
	session.AddHandler(h.handleInteraction)

	commands := GetAllCommands()
	if err := session.RegisterCommands(commands); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}

	logging.Info("Command handler initialized with %d commands", len(commands))
	return h, nil
}

func (h *Handler) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	h.handleCommand(s, i)
}

// handleCommand routes slash commands to their handlers
func (h *Handler) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()

	if i.GuildID == "" || i.Member == nil {
		respondError(s, i, "commands can only be used inside a server")
		return
	}

	var err error
	switch data.Name {
	case "ping":
		err = handlePing(s, i)
	case "honeypot", "whitelist", "lockdown", "raidstatus", "logs", "stats":
		if !checkPermissions(s, i) {
			respondPermissionError(s, i, "You need Administrator permission to use this command.")
			return
		}
		err = h.handleAdminCommand(s, i, data)
	default:
		err = fmt.Errorf("unknown command: %s", data.Name)
	}

	if err != nil {
		logging.Error("Command error [%s]: %v", data.Name, err)
		respondError(s, i, err.Error())
	}
}

func (h *Handler) handleAdminCommand(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	guildID := util.ParseSnowflake(i.GuildID)
	actorID := util.ParseSnowflake(i.Member.User.ID)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var (
		embed *discordgo.MessageEmbed
		err   error
	)
	switch data.Name {
	case "honeypot":
		sub, opts := subcommand(data.Options)
		embed, err = h.honeypotCommand(ctx, guildID, sub, opts)
	case "whitelist":
		sub, opts := subcommand(data.Options)
		embed, err = h.whitelistCommand(ctx, guildID, actorID, sub, opts)
	case "lockdown":
		enable, ok := boolOption(optionMap(data.Options), "enable")
		if !ok {
			return fmt.Errorf("missing enable option")
		}
		embed, err = h.setLockdown(ctx, guildID, actorID, enable)
	case "raidstatus":
		embed = h.raidStatus(guildID)
	case "stats":
		embed, err = h.statsCommand(ctx, guildID, optionMap(data.Options))
	case "logs":
		channelID, ok := snowflakeOption(optionMap(data.Options), "channel")
		if !ok {
			return fmt.Errorf("missing channel option")
		}
		embed, err = h.setLogChannel(ctx, guildID, channelID)
	}
	if err != nil {
		return err
	}

	return respondEmbed(s, i, embed)
}

// subcommand returns the invoked subcommand and its options.
func subcommand(opts []*discordgo.ApplicationCommandInteractionDataOption) (string, map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if len(opts) == 0 || opts[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return "", nil
	}
	return opts[0].Name, optionMap(opts[0].Options)
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

// snowflakeOption reads a user, channel or role option. Discord sends these
// as the entity ID in string form.
func snowflakeOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) (uint64, bool) {
	opt, ok := opts[name]
	if !ok {
		return 0, false
	}
	raw, ok := opt.Value.(string)
	if !ok {
		return 0, false
	}
	id := util.ParseSnowflake(raw)
	return id, id != 0
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	opt, ok := opts[name]
	if !ok {
		return "", false
	}
	v, ok := opt.Value.(string)
	return v, ok
}

func boolOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) (bool, bool) {
	opt, ok := opts[name]
	if !ok {
		return false, false
	}
	v, ok := opt.Value.(bool)
	return v, ok
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

// respondError sends an ephemeral error message
func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("❌ Error: %s", message),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func footer() *discordgo.MessageEmbedFooter {
	return &discordgo.MessageEmbedFooter{Text: "Anti-Raid Protection"}
}
