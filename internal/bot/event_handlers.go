package bot

import (
	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/ingest"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
	"go-antiraid/pkg/util"
)

// EventSink accepts gateway events for detection.
type EventSink interface {
	Submit(ev ingest.Event) bool
}

// MemberJoinFromGateway maps a join notification. It reports false for
// events without a guild or user.
func MemberJoinFromGateway(m *discordgo.GuildMemberAdd) (models.MemberJoin, bool) {
	if m == nil || m.Member == nil || m.User == nil || m.GuildID == "" {
		return models.MemberJoin{}, false
	}

	userID := util.ParseSnowflake(m.User.ID)
	guildID := util.ParseSnowflake(m.GuildID)
	if userID == 0 || guildID == 0 {
		return models.MemberJoin{}, false
	}

	return models.MemberJoin{
		GuildID:        guildID,
		UserID:         userID,
		Username:       m.User.Username,
		AvatarHash:     m.User.Avatar,
		AccountCreated: util.SnowflakeTime(userID),
		Bot:            m.User.Bot,
	}, true
}

// MessageFromGateway maps a message notification. Direct messages keep a
// zero GuildID and are skipped downstream.
func MessageFromGateway(m *discordgo.MessageCreate) (models.MessageEvent, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return models.MessageEvent{}, false
	}

	return models.MessageEvent{
		GuildID:   util.ParseSnowflake(m.GuildID),
		ChannelID: util.ParseSnowflake(m.ChannelID),
		UserID:    util.ParseSnowflake(m.Author.ID),
		MessageID: util.ParseSnowflake(m.ID),
		Content:   m.Content,
		Bot:       m.Author.Bot,
	}, true
}

// SetupEventHandlers feeds joins and messages into sink and tracks gateway health.
func (s *Session) SetupEventHandlers(sink EventSink, health *metrics.GatewayHealth) {
	logging.Info("Setting up Discord event handlers...")

	s.discord.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		logging.Info("Bot ready! Connected as %s in %d guilds", r.User.Username, len(r.Guilds))
		health.SetConnected(true)
	})

	s.discord.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		logging.Info("Gateway session resumed")
		health.SetConnected(true)
	})

	s.discord.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		logging.Warn("Gateway disconnected")
		health.SetConnected(false)
	})

	s.discord.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
		health.RecordEvent()
		join, ok := MemberJoinFromGateway(m)
		if !ok {
			return
		}
		sink.Submit(ingest.JoinEvent(join))
	})

	s.discord.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		health.RecordEvent()
		msg, ok := MessageFromGateway(m)
		if !ok || msg.Bot || msg.GuildID == 0 {
			return
		}
		if msg.UserID == s.BotID {
			return
		}
		sink.Submit(ingest.MessageEvent(msg))
	})
}
