package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/logging"
	"go-antiraid/pkg/util"
)

// Intents covers joins and message content, nothing more.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

type Session struct {
	discord *discordgo.Session
	BotID   uint64
}

func New(token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("failed to create Discord session: bot token is empty")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.Identify.Intents = Intents

	return &Session{discord: dg}, nil
}

func (s *Session) GetDiscord() *discordgo.Session {
	return s.discord
}

// Connect opens the gateway websocket.
func (s *Session) Connect() error {
	if err := s.discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	if s.discord.State.User != nil {
		s.BotID = util.ParseSnowflake(s.discord.State.User.ID)
		logging.Info("Bot ID: %d", s.BotID)
	}

	logging.Info("Discord bot connected successfully")
	return nil
}

func (s *Session) Close() error {
	if s.discord != nil {
		return s.discord.Close()
	}
	return nil
}

// RegisterCommands overwrites the global slash commands of the application.
func (s *Session) RegisterCommands(commands []*discordgo.ApplicationCommand) error {
	if s.discord.State.User == nil {
		return fmt.Errorf("failed to register commands: session is not connected")
	}
	logging.Info("Registering %d slash commands...", len(commands))

	created, err := s.discord.ApplicationCommandBulkOverwrite(s.discord.State.User.ID, "", commands)
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	for _, cmd := range created {
		logging.Info("Registered command: /%s", cmd.Name)
	}
	return nil
}

func (s *Session) AddHandler(handler interface{}) {
	s.discord.AddHandler(handler)
}
