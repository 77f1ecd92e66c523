package bot

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-antiraid/pkg/util"
)

func TestMemberJoinFromGateway(t *testing.T) {
	joined := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	userID := uint64(175928847299117063)

	join, ok := MemberJoinFromGateway(&discordgo.GuildMemberAdd{Member: &discordgo.Member{
		GuildID:  "81384788765712384",
		JoinedAt: joined.Add(-time.Minute),
		User:     &discordgo.User{ID: "175928847299117063", Username: "raider", Avatar: "abc"},
	}})
	require.True(t, ok)
	assert.Equal(t, uint64(81384788765712384), join.GuildID)
	assert.Equal(t, userID, join.UserID)
	assert.Equal(t, "raider", join.Username)
	assert.Equal(t, "abc", join.AvatarHash)
	assert.Equal(t, util.SnowflakeTime(userID), join.AccountCreated)
	assert.Equal(t, 2016, join.AccountCreated.Year())
}

func TestMemberJoinFromGateway_Invalid(t *testing.T) {
	_, ok := MemberJoinFromGateway(nil)
	assert.False(t, ok)

	_, ok = MemberJoinFromGateway(&discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: "1"}})
	assert.False(t, ok)

	_, ok = MemberJoinFromGateway(&discordgo.GuildMemberAdd{Member: &discordgo.Member{
		GuildID: "not-a-number",
		User:    &discordgo.User{ID: "2"},
	}})
	assert.False(t, ok)
}

func TestMessageFromGateway(t *testing.T) {
	sent := time.Date(2024, 6, 1, 12, 0, 1, 0, time.UTC)
	msg, ok := MessageFromGateway(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "30",
		ChannelID: "20",
		GuildID:   "10",
		Content:   "hello",
		Timestamp: sent,
		Author:    &discordgo.User{ID: "40", Bot: true},
	}})
	require.True(t, ok)
	assert.Equal(t, uint64(10), msg.GuildID)
	assert.Equal(t, uint64(20), msg.ChannelID)
	assert.Equal(t, uint64(40), msg.UserID)
	assert.Equal(t, uint64(30), msg.MessageID)
	assert.True(t, msg.Bot)

	dm, ok := MessageFromGateway(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "31", ChannelID: "21", Author: &discordgo.User{ID: "40"},
	}})
	require.True(t, ok)
	assert.Zero(t, dm.GuildID)

	_, ok = MessageFromGateway(&discordgo.MessageCreate{Message: &discordgo.Message{ID: "32"}})
	assert.False(t, ok)
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	s, err := New("abc")
	require.NoError(t, err)
	assert.Equal(t, Intents, s.GetDiscord().Identify.Intents)
}
