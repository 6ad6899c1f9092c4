package senses

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessage(channel, guild, author, content string, mentions ...string) *discordgo.MessageCreate {
	m := &discordgo.Message{
		ID:        "m1",
		ChannelID: channel,
		GuildID:   guild,
		Content:   content,
		Author:    &discordgo.User{ID: author, Username: "user-" + author},
	}
	for _, id := range mentions {
		m.Mentions = append(m.Mentions, &discordgo.User{ID: id})
	}
	return &discordgo.MessageCreate{Message: m}
}

func TestDiscordSenseFiltering(t *testing.T) {
	var got []Message
	d, err := NewDiscordSense(DiscordConfig{Token: "t", ChannelID: "home", OwnerID: "owner"}, func(m Message) {
		got = append(got, m)
	})
	require.NoError(t, err)
	d.botID = "bot"

	d.handleMessage(nil, newMessage("home", "g", "owner", "search for cats"))
	d.handleMessage(nil, newMessage("elsewhere", "g", "alice", "not for me"))
	d.handleMessage(nil, newMessage("elsewhere", "g", "alice", "<@bot> what time is it?", "bot"))
	d.handleMessage(nil, newMessage("dm", "", "bob", "hello"))
	d.handleMessage(nil, newMessage("home", "g", "bot", "my own reply"))
	d.handleMessage(nil, newMessage("home", "g", "alice", "<@bot>", "bot"))

	require.Len(t, got, 3)
	assert.Equal(t, "search for cats", got[0].Content)
	assert.True(t, got[0].FromOwner)
	assert.Equal(t, "what time is it?", got[1].Content)
	assert.True(t, got[1].MentionsBot)
	assert.True(t, got[2].IsDM)
	assert.False(t, got[2].Timestamp.IsZero())
}

func TestNewDiscordSenseRequiresToken(t *testing.T) {
	_, err := NewDiscordSense(DiscordConfig{}, nil)
	assert.Error(t, err)
}
