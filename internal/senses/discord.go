// Package senses turns external input into utterances for the assistant.
package senses

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/jarvis/internal/logging"
)

// Message is an inbound Discord message addressed to Jarvis
type Message struct {
	ChannelID   string
	MessageID   string
	AuthorID    string
	AuthorName  string
	Content     string
	IsDM        bool
	MentionsBot bool
	FromOwner   bool
	Timestamp   time.Time
}

// DiscordConfig holds Discord connection settings
type DiscordConfig struct {
	Token     string
	ChannelID string
	OwnerID   string
}

// DiscordSense listens to Discord and hands addressed messages to onMessage
type DiscordSense struct {
	session   *discordgo.Session
	channelID string
	ownerID   string
	botID     string
	onMessage func(Message)
}

// NewDiscordSense creates a new Discord sense
func NewDiscordSense(cfg DiscordConfig, onMessage func(Message)) (*DiscordSense, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	sense := &DiscordSense{
		session:   session,
		channelID: cfg.ChannelID,
		ownerID:   cfg.OwnerID,
		onMessage: onMessage,
	}
	session.AddHandler(sense.handleMessage)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return sense, nil
}

// Start connects to Discord and begins listening
func (d *DiscordSense) Start() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	d.botID = d.session.State.User.ID
	logging.Info("discord-sense", "connected as %s", d.session.State.User.Username)
	return nil
}

// Stop disconnects from Discord
func (d *DiscordSense) Stop() error {
	return d.session.Close()
}

// Session returns the underlying Discord session (shared with the effector)
func (d *DiscordSense) Session() *discordgo.Session {
	return d.session
}

func (d *DiscordSense) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	msg, ok := d.accept(m)
	if !ok {
		return
	}
	logging.Debug("discord-sense", "message from %s: %s", msg.AuthorName, logging.Truncate(msg.Content, 50))
	if d.onMessage != nil {
		d.onMessage(msg)
	}
}

// accept filters and converts a message. Jarvis answers DMs, mentions and
// anything in the configured channel, never itself or other bots.
func (d *DiscordSense) accept(m *discordgo.MessageCreate) (Message, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return Message{}, false
	}
	if m.Author.ID == d.botID || m.Author.Bot {
		return Message{}, false
	}

	isDM := m.GuildID == ""
	mentions := d.mentionsBot(m)
	inChannel := d.channelID == "" || m.ChannelID == d.channelID
	if !isDM && !mentions && !inChannel {
		return Message{}, false
	}

	content := strings.TrimSpace(d.stripMention(m.Content))
	if content == "" {
		return Message{}, false
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Message{
		ChannelID:   m.ChannelID,
		MessageID:   m.ID,
		AuthorID:    m.Author.ID,
		AuthorName:  m.Author.Username,
		Content:     content,
		IsDM:        isDM,
		MentionsBot: mentions,
		FromOwner:   d.ownerID != "" && m.Author.ID == d.ownerID,
		Timestamp:   ts,
	}, true
}

func (d *DiscordSense) mentionsBot(m *discordgo.MessageCreate) bool {
	for _, mention := range m.Mentions {
		if mention != nil && mention.ID == d.botID {
			return true
		}
	}
	return false
}

func (d *DiscordSense) stripMention(content string) string {
	if d.botID == "" {
		return content
	}
	content = strings.ReplaceAll(content, "<@"+d.botID+">", "")
	return strings.ReplaceAll(content, "<@!"+d.botID+">", "")
}
