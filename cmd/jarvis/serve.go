package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vthunder/jarvis/internal/assistant"
	"github.com/vthunder/jarvis/internal/effectors"
	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/mcp"
	"github.com/vthunder/jarvis/internal/senses"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve Jarvis as MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcp.NewServer("jarvis", version, mcp.Deps{
				Assistant: a.assistant,
				Tasks:     a.tasks,
				Session:   a.session,
				Stats:     a.assistant,
				Media:     a.player,
			})
			return srv.ServeStdio()
		},
	}
}

func newDiscordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discord",
		Short: "Run Jarvis as a Discord bot",
		Long:  "Answers DMs, mentions and messages in DISCORD_CHANNEL_ID. Reminders are posted to that channel.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDiscord(ctx)
		},
	}
}

func runDiscord(ctx context.Context) error {
	var handle func(senses.Message)
	sense, err := senses.NewDiscordSense(senses.DiscordConfig{
		Token:     cfg.Discord.Token,
		ChannelID: cfg.Discord.ChannelID,
		OwnerID:   cfg.Discord.OwnerID,
	}, func(m senses.Message) { handle(m) })
	if err != nil {
		return err
	}

	effector := effectors.NewDiscordEffector(sense.Session(), cfg.Discord.ChannelID)
	effector.SetOnError(func(id, errMsg string) {
		logging.Warn("discord", "message %s dropped: %s", id, errMsg)
	})

	a, err := newApp(ctx, cfg, appOptions{Speaker: effector, Reminders: true})
	if err != nil {
		return err
	}
	defer a.Close()

	handle = newDiscordHandler(ctx, a.assistant, effector)

	effector.Start()
	defer effector.Close()
	if err := sense.Start(); err != nil {
		return err
	}
	defer sense.Stop()

	logging.Info("discord", "jarvis is online")
	<-ctx.Done()
	logging.Info("discord", "shutting down")
	return nil
}

// replier is the outgoing side of the Discord bot
type replier interface {
	Submit(channelID, content string) string
	Typing(channelID string)
}

// asker runs one utterance
type asker interface {
	ProcessTurn(ctx context.Context, text string) (assistant.Result, error)
}

// newDiscordHandler answers messages one at a time in arrival order
func newDiscordHandler(ctx context.Context, a asker, out replier) func(senses.Message) {
	var mu sync.Mutex
	return func(m senses.Message) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}

		out.Typing(m.ChannelID)
		res, err := a.ProcessTurn(ctx, m.Content)
		switch {
		case errors.Is(err, assistant.ErrEmptyUtterance), errors.Is(err, context.Canceled):
			return
		case err != nil:
			logging.Error("discord", err, "failed to process message %s", m.MessageID)
			out.Submit(m.ChannelID, "Sorry, something went wrong on my side.")
			return
		}
		out.Submit(m.ChannelID, res.Response.Text)
	}
}
