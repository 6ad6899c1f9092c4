package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vthunder/jarvis/internal/assistant"
	"github.com/vthunder/jarvis/internal/effectors"
	"github.com/vthunder/jarvis/internal/tui"
	"github.com/vthunder/jarvis/internal/types"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to Jarvis interactively",
		Long:  "Start an interactive session. Type 'quit' or press Esc to leave. When stdin is not a terminal, lines are read and answered one at a time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if isTerminal(cmd.InOrStdin()) && isTerminal(cmd.OutOrStdout()) {
				return runChatUI(ctx)
			}

			out := cmd.OutOrStdout()
			speaker := effectors.NewConsoleSpeaker(out)
			a, err := newApp(ctx, cfg, appOptions{Speaker: speaker, Reminders: true})
			if err != nil {
				return err
			}
			defer a.Close()

			greeting := a.assistant.Greeting()
			if err := speak(ctx, out, speaker, greeting); err != nil {
				return err
			}
			return chatLoop(ctx, cmd.InOrStdin(), out, a.assistant, speaker)
		},
	}
}

func runChatUI(ctx context.Context) error {
	speaker := tui.NewSpeaker()
	a, err := newApp(ctx, cfg, appOptions{Speaker: speaker, Reminders: true})
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(ctx, tui.Options{
		Asker:    a.assistant,
		Title:    "Jarvis · " + a.session.Current().Name,
		Greeting: a.assistant.Greeting(),
		Speaker:  speaker,
	})
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// chatLoop is the line-oriented chat used for piped input. It reads one
// utterance per line until EOF, quit or cancellation.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, a *assistant.Assistant, speaker effectors.Speaker) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "you> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if tui.IsQuit(line) {
			return speak(ctx, out, speaker, tui.Goodbye)
		}

		resp, err := a.Process(ctx, line)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "(%v)\n", err)
			continue
		}
		if err := speak(ctx, out, speaker, resp); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
}

// speak voices the reply and prints its mood and animation
func speak(ctx context.Context, out io.Writer, speaker effectors.Speaker, resp types.Response) error {
	if err := speaker.Speak(ctx, resp.Text, resp.Voice); err != nil {
		return err
	}
	fmt.Fprintf(out, "        %s\n", tui.MoodTag(resp.Mood, resp.Animation))
	return nil
}

func newSayCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "say TEXT...",
		Short: "Process one utterance and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.assistant.ProcessTurn(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full analysis as JSON")
	return cmd
}

func printResult(out io.Writer, res assistant.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprintf(out, "%s\n%s\n", res.Response.Text, tui.MoodTag(res.Response.Mood, res.Response.Animation))
	return err
}
