package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vthunder/jarvis/internal/types"
)

// ErrSpeechQueueFull is returned when the UI isn't draining speech
var ErrSpeechQueueFull = errors.New("speech queue full")

// Speaker hands speech to a running chat UI. It implements effectors.Speaker.
type Speaker struct {
	ch chan SpeechMsg
}

// NewSpeaker creates a speaker with a small queue
func NewSpeaker() *Speaker {
	return &Speaker{ch: make(chan SpeechMsg, 16)}
}

// Speak queues text for the transcript
func (s *Speaker) Speak(ctx context.Context, text string, voice types.Voice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.ch <- SpeechMsg{Text: text, Voice: voice}:
		return nil
	default:
		return ErrSpeechQueueFull
	}
}

// Stop is a no-op; text already shown stays shown
func (s *Speaker) Stop() error { return nil }

// Speech is the queue the UI reads from
func (s *Speaker) Speech() <-chan SpeechMsg { return s.ch }

// Options configures Run
type Options struct {
	Asker    Asker
	Title    string
	Greeting types.Response
	Speaker  *Speaker
}

// Run starts the chat UI and blocks until the user quits or ctx ends
func Run(ctx context.Context, opts Options) error {
	var speech <-chan SpeechMsg
	if opts.Speaker != nil {
		speech = opts.Speaker.Speech()
	}
	title := opts.Title
	if title == "" {
		title = "Jarvis"
	}

	program := tea.NewProgram(
		NewModel(ctx, opts.Asker, title, opts.Greeting, speech),
		tea.WithAltScreen(),
	)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			program.Quit()
		case <-done:
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
