// Package effectors delivers responses: spoken on the console or sent to Discord.
package effectors

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/vthunder/jarvis/internal/types"
)

// Speaker renders a response to the user
type Speaker interface {
	Speak(ctx context.Context, text string, voice types.Voice) error
	Stop() error
}

// ConsoleSpeaker writes speech to a writer, optionally one word at a time
type ConsoleSpeaker struct {
	w      io.Writer
	prefix string
	// wordDelay paces output; scaled down by voice speed
	wordDelay time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	writeMu sync.Mutex
}

// ConsoleOption configures a ConsoleSpeaker
type ConsoleOption func(*ConsoleSpeaker)

// WithPrefix sets the line prefix
func WithPrefix(p string) ConsoleOption {
	return func(s *ConsoleSpeaker) { s.prefix = p }
}

// WithWordDelay paces output word by word
func WithWordDelay(d time.Duration) ConsoleOption {
	return func(s *ConsoleSpeaker) { s.wordDelay = d }
}

// NewConsoleSpeaker creates a speaker writing to w
func NewConsoleSpeaker(w io.Writer, opts ...ConsoleOption) *ConsoleSpeaker {
	s := &ConsoleSpeaker{w: w, prefix: "jarvis> "}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak writes text. A concurrent Stop cuts it short.
func (s *ConsoleSpeaker) Speak(ctx context.Context, text string, voice types.Voice) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.wordDelay <= 0 {
		_, err := fmt.Fprintf(s.w, "%s%s\n", s.prefix, text)
		return err
	}

	delay := s.wordDelay
	if voice.Speed > 0 {
		delay = time.Duration(float64(delay) / voice.Speed)
	}
	if _, err := io.WriteString(s.w, s.prefix); err != nil {
		return err
	}
	for i, word := range strings.Fields(text) {
		if i > 0 {
			select {
			case <-ctx.Done():
				io.WriteString(s.w, " …\n")
				return ctx.Err()
			case <-time.After(delay):
			}
			io.WriteString(s.w, " ")
		}
		if _, err := io.WriteString(s.w, word); err != nil {
			return err
		}
	}
	_, err := io.WriteString(s.w, "\n")
	return err
}

// Stop interrupts speech in progress
func (s *ConsoleSpeaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}
