package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vthunder/jarvis/internal/types"
)

// Colors
var (
	Accent  = lipgloss.Color("#0d7377")
	Muted   = lipgloss.AdaptiveColor{Light: "#737373", Dark: "#8a8a8a"}
	Text    = lipgloss.AdaptiveColor{Light: "#171717", Dark: "#f8f7f4"}
	Danger  = lipgloss.Color("#EF4444")
	Warm    = lipgloss.Color("#F59E0B")
	Calm    = lipgloss.Color("#3B82F6")
	Healthy = lipgloss.Color("#10B981")
	Thought = lipgloss.Color("#7C3AED")
)

// Styles groups the chat UI styles
type Styles struct {
	Title     lipgloss.Style
	Status    lipgloss.Style
	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
	Error     lipgloss.Style
	Input     lipgloss.Style
	Help      lipgloss.Style
}

// DefaultStyles returns the Jarvis theme
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(Text).
			Background(Accent).
			Bold(true).
			Padding(0, 1),
		Status: lipgloss.NewStyle().
			Foreground(Muted).
			Padding(0, 1),
		UserLabel: lipgloss.NewStyle().
			Foreground(Text).
			Bold(true),
		BotLabel: lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(Danger),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Accent).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(Muted),
	}
}

// MoodColor is the accent used for a mood
func MoodColor(mood types.Mood) lipgloss.TerminalColor {
	switch mood {
	case types.MoodExcited:
		return Warm
	case types.MoodEmpathetic:
		return Calm
	case types.MoodAlert:
		return Danger
	case types.MoodProfessional:
		return Healthy
	case types.MoodThinking:
		return Thought
	default:
		return Muted
	}
}

// MoodTag renders "[mood/animation]" in the mood's color
func MoodTag(mood types.Mood, animation string) string {
	return lipgloss.NewStyle().
		Foreground(MoodColor(mood)).
		Italic(true).
		Render("[" + string(mood) + "/" + animation + "]")
}
