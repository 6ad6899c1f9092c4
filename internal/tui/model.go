// Package tui is the interactive terminal chat: a scrolling transcript, a
// one-line input and the mood of the last reply.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vthunder/jarvis/internal/types"
)

// Asker runs one utterance through the pipeline
type Asker interface {
	Process(ctx context.Context, text string) (types.Response, error)
}

// Role of a transcript entry
const (
	RoleUser   = "user"
	RoleJarvis = "jarvis"
	RoleError  = "error"
)

// Entry is one line of the transcript
type Entry struct {
	Role      string
	Text      string
	Mood      types.Mood
	Animation string
}

// ReplyMsg carries the pipeline's answer to a sent utterance
type ReplyMsg struct {
	Response types.Response
	Err      error
}

// SpeechMsg is speech that arrives outside a reply, such as a reminder
type SpeechMsg struct {
	Text  string
	Voice types.Voice
}

// IsQuit reports whether line asks to leave the chat
func IsQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "quit", "exit", "bye":
		return true
	}
	return false
}

// Goodbye is the reply to a quit word
var Goodbye = types.Response{Text: "Goodbye!", Mood: types.MoodNeutral, Animation: "idle"}

// Model is the chat UI state
type Model struct {
	ctx    context.Context
	asker  Asker
	speech <-chan SpeechMsg
	title  string

	width  int
	height int
	ready  bool

	entries  []Entry
	viewport viewport.Model
	textarea textarea.Model

	styles Styles
	keys   KeyMap

	busy bool
	last types.Response
}

// NewModel creates the chat model. greeting opens the transcript; speech
// may be nil.
func NewModel(ctx context.Context, asker Asker, title string, greeting types.Response, speech <-chan SpeechMsg) Model {
	ta := textarea.New()
	ta.Placeholder = "Say something to Jarvis..."
	ta.Focus()
	ta.CharLimit = 2000
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	m := Model{
		ctx:      ctx,
		asker:    asker,
		speech:   speech,
		title:    title,
		viewport: viewport.New(80, 20),
		textarea: ta,
		styles:   DefaultStyles(),
		keys:     DefaultKeyMap(),
	}
	if greeting.Text != "" {
		m = m.addReply(greeting)
	}
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, listen(m.speech))
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m = m.resize()
		return m, nil

	case ReplyMsg:
		m.busy = false
		if msg.Err != nil {
			m.entries = append(m.entries, Entry{Role: RoleError, Text: msg.Err.Error()})
			return m.refresh(), nil
		}
		return m.addReply(msg.Response), nil

	case SpeechMsg:
		m.entries = append(m.entries, Entry{Role: RoleJarvis, Text: msg.Text, Mood: types.MoodAlert, Animation: "alert"})
		return m.refresh(), listen(m.speech)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		return m.send()

	case key.Matches(msg, m.keys.Clear):
		m.entries = nil
		return m.refresh(), nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" || m.busy {
		return m, nil
	}
	m.textarea.Reset()
	m.entries = append(m.entries, Entry{Role: RoleUser, Text: text})

	if IsQuit(text) {
		return m.addReply(Goodbye), tea.Quit
	}

	m.busy = true
	return m.refresh(), ask(m.ctx, m.asker, text)
}

func ask(ctx context.Context, asker Asker, text string) tea.Cmd {
	return func() tea.Msg {
		if asker == nil {
			return ReplyMsg{Err: errors.New("no assistant attached")}
		}
		resp, err := asker.Process(ctx, text)
		return ReplyMsg{Response: resp, Err: err}
	}
}

// listen waits for the next out-of-band speech
func listen(speech <-chan SpeechMsg) tea.Cmd {
	if speech == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-speech
		if !ok {
			return nil
		}
		return s
	}
}

func (m Model) addReply(resp types.Response) Model {
	m.last = resp
	m.entries = append(m.entries, Entry{Role: RoleJarvis, Text: resp.Text, Mood: resp.Mood, Animation: resp.Animation})
	return m.refresh()
}

func (m Model) refresh() Model {
	m.viewport.SetContent(m.Transcript())
	m.viewport.GotoBottom()
	return m
}

func (m Model) resize() Model {
	const chrome = 1 + 3 + 1 // title, bordered input, help
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(m.height-chrome, 1)
	m.textarea.SetWidth(max(m.width-4, 1))
	return m.refresh()
}

// Transcript renders every entry, wrapped to the viewport width
func (m Model) Transcript() string {
	wrap := lipgloss.NewStyle().Width(max(m.viewport.Width, 1))
	var sb strings.Builder
	for _, e := range m.entries {
		var line string
		switch e.Role {
		case RoleUser:
			line = m.styles.UserLabel.Render("You: ") + e.Text
		case RoleJarvis:
			line = m.styles.BotLabel.Render("Jarvis: ") + e.Text
			if e.Mood != "" {
				line += " " + MoodTag(e.Mood, e.Animation)
			}
		default:
			line = m.styles.Error.Render("(" + e.Text + ")")
		}
		sb.WriteString(wrap.Render(line))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Entries returns the transcript entries
func (m Model) Entries() []Entry { return m.entries }

// View implements tea.Model
func (m Model) View() string {
	if !m.ready {
		return "Starting Jarvis..."
	}

	status := "ready"
	switch {
	case m.busy:
		status = MoodTag(types.MoodThinking, "process") + " thinking..."
	case m.last.Mood != "":
		status = MoodTag(m.last.Mood, m.last.Animation)
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		m.styles.Title.Render(m.title),
		m.styles.Status.Render(status),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.styles.Input.Render(m.textarea.View()),
		m.styles.Help.Render(m.keys.helpLine()),
	)
}
