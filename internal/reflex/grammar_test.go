package reflex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGrammarMatches(t *testing.T) {
	g, err := DefaultGrammar()
	require.NoError(t, err)

	tests := []struct {
		text     string
		command  string
		entities map[string]string
	}{
		{"remind me to call mom in 30 minutes", CmdSetReminder, map[string]string{"text": "call mom", "time": "in 30 minutes"}},
		{"Jarvis, please remind me to take out the trash at 7pm.", CmdSetReminder, map[string]string{"text": "take out the trash", "time": "at 7pm"}},
		{"set a reminder to stretch", CmdSetReminder, map[string]string{"text": "stretch"}},
		{"search for rust ownership", CmdSearchWeb, map[string]string{"query": "rust ownership"}},
		{"look up the weather in Boston", CmdSearchWeb, map[string]string{"query": "the weather in Boston"}},
		{"play lofi beats on youtube", CmdPlayMusic, map[string]string{"query": "lofi beats", "source": "youtube"}},
		{"stop the music", CmdStopMusic, map[string]string{}},
		{"set the volume to 40%", CmdSetVolume, map[string]string{"volume": "40"}},
		{"read my emails", CmdReadEmails, map[string]string{}},
		{"check my email from Alice", CmdReadEmails, map[string]string{"filter": "Alice"}},
		{"download https://x.io/a.zip as a.zip", CmdDownloadFile, map[string]string{"url": "https://x.io/a.zip", "filename": "a.zip"}},
		{"download the file", CmdDownloadFile, map[string]string{}},
		{"send an email to bob@example.com saying running late", CmdSendEmail, map[string]string{"to": "bob@example.com", "body": "running late"}},
		{"add task buy milk", CmdAddTask, map[string]string{"title": "buy milk"}},
		{"add eggs to my task list", CmdAddTask, map[string]string{"title": "eggs"}},
		{"show my tasks", CmdListTasks, map[string]string{}},
		{"list my completed tasks", CmdListTasks, map[string]string{"filter": "completed"}},
		{"set personality to serious", CmdChangePersonality, map[string]string{"personality": "serious"}},
		{"be more funny", CmdChangePersonality, map[string]string{"personality": "funny"}},
		{"change theme to light", CmdChangeTheme, map[string]string{"theme": "light"}},
		{"switch to dark mode", CmdChangeTheme, map[string]string{"theme": "dark"}},
		{"stop talking", CmdStopSpeaking, map[string]string{}},
		{"what's the date today", CmdGetDate, map[string]string{"what": "date"}},
		{"what time is it?", CmdGetDate, map[string]string{"what": "time"}},
		{"system status", CmdSystemStatus, map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			m, ok := g.Match(tt.text)
			require.True(t, ok, "no match for %q", tt.text)
			assert.Equal(t, tt.command, m.Command)
			assert.Equal(t, tt.entities, m.Entities)
			assert.InDelta(t, DefaultConfidence, m.Confidence, 1e-9)
		})
	}
}

func TestGrammarNoMatch(t *testing.T) {
	g, err := DefaultGrammar()
	require.NoError(t, err)
	for _, text := range []string{"", "I had a long day", "hello jarvis", "what do you think about rust?"} {
		_, ok := g.Match(text)
		assert.False(t, ok, text)
	}
}

func TestNormalizeCommandText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Hey Jarvis, search for cats!", "search for cats"},
		{"jarvis: could you play jazz please?", "play jazz"},
		{"  stop   talking. ", "stop talking"},
		{"Jarvis", "Jarvis"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCommandText(tt.in))
		})
	}
}

func TestLoadDirOverridesAndDefaults(t *testing.T) {
	g, err := DefaultGrammar()
	require.NoError(t, err)

	dir := t.TempDir()
	custom := `reflexes:
  - name: search
    command: searchWeb
    priority: 50
    confidence: 0.7
    trigger:
      pattern: '^ask the internet (?:about )?(.+)$'
      extract: [query]
  - name: lights
    command: lightsOn
    priority: 90
    defaults:
      room: living room
    trigger:
      pattern: '^lights on(?: in the (\w+))?$'
      extract: [room]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(custom), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("reflexes: [{name: x"), 0644))

	n, err := g.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	m, ok := g.Match("ask the internet about go generics")
	require.True(t, ok)
	assert.Equal(t, "go generics", m.Entities["query"])
	assert.InDelta(t, 0.7, m.Confidence, 1e-9)

	_, ok = g.Match("search for cats")
	assert.False(t, ok, "built-in search reflex should be replaced")

	m, ok = g.Match("lights on")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"room": "living room"}, m.Entities)
	m, _ = g.Match("lights on in the kitchen")
	assert.Equal(t, "kitchen", m.Entities["room"])

	assert.Contains(t, g.Commands(), "lightsOn")
}

func TestParseGrammarRejectsBadReflexes(t *testing.T) {
	_, err := ParseGrammar([]byte(`reflexes: [{name: a, command: b, trigger: {pattern: "("}}]`))
	assert.Error(t, err)
	_, err = ParseGrammar([]byte(`reflexes: [{name: a, trigger: {pattern: "x"}}]`))
	assert.Error(t, err)
	_, err = ParseGrammar([]byte(`reflexes: [{name: a, command: b, trigger: {pattern: "x", extract: [y]}}]`))
	assert.Error(t, err)
}
