package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/jarvis/internal/assistant"
	"github.com/vthunder/jarvis/internal/config"
	"github.com/vthunder/jarvis/internal/senses"
	"github.com/vthunder/jarvis/internal/storage"
	"github.com/vthunder/jarvis/internal/types"
)

// run executes the CLI against a fresh state directory
func run(t *testing.T, state string, args ...string) (string, error) {
	t.Helper()
	return runIn(t, "", state, args...)
}

func runIn(t *testing.T, stdin, state string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.ThresholdEnv, "")
	t.Setenv("JARVIS_STATE_PATH", "")
	t.Setenv("JARVIS_LOG_LEVEL", "")
	t.Setenv("JARVIS_DB_DRIVER", storage.DriverPureGo)
	t.Setenv("JARVIS_OLLAMA_MODEL", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--state", state, "--threshold", "0.7", "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	state := t.TempDir()
	_, err := run(t, state, "personality")
	require.NoError(t, err)
	assert.Equal(t, state, cfg.StatePath)
	assert.Equal(t, 0.7, cfg.CommandConfidenceThreshold)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestMissingThresholdFails(t *testing.T) {
	t.Setenv(config.ThresholdEnv, "")
	t.Setenv("JARVIS_STATE_PATH", t.TempDir())
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"personality"})
	err := root.Execute()
	assert.ErrorIs(t, err, config.ErrMissingThreshold)
}

func TestTasksAndSay(t *testing.T) {
	state := t.TempDir()

	out, err := run(t, state, "tasks", "add", "buy", "milk", "--priority", "high", "--due", "tomorrow")
	require.NoError(t, err)
	assert.Contains(t, out, "Added buy milk")

	out, err = run(t, state, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "buy milk")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "from now")

	out, err = run(t, state, "say", "--json", "list my tasks")
	require.NoError(t, err)
	var res assistant.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "listTasks", res.Classification.Command)
	require.NotNil(t, res.Command)
	assert.Equal(t, types.ResultSuccess, res.Command.Kind)
	assert.Contains(t, res.Response.Text, "buy milk")

	_, err = run(t, state, "tasks", "add", "x", "--due", "someday maybe")
	assert.Error(t, err)
}

func TestPersonalityCommand(t *testing.T) {
	state := t.TempDir()

	out, err := run(t, state, "personality")
	require.NoError(t, err)
	assert.Contains(t, out, "Personality: professional")

	out, err = run(t, state, "personality", "Friendly")
	require.NoError(t, err)
	assert.Contains(t, out, "Personality changed to friendly.")

	out, err = run(t, state, "personality")
	require.NoError(t, err)
	assert.Contains(t, out, "Personality: friendly")

	_, err = run(t, state, "personality", "pirate")
	assert.ErrorContains(t, err, "unknown personality")
}

func TestMoodCommand(t *testing.T) {
	state := t.TempDir()

	out, err := run(t, state, "mood")
	require.NoError(t, err)
	assert.Contains(t, out, "No mood logs in the last 7 days.")

	_, err = run(t, state, "say", "thanks, that was great")
	require.NoError(t, err)

	out, err = run(t, state, "mood", "--days", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 exchanges over the last 1 days:")
}

func TestStatsCommand(t *testing.T) {
	state := t.TempDir()

	_, err := run(t, state, "say", "I had a long day at work")
	require.NoError(t, err)

	out, err := run(t, state, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Commands (15)")
	assert.Contains(t, out, "setReminder")
	assert.Contains(t, out, "1 interactions, 1 succeeded, 0 failed")
	assert.Contains(t, out, "user: I had a long day at work")
	assert.Contains(t, out, "jarvis: ")

	out, err = run(t, state, "stats", "--json")
	require.NoError(t, err)
	var stats assistant.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Len(t, stats.Commands, 15)
	assert.Equal(t, []string{"I had a long day at work"}, stats.Context)
	require.NotNil(t, stats.Learning)
	assert.Equal(t, 1, stats.Learning.Total)
}

func TestCountList(t *testing.T) {
	assert.Equal(t, "statement 3, command 1, question 1", countList(map[string]int{"question": 1, "statement": 3, "command": 1}))
	assert.Empty(t, countList(nil))
}

func TestPrintMoods(t *testing.T) {
	var out bytes.Buffer
	printMoods(&out, []storage.MoodLog{{Mood: "happy"}, {Mood: "happy"}, {Mood: "neutral"}, {Mood: "happy"}}, 7)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "happy")
	assert.Contains(t, lines[1], "75.0%")
	assert.Contains(t, lines[2], "neutral")
}

func TestPrintTasks(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	due := now.Add(48 * time.Hour)
	var out bytes.Buffer
	printTasks(&out, []storage.Task{
		{ID: "0123456789abcdef", Title: "file taxes", Priority: "urgent", DueDate: &due},
		{ID: "short", Title: "stretch", Priority: "low", Completed: true},
	}, now)
	s := out.String()
	assert.Contains(t, s, "PRIORITY")
	assert.Contains(t, s, "01234567 ")
	assert.NotContains(t, s, "0123456789")
	assert.Contains(t, s, "urgent")
	assert.Contains(t, s, "2 days from now")
	assert.Contains(t, s, "done")

	out.Reset()
	printTasks(&out, nil, now)
	assert.Equal(t, "No tasks.\n", out.String())
}

func TestChatLoop(t *testing.T) {
	state := t.TempDir()

	out, err := runIn(t, "\nlist my tasks\nquit\n", state, "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "jarvis> ")
	assert.Contains(t, out, "[neutral/idle]")
	assert.Contains(t, out, "You have no tasks.")
	assert.Contains(t, out, "[professional/process]")
	assert.Contains(t, out, "jarvis> Goodbye!")
}

type fakeReplier struct {
	mu     sync.Mutex
	sent   []string
	typing []string
}

func (f *fakeReplier) Submit(channelID, content string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, channelID+":"+content)
	return "id"
}

func (f *fakeReplier) Typing(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, channelID)
}

type fakeAsker struct {
	err error
}

func (f fakeAsker) ProcessTurn(_ context.Context, text string) (assistant.Result, error) {
	if f.err != nil {
		return assistant.Result{}, f.err
	}
	return assistant.Result{Response: types.Response{Text: "echo: " + text}}, nil
}

func TestDiscordHandler(t *testing.T) {
	ctx := context.Background()
	r := &fakeReplier{}
	handle := newDiscordHandler(ctx, fakeAsker{}, r)
	handle(senses.Message{ChannelID: "c1", Content: "hello"})
	assert.Equal(t, []string{"c1:echo: hello"}, r.sent)
	assert.Equal(t, []string{"c1"}, r.typing)

	r = &fakeReplier{}
	newDiscordHandler(ctx, fakeAsker{err: errors.New("boom")}, r)(senses.Message{ChannelID: "c2", Content: "hi"})
	require.Len(t, r.sent, 1)
	assert.Contains(t, r.sent[0], "something went wrong")

	r = &fakeReplier{}
	newDiscordHandler(ctx, fakeAsker{err: assistant.ErrEmptyUtterance}, r)(senses.Message{ChannelID: "c3"})
	assert.Empty(t, r.sent)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	r = &fakeReplier{}
	newDiscordHandler(cancelled, fakeAsker{}, r)(senses.Message{ChannelID: "c4", Content: "late"})
	assert.Empty(t, r.sent)
	assert.Empty(t, r.typing)
}
