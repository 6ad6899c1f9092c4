package learning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/jarvis/internal/storage"
	"github.com/vthunder/jarvis/internal/types"
)

func turn(text, response string) types.ConversationTurn {
	return types.ConversationTurn{
		Utterance:      types.Utterance{Text: text},
		Classification: types.Classification{Intent: types.IntentCommand, Command: "openApp"},
		Response:       response,
		Timestamp:      time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Open the Pod Bay doors!", "open the pod bay doors"},
		{"  open   THE pod-bay doors?? ", "open the podbay doors"},
		{"", ""},
		{"...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("a b c", "a b c"))
	assert.InDelta(t, 0.5, Similarity("a b", "a c b d"), 1e-9)
	assert.Zero(t, Similarity("", "a"))
	assert.Zero(t, Similarity("x y", "a b"))
}

func TestReplayBoundaries(t *testing.T) {
	l := NewLog(Config{Enabled: true})
	ctx := context.Background()
	l.LogInteraction(ctx, turn("Open the pod bay doors", "I'm sorry, Dave."), true)

	tests := []struct {
		name   string
		text   string
		replay bool
	}{
		{"exact", "Open the pod bay doors", true},
		{"case", "OPEN THE POD BAY DOORS", true},
		{"whitespace", "  open   the pod bay   doors ", true},
		{"punctuation", "Open the pod bay doors!?", true},
		{"jaccard above", "open the pod bay doors now", true}, // 5/6
		{"jaccard below", "open the doors", false},             // 3/5
		{"low info", "thanks", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := l.HandleUnknownCommand(tt.text, types.Classification{})
			if !tt.replay {
				assert.Nil(t, resp)
				return
			}
			require.NotNil(t, resp)
			assert.Equal(t, "I'm sorry, Dave.", resp.Text)
		})
	}
}

func TestReplaySkipsFailuresAndPrefersLatest(t *testing.T) {
	l := NewLog(Config{Enabled: true, Threshold: 0.8})
	ctx := context.Background()
	l.LogInteraction(ctx, turn("dim the lights", "first"), true)
	l.LogInteraction(ctx, turn("dim the lights", "broken"), false)
	l.LogInteraction(ctx, turn("dim the lights", ""), true)
	l.LogInteraction(ctx, turn("Dim the lights.", "second"), true)

	resp := l.HandleUnknownCommand("dim the lights", types.Classification{})
	require.NotNil(t, resp)
	assert.Equal(t, "second", resp.Text)
}

func TestDisabledLogRecordsNothing(t *testing.T) {
	l := NewLog(Config{Enabled: false})
	l.LogInteraction(context.Background(), turn("x", "y"), true)
	assert.Zero(t, l.Stats().Total)
	assert.Nil(t, l.HandleUnknownCommand("x", types.Classification{}))
}

func TestPersistAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "learning.jsonl")
	l := NewLog(Config{Enabled: true, Path: path, MaxSize: 2})
	ctx := context.Background()
	l.LogInteraction(ctx, turn("one", "1"), true)
	l.LogInteraction(ctx, turn("two", "2"), false)
	l.LogInteraction(ctx, turn("three", "3"), true)
	assert.Len(t, l.Recent(0), 2)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	f.WriteString("{broken\n")
	f.Close()

	reloaded := NewLog(Config{Enabled: true, Path: path, MaxSize: 2})
	require.NoError(t, reloaded.Load(ctx))
	recent := reloaded.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Text)
	assert.Equal(t, "three", recent[1].Text)

	stats := reloaded.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 2, stats.ByCommand["openApp"])
}

type fakeStore struct {
	added []storage.Interaction
	err   error
}

func (f *fakeStore) AddInteraction(_ context.Context, in storage.Interaction) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, in)
	return nil
}

func (f *fakeStore) RecentInteractions(_ context.Context, limit int) ([]storage.Interaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.added) > limit {
		return f.added[len(f.added)-limit:], nil
	}
	return f.added, nil
}

func TestStoreBackedLog(t *testing.T) {
	store := &fakeStore{}
	l := NewLog(Config{Enabled: true, Store: store})
	l.LogInteraction(context.Background(), turn("Lights on", "done"), true)
	require.Len(t, store.added, 1)
	assert.Equal(t, "lights on", store.added[0].Normalized)

	reloaded := NewLog(Config{Enabled: true, Store: store})
	require.NoError(t, reloaded.Load(context.Background()))
	assert.NotNil(t, reloaded.HandleUnknownCommand("lights on", types.Classification{}))

	store.err = errors.New("db locked")
	assert.NotPanics(t, func() {
		l.LogInteraction(context.Background(), turn("x", "y"), true)
	})
	assert.Error(t, NewLog(Config{Enabled: true, Store: store}).Load(context.Background()))
}
