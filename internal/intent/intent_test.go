package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/jarvis/internal/nlp"
	"github.com/vthunder/jarvis/internal/reflex"
	"github.com/vthunder/jarvis/internal/types"
)

var fixedNow = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

func newTestClassifier(t *testing.T, model nlp.TextClassifier) *Classifier {
	t.Helper()
	g, err := reflex.DefaultGrammar()
	require.NoError(t, err)
	return NewClassifier(model, g, WithClock(func() time.Time { return fixedNow }))
}

func staticModel(label string, score float64) nlp.TextClassifier {
	return nlp.ClassifierFunc(func(context.Context, string, nlp.Task) ([]nlp.Label, error) {
		return []nlp.Label{{Label: label, Score: score}}, nil
	})
}

func TestClassifyReminder(t *testing.T) {
	c := newTestClassifier(t, staticModel("POSITIVE", 0.6))
	cls := c.Classify(context.Background(), "remind me to call mom in 30 minutes")

	assert.Equal(t, types.IntentCommand, cls.Intent)
	assert.Equal(t, "setReminder", cls.Command)
	assert.InDelta(t, 0.95, cls.Confidence, 1e-9)
	assert.Equal(t, types.Entities{
		"text": "call mom",
		"time": fixedNow.UnixMilli() + 1_800_000,
	}, cls.Entities)
}

func TestClassifyReminderFallbackTime(t *testing.T) {
	c := newTestClassifier(t, nil)
	cls := c.Classify(context.Background(), "Jarvis, remind me to stretch")
	require.Equal(t, "setReminder", cls.Command)
	assert.Equal(t, "stretch", cls.Entities["text"])
	assert.Equal(t, fixedNow.Add(time.Hour).UnixMilli(), cls.Entities["time"])
	assert.Equal(t, true, cls.Entities[TimeFallbackKey])
}

func TestClassifySearch(t *testing.T) {
	c := newTestClassifier(t, staticModel("statement", 0.99))
	cls := c.Classify(context.Background(), "search for rust ownership")
	assert.Equal(t, "searchWeb", cls.Command)
	assert.Equal(t, types.Entities{"query": "rust ownership"}, cls.Entities)
	assert.InDelta(t, 0.99, cls.Confidence, 1e-9)
}

func TestClassifyCommandEntities(t *testing.T) {
	c := newTestClassifier(t, nil)
	ctx := context.Background()

	cls := c.Classify(ctx, "set the volume to 40%")
	require.Equal(t, "setVolume", cls.Command)
	assert.Equal(t, int64(40), cls.Entities["volume"])

	cls = c.Classify(ctx, "download https://example.com/a.pdf as notes.pdf")
	require.Equal(t, "downloadFile", cls.Command)
	assert.Equal(t, "https://example.com/a.pdf", cls.Entities["url"])
	assert.Equal(t, "notes.pdf", cls.Entities["filename"])

	cls = c.Classify(ctx, "download the file")
	require.Equal(t, "downloadFile", cls.Command)
	assert.NotContains(t, cls.Entities, "url")

	cls = c.Classify(ctx, "download cats.zip")
	require.Equal(t, "downloadFile", cls.Command)
	assert.NotContains(t, cls.Entities, "url")

	cls = c.Classify(ctx, "add task buy milk due tomorrow with high priority")
	require.Equal(t, "addTask", cls.Command)
	assert.Equal(t, "buy milk", cls.Entities["title"])
	assert.Equal(t, "high", cls.Entities["priority"])
	assert.Equal(t, fixedNow.Add(24*time.Hour).UnixMilli(), cls.Entities["dueDate"])

	cls = c.Classify(ctx, "add task water plants due whenever")
	require.Equal(t, "addTask", cls.Command)
	assert.NotContains(t, cls.Entities, "dueDate")
}

func TestClassifyWithoutModel(t *testing.T) {
	broken := nlp.ClassifierFunc(func(context.Context, string, nlp.Task) ([]nlp.Label, error) {
		return nil, errors.New("connection refused")
	})
	c := newTestClassifier(t, broken)

	cls := c.Classify(context.Background(), "I had a long day")
	assert.Equal(t, types.Classification{Intent: types.IntentUnknown}, cls)

	cls = c.Classify(context.Background(), "search for x")
	assert.Equal(t, "searchWeb", cls.Command)
	assert.InDelta(t, 0.95, cls.Confidence, 1e-9)
}

func TestClassifyRecoversPanic(t *testing.T) {
	panicky := nlp.ClassifierFunc(func(context.Context, string, nlp.Task) ([]nlp.Label, error) {
		panic("model exploded")
	})
	c := newTestClassifier(t, panicky)
	assert.NotPanics(t, func() {
		cls := c.Classify(context.Background(), "hello there")
		assert.Equal(t, types.IntentUnknown, cls.Intent)
	})
}

func TestIntentFromLabel(t *testing.T) {
	tests := []struct {
		label, text, want string
	}{
		{"question", "anything", types.IntentQuestion},
		{"Greeting", "hi", types.IntentGreeting},
		{"POSITIVE", "I love this", types.IntentStatement},
		{"NEGATIVE", "why is it broken", types.IntentQuestion},
		{"positive", "is it sunny?", types.IntentQuestion},
		{"banana", "x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.label+"/"+tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, intentFromLabel(tt.label, tt.text))
		})
	}
}

func TestHeuristicFillsUnusableLabels(t *testing.T) {
	c := newTestClassifier(t, staticModel("banana", 0.9))
	cls := c.Classify(context.Background(), "good morning jarvis")
	assert.Equal(t, types.IntentGreeting, cls.Intent)
	assert.InDelta(t, 0.9, cls.Confidence, 1e-9)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		expr     string
		want     time.Time
		fallback bool
	}{
		{"in 30 minutes", fixedNow.Add(30 * time.Minute), false},
		{"in 2 hrs", fixedNow.Add(2 * time.Hour), false},
		{"after 1 day", fixedNow.Add(24 * time.Hour), false},
		{"in 45 secs", fixedNow.Add(45 * time.Second), false},
		{"at 5pm", time.Date(2025, 3, 14, 17, 0, 0, 0, time.UTC), false},
		{"at 9:30 am", time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC), false},
		{"at 12am", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), false},
		{"at 16:45", time.Date(2025, 3, 14, 16, 45, 0, 0, time.UTC), false},
		{"tomorrow at 8am", time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC), false},
		{"tomorrow", fixedNow.Add(24 * time.Hour), false},
		{"in 3650 days", fixedNow.Add(MaxRelativeOffset), false},
		{"in 3651 days", fixedNow.Add(time.Hour), true},
		{"in 200000 days", fixedNow.Add(time.Hour), true},
		{"in 9223372036854775807 seconds", fixedNow.Add(time.Hour), true},
		{"in 99999999999999999999 minutes", fixedNow.Add(time.Hour), true},
		{"at 25:00", fixedNow.Add(time.Hour), true},
		{"someday", fixedNow.Add(time.Hour), true},
		{"", fixedNow.Add(time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, fallback := ParseTime(tt.expr, fixedNow)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.fallback, fallback)
			assert.True(t, got.After(fixedNow), "reminders never land in the past")
		})
	}
}

func TestParseDate(t *testing.T) {
	// fixedNow is a Friday
	tests := []struct {
		expr string
		want time.Time
		ok   bool
	}{
		{"today", time.Date(2025, 3, 14, 17, 0, 0, 0, time.UTC), true},
		{"monday", time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC), true},
		{"next friday", time.Date(2025, 3, 21, 9, 0, 0, 0, time.UTC), true},
		{"next week", time.Date(2025, 3, 21, 9, 0, 0, 0, time.UTC), true},
		{"2025-04-01", time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC), true},
		{"april 2", time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC), true},
		{"jan 5", time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), true},
		{"whenever", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok := ParseDate(tt.expr, fixedNow)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstURL(t *testing.T) {
	assert.Equal(t, "https://x.io/a?b=1", FirstURL("get https://x.io/a?b=1, then http://y.io"))
	assert.Equal(t, "", FirstURL("no links here"))
	assert.Equal(t, "", FirstURL("http://"))
}

func TestExtractEntities(t *testing.T) {
	assert.Empty(t, ExtractEntities("   "))
	assert.NotPanics(t, func() {
		ents := ExtractEntities("I met Sarah Connor in Paris last week.")
		for k, v := range ents {
			assert.NotEmpty(t, k)
			assert.NotEmpty(t, v)
		}
	})
}
