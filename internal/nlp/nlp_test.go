package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexiconSentiment(t *testing.T) {
	c := NewLexiconClassifier()
	ctx := context.Background()

	tests := []struct {
		name     string
		text     string
		label    string
		minScore float64
	}{
		{"strong positive", "This is amazing, I love it", "positive", 0.9},
		{"mild positive", "that was good", "positive", 0.6},
		{"strong negative", "I feel really sad and lonely", "negative", 0.9},
		{"negated positive", "this is not good", "negative", 0.6},
		{"negation through intensifier", "I am not very happy", "negative", 0.6},
		{"no signal", "the meeting is at noon", "neutral", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels, err := c.Classify(ctx, tt.text, TaskSentiment)
			require.NoError(t, err)
			top, ok := Top(labels)
			require.True(t, ok)
			assert.Equal(t, tt.label, top.Label)
			assert.GreaterOrEqual(t, top.Score, tt.minScore)
			assert.LessOrEqual(t, top.Score, 1.0)
		})
	}
}

func TestLexiconIntent(t *testing.T) {
	c := NewLexiconClassifier()
	labels, err := c.Classify(context.Background(), "what is the weather like?", TaskIntent)
	require.NoError(t, err)
	assert.Equal(t, "question", labels[0].Label)

	labels, err = c.Classify(context.Background(), "ok", TaskIntent)
	require.NoError(t, err)
	assert.Equal(t, "statement", labels[0].Label)
}

func TestOllamaClassifier(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(generateResponse{
			Response: `{"labels":[{"label":"NEGATIVE","score":0.2},{"label":"POSITIVE","score":0.8}]}`,
			Done:     true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClassifier(srv.URL, "test-model")
	labels, err := c.Classify(context.Background(), "great day", TaskSentiment)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "POSITIVE", labels[0].Label)
	assert.Equal(t, 0.8, labels[0].Score)
	assert.Equal(t, "test-model", gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.Contains(t, gotReq.Prompt, "great day")
}

func TestOllamaClassifierErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaClassifier(srv.URL, "missing").Classify(context.Background(), "hi", TaskIntent)
	assert.ErrorContains(t, err, "status 404")

	_, err = NewOllamaClassifier(srv.URL, "x").Classify(context.Background(), "hi", Task("summarize"))
	assert.ErrorContains(t, err, "unsupported task")
}

func TestParseLabels(t *testing.T) {
	labels, err := parseLabels(`[{"label":"question","score":1.7}]`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, labels[0].Score)

	labels, err = parseLabels(`{"label":"command","score":0.6}`)
	require.NoError(t, err)
	assert.Equal(t, "command", labels[0].Label)

	_, err = parseLabels(`I think it's positive`)
	assert.Error(t, err)
}

func TestFallback(t *testing.T) {
	broken := ClassifierFunc(func(context.Context, string, Task) ([]Label, error) {
		return nil, errors.New("connection refused")
	})
	chain := Fallback{broken, NewLexiconClassifier()}

	labels, err := chain.Classify(context.Background(), "I love this", TaskSentiment)
	require.NoError(t, err)
	assert.Equal(t, "positive", labels[0].Label)

	_, err = Fallback{broken}.Classify(context.Background(), "x", TaskSentiment)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorContains(t, err, "connection refused")
}
