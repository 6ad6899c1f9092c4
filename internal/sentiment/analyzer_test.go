package sentiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vthunder/jarvis/internal/nlp"
	"github.com/vthunder/jarvis/internal/types"
)

func fixed(labels ...nlp.Label) nlp.TextClassifier {
	return nlp.ClassifierFunc(func(context.Context, string, nlp.Task) ([]nlp.Label, error) {
		return labels, nil
	})
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want types.SentimentLabel
	}{
		{"POSITIVE", types.Positive},
		{" positive ", types.Positive},
		{"LABEL_2", types.Positive},
		{"5 stars", types.Positive},
		{"NEGATIVE", types.Negative},
		{"label_0", types.Negative},
		{"anger", types.Negative},
		{"LABEL_1", types.Neutral},
		{"mixed", types.Neutral},
		{"", types.Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLabel(tt.in))
		})
	}
}

func TestAnalyzeTakesTopLabel(t *testing.T) {
	a := NewAnalyzer(fixed(nlp.Label{Label: "LABEL_0", Score: 0.3}, nlp.Label{Label: "LABEL_2", Score: 0.7}))
	got := a.Analyze(context.Background(), "fine")
	assert.Equal(t, types.SentimentResult{Label: types.Positive, Score: 0.7}, got)
}

func TestAnalyzeClampsScore(t *testing.T) {
	a := NewAnalyzer(fixed(nlp.Label{Label: "negative", Score: 3}))
	got := a.Analyze(context.Background(), "awful")
	assert.Equal(t, 1.0, got.Score)
}

func TestAnalyzeDegrades(t *testing.T) {
	failing := nlp.ClassifierFunc(func(context.Context, string, nlp.Task) ([]nlp.Label, error) {
		return nil, errors.New("model not loaded")
	})
	panicking := nlp.ClassifierFunc(func(context.Context, string, nlp.Task) ([]nlp.Label, error) {
		panic("boom")
	})
	want := types.SentimentResult{Label: types.Neutral, Score: 0}

	assert.Equal(t, want, NewAnalyzer(failing).Analyze(context.Background(), "hello"))
	assert.Equal(t, want, NewAnalyzer(panicking).Analyze(context.Background(), "hello"))
	assert.Equal(t, want, NewAnalyzer(fixed()).Analyze(context.Background(), "hello"))
	assert.Equal(t, want, NewAnalyzer(nil).Analyze(context.Background(), "hello"))
}

func TestAnalyzeWithLexicon(t *testing.T) {
	a := NewAnalyzer(nlp.NewLexiconClassifier())
	got := a.Analyze(context.Background(), "I am so happy, this is wonderful")
	assert.Equal(t, types.Positive, got.Label)
	assert.Greater(t, got.Score, 0.8)
}
