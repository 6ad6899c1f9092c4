// Package sentiment maps model output onto POSITIVE / NEGATIVE / NEUTRAL.
package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/nlp"
	"github.com/vthunder/jarvis/internal/types"
)

// Analyzer is a stateless wrapper over a text classifier
type Analyzer struct {
	classifier nlp.TextClassifier
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(classifier nlp.TextClassifier) *Analyzer {
	return &Analyzer{classifier: classifier}
}

// Analyze returns the canonical sentiment for text. It never fails: an
// unavailable classifier yields NEUTRAL with score 0.
func (a *Analyzer) Analyze(ctx context.Context, text string) (result types.SentimentResult) {
	result = types.SentimentResult{Label: types.Neutral, Score: 0}
	if a == nil || a.classifier == nil || strings.TrimSpace(text) == "" {
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("sentiment", fmt.Errorf("panic: %v", r), "classifier panicked")
			result = types.SentimentResult{Label: types.Neutral, Score: 0}
		}
	}()

	labels, err := a.classifier.Classify(ctx, text, nlp.TaskSentiment)
	if err != nil {
		logging.Warn("sentiment", "classifier unavailable: %v", err)
		return result
	}
	top, ok := nlp.Top(labels)
	if !ok {
		return result
	}
	return types.SentimentResult{
		Label: NormalizeLabel(top.Label),
		Score: types.Clamp01(top.Score),
	}
}

// NormalizeLabel maps whatever vocabulary a model uses to the canonical labels
func NormalizeLabel(label string) types.SentimentLabel {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive", "pos", "label_2", "joy", "happy", "love", "5 stars", "4 stars":
		return types.Positive
	case "negative", "neg", "label_0", "sadness", "sad", "anger", "angry", "fear", "1 star", "2 stars":
		return types.Negative
	default:
		return types.Neutral
	}
}
