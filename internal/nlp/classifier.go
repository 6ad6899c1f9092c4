// Package nlp provides the text-classification capability used for both
// coarse intent and sentiment: an Ollama-backed model and an offline lexicon.
package nlp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Task selects what a classifier is asked to label
type Task string

const (
	TaskIntent    Task = "intent"
	TaskSentiment Task = "sentiment"
)

// Label is one scored label, as returned by text-classification models
type Label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// TextClassifier labels text. Results are ordered by descending score.
type TextClassifier interface {
	Classify(ctx context.Context, text string, task Task) ([]Label, error)
}

// ErrUnavailable is returned when no classifier could produce labels
var ErrUnavailable = errors.New("classifier unavailable")

// ClassifierFunc adapts a function to TextClassifier
type ClassifierFunc func(ctx context.Context, text string, task Task) ([]Label, error)

// Classify implements TextClassifier
func (f ClassifierFunc) Classify(ctx context.Context, text string, task Task) ([]Label, error) {
	return f(ctx, text, task)
}

// Fallback tries each classifier in order and returns the first non-empty result
type Fallback []TextClassifier

// Classify implements TextClassifier
func (f Fallback) Classify(ctx context.Context, text string, task Task) ([]Label, error) {
	var errs []error
	for _, c := range f {
		if c == nil {
			continue
		}
		labels, err := c.Classify(ctx, text, task)
		if err == nil && len(labels) > 0 {
			return labels, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, ErrUnavailable
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

// Top returns the highest-scoring label, if any
func Top(labels []Label) (Label, bool) {
	if len(labels) == 0 {
		return Label{}, false
	}
	best := labels[0]
	for _, l := range labels[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return best, true
}

func sortLabels(labels []Label) {
	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Score > labels[j].Score
	})
}

func cleanLabels(labels []Label) []Label {
	out := labels[:0]
	for _, l := range labels {
		l.Label = strings.TrimSpace(l.Label)
		if l.Label == "" {
			continue
		}
		if l.Score < 0 {
			l.Score = 0
		}
		if l.Score > 1 {
			l.Score = 1
		}
		out = append(out, l)
	}
	sortLabels(out)
	return out
}
