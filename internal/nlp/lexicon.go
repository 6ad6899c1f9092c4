package nlp

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/vthunder/jarvis/internal/filter"
)

type weightedKeyword struct {
	keyword string
	weight  float64
}

// LexiconClassifier is an offline, rule-based classifier. Sentiment uses
// weighted keyword scoring with negation; intent uses dialogue-act rules.
type LexiconClassifier struct {
	positive []weightedKeyword
	negative []weightedKeyword
}

// NewLexiconClassifier creates a classifier with the built-in English lexicon
func NewLexiconClassifier() *LexiconClassifier {
	return &LexiconClassifier{
		positive: []weightedKeyword{
			{"love", 0.5}, {"amazing", 0.5}, {"fantastic", 0.5}, {"excellent", 0.5}, {"wonderful", 0.5},
			{"awesome", 0.4}, {"great", 0.4}, {"happy", 0.4}, {"excited", 0.4}, {"glad", 0.4},
			{"good", 0.3}, {"nice", 0.3}, {"thanks", 0.3}, {"thank", 0.3}, {"cool", 0.3}, {"fun", 0.3},
			{"like", 0.2}, {"fine", 0.2},
		},
		negative: []weightedKeyword{
			{"hate", 0.5}, {"terrible", 0.5}, {"awful", 0.5}, {"horrible", 0.5}, {"miserable", 0.5},
			{"sad", 0.4}, {"angry", 0.4}, {"upset", 0.4}, {"lonely", 0.4}, {"depressed", 0.5},
			{"stressed", 0.4}, {"worried", 0.4}, {"frustrated", 0.4}, {"anxious", 0.4}, {"sick", 0.3},
			{"bad", 0.3}, {"tired", 0.3}, {"annoyed", 0.3}, {"broken", 0.3}, {"sorry", 0.2},
		},
	}
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "dont": true, "don't": true, "isnt": true, "isn't": true,
	"wasnt": true, "wasn't": true, "didnt": true, "didn't": true, "aint": true, "ain't": true,
}

var intensifiers = map[string]bool{
	"very": true, "really": true, "so": true, "extremely": true, "super": true, "incredibly": true,
}

// Classify implements TextClassifier
func (c *LexiconClassifier) Classify(_ context.Context, text string, task Task) ([]Label, error) {
	switch task {
	case TaskIntent:
		return c.intent(text), nil
	default:
		return c.sentiment(text), nil
	}
}

func (c *LexiconClassifier) intent(text string) []Label {
	act, conf := filter.ClassifyDialogueAct(text)
	label := string(act)
	if act == filter.ActBackchannel {
		label = string(filter.ActStatement)
	}
	return []Label{{Label: label, Score: conf}}
}

func (c *LexiconClassifier) sentiment(text string) []Label {
	tokens := tokenize(text)
	var pos, neg float64
	for i, tok := range tokens {
		w, positive, ok := c.lookup(tok)
		if !ok {
			continue
		}
		if i > 0 && intensifiers[tokens[i-1]] {
			w *= 1.5
		}
		if negatedAt(tokens, i) {
			positive = !positive
		}
		if positive {
			pos += w
		} else {
			neg += w
		}
	}

	if pos == 0 && neg == 0 {
		return []Label{{Label: "neutral", Score: 0.5}}
	}
	if pos == neg {
		return []Label{{Label: "neutral", Score: 0.5}, {Label: "positive", Score: 0.25}, {Label: "negative", Score: 0.25}}
	}

	score := math.Min(0.99, 0.5+0.5*math.Min(1, math.Abs(pos-neg)))
	win, lose := "positive", "negative"
	if neg > pos {
		win, lose = lose, win
	}
	return []Label{{Label: win, Score: score}, {Label: lose, Score: 1 - score}}
}

func (c *LexiconClassifier) lookup(tok string) (float64, bool, bool) {
	for _, kw := range c.positive {
		if kw.keyword == tok {
			return kw.weight, true, true
		}
	}
	for _, kw := range c.negative {
		if kw.keyword == tok {
			return kw.weight, false, true
		}
	}
	return 0, false, false
}

// negatedAt looks back up to two tokens (skipping an intensifier) for a negator
func negatedAt(tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		if negators[tokens[j]] {
			return true
		}
		if !intensifiers[tokens[j]] {
			return false
		}
	}
	return false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
