// Package intent turns an utterance into a Classification: a coarse intent
// from the statistical classifier, upgraded to a structured command when the
// command grammar matches.
package intent

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vthunder/jarvis/internal/filter"
	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/nlp"
	"github.com/vthunder/jarvis/internal/reflex"
	"github.com/vthunder/jarvis/internal/types"
)

// TimeFallbackKey is set on setReminder entities when the time was defaulted
const TimeFallbackKey = types.EntityTimeFallback

// Classifier combines the statistical and grammar tiers
type Classifier struct {
	model   nlp.TextClassifier
	grammar *reflex.Grammar
	now     func() time.Time
}

// Option configures a Classifier
type Option func(*Classifier)

// WithClock sets the time source used to resolve relative times
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// NewClassifier creates a classifier. model may be nil (grammar and heuristics only).
func NewClassifier(model nlp.TextClassifier, grammar *reflex.Grammar, opts ...Option) *Classifier {
	c := &Classifier{model: model, grammar: grammar, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails: model problems degrade to {unknown, 0} and the grammar
// tier still runs.
func (c *Classifier) Classify(ctx context.Context, text string) types.Classification {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Classification{Intent: types.IntentUnknown}
	}

	cls := c.statistical(ctx, text)

	if c.grammar != nil {
		if m, ok := c.grammar.Match(text); ok {
			cls.Intent = types.IntentCommand
			cls.Command = m.Command
			cls.Entities = CommandEntities(m.Command, m.Entities, text, c.now())
			if m.Confidence > cls.Confidence {
				cls.Confidence = m.Confidence
			}
		}
	}
	cls.Confidence = types.Clamp01(cls.Confidence)
	return cls
}

func (c *Classifier) statistical(ctx context.Context, text string) (cls types.Classification) {
	cls = types.Classification{Intent: types.IntentUnknown}
	if c.model == nil {
		return heuristic(text)
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("intent", fmt.Errorf("panic: %v", r), "classifier panicked")
			cls = types.Classification{Intent: types.IntentUnknown}
		}
	}()

	labels, err := c.model.Classify(ctx, text, nlp.TaskIntent)
	if err != nil {
		logging.Warn("intent", "classifier unavailable: %v", err)
		return cls
	}
	top, ok := nlp.Top(labels)
	if !ok {
		return heuristic(text)
	}
	intent := intentFromLabel(top.Label, text)
	if intent == "" {
		return heuristic(text)
	}
	return types.Classification{Intent: intent, Confidence: types.Clamp01(top.Score)}
}

var whWord = regexp.MustCompile(`(?i)^(what|where|when|who|whom|whose|why|how|which)\b`)

// intentFromLabel maps a model label onto the intent vocabulary. Sentiment
// style labels (a sentiment model standing in for an intent model) become
// statement or question. Returns "" for labels it can't use.
func intentFromLabel(label, text string) string {
	switch l := strings.ToLower(strings.TrimSpace(label)); l {
	case types.IntentStatement, types.IntentQuestion, types.IntentCommand, types.IntentGreeting:
		return l
	case "positive", "negative", "neutral", "label_0", "label_1", "label_2":
		if looksLikeQuestion(text) {
			return types.IntentQuestion
		}
		return types.IntentStatement
	}
	return ""
}

func looksLikeQuestion(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasSuffix(text, "?") || whWord.MatchString(text)
}

func heuristic(text string) types.Classification {
	act, conf := filter.ClassifyDialogueAct(text)
	switch act {
	case filter.ActGreeting:
		return types.Classification{Intent: types.IntentGreeting, Confidence: conf}
	case filter.ActQuestion:
		return types.Classification{Intent: types.IntentQuestion, Confidence: conf}
	case filter.ActCommand:
		return types.Classification{Intent: types.IntentCommand, Confidence: conf}
	default:
		return types.Classification{Intent: types.IntentStatement, Confidence: conf}
	}
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// FirstURL returns the first http(s) URL in text
func FirstURL(text string) string {
	u := strings.TrimRight(urlPattern.FindString(text), ".,;:!?)")
	if u == "" {
		return ""
	}
	if parsed, err := url.Parse(u); err != nil || parsed.Host == "" {
		return ""
	}
	return u
}

// CommandEntities converts raw grammar captures into typed entities:
// time becomes epoch millis (setReminder always gets one), volume an int64,
// dueDate epoch millis or nothing, url the first URL in the utterance.
func CommandEntities(command string, raw map[string]string, text string, now time.Time) types.Entities {
	out := make(types.Entities, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	if _, ok := raw["time"]; ok || command == "setReminder" {
		at, fallback := ParseTime(raw["time"], now)
		out["time"] = at.UnixMilli()
		if fallback {
			out[TimeFallbackKey] = true
		}
	}

	if v, ok := raw["volume"]; ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			out["volume"] = n
		} else {
			delete(out, "volume")
		}
	}

	if v, ok := raw["dueDate"]; ok {
		if due, ok := ParseDate(v, now); ok {
			out["dueDate"] = due.UnixMilli()
		} else {
			delete(out, "dueDate")
		}
	}

	if _, ok := raw["url"]; ok || command == "downloadFile" {
		if u := FirstURL(text); u != "" {
			out["url"] = u
		} else {
			delete(out, "url")
		}
	}

	return out
}
