// Package compose turns an analyzed turn into a personality-styled reply
// with a mood, an animation tag and voice parameters.
package compose

import (
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/types"
)

// Fixed reply fragments
const (
	DegradedText     = "I'm sorry, something went wrong while processing that."
	ClosingLine      = "How else can I assist you?"
	ContinuationLead = "Building on what we discussed, "

	openerPositive = "I sense you're feeling positive!"
	openerNegative = "I understand this might be concerning."
	bodyQuestion   = "Let me help you find an answer."
	bodyStatement  = "I'll keep that in mind."
	bodyCommand    = "I'm not sure how to do that yet, but I'm learning."
	fallbackHello  = "Hello! How can I help?"
)

// Analysis is everything the composer needs for one turn
type Analysis struct {
	Utterance      types.Utterance
	Classification types.Classification
	Sentiment      types.SentimentResult
	Entities       types.Entities
	Context        []types.ConversationTurn
	Profile        types.PersonalityProfile

	// Command is set when the turn was handled by the dispatcher
	Command *types.CommandResult
}

// Composer builds responses
type Composer struct {
	pick func(n int) int
}

// Option configures a Composer
type Option func(*Composer)

// WithPicker overrides greeting selection
func WithPicker(pick func(n int) int) Option {
	return func(c *Composer) { c.pick = pick }
}

// New creates a composer
func New(opts ...Option) *Composer {
	c := &Composer{pick: rand.IntN}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Degraded is the response used when the pipeline fails
func Degraded() types.Response {
	return types.Response{
		Text:      DegradedText,
		Mood:      types.MoodAlert,
		Animation: AnimationFor(types.MoodAlert),
		Voice:     types.Voice{Pitch: 0.9, Speed: 0.9},
	}
}

// Compose builds the reply. It never panics; failures yield Degraded().
func (c *Composer) Compose(a Analysis) (resp types.Response) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("compose", fmt.Errorf("panic: %v", r), "compose failed\n%s", debug.Stack())
			resp = Degraded()
		}
	}()

	var (
		mood types.Mood
		text string
	)
	if a.Command != nil {
		mood = types.MoodProfessional
		text = a.Command.ResponseText
	} else {
		mood = MoodFor(a.Sentiment)
		text = c.baseReply(a)
	}

	text = ApplyStyle(a.Profile.ResponseStyle, text)
	if a.Profile.EmojiEnabled {
		text = AddEmoji(text)
	}

	return types.Response{
		Text:      text,
		Mood:      mood,
		Animation: AnimationFor(mood),
		Voice:     VoiceFor(a.Profile, mood),
	}
}

func (c *Composer) baseReply(a Analysis) string {
	var parts []string
	switch a.Sentiment.Label {
	case types.Positive:
		parts = append(parts, openerPositive)
	case types.Negative:
		parts = append(parts, openerNegative)
	}

	body := c.body(a)
	if len(a.Context) > 0 && a.Classification.Intent != types.IntentGreeting {
		body = ContinuationLead + lowerFirst(body)
	}
	parts = append(parts, body, ClosingLine)
	return strings.Join(parts, " ")
}

func (c *Composer) body(a Analysis) string {
	switch a.Classification.Intent {
	case types.IntentQuestion:
		return bodyQuestion
	case types.IntentGreeting:
		return c.greeting(a.Profile)
	case types.IntentCommand:
		return bodyCommand
	default:
		return bodyStatement
	}
}

func (c *Composer) greeting(p types.PersonalityProfile) string {
	if len(p.Greetings) == 0 {
		return fallbackHello
	}
	return p.Greetings[c.pick(len(p.Greetings))]
}

// lowerFirst lower-cases the first letter unless the sentence opens with
// the pronoun "I"
func lowerFirst(s string) string {
	if s == "I" || strings.HasPrefix(s, "I ") || strings.HasPrefix(s, "I'") {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
