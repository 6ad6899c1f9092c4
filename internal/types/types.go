package types

import (
	"strconv"
	"strings"
	"time"
)

// Utterance is a single piece of user input. Never mutated after creation.
type Utterance struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Intent labels
const (
	IntentStatement = "statement"
	IntentQuestion  = "question"
	IntentCommand   = "command"
	IntentGreeting  = "greeting"
	IntentUnknown   = "unknown"
)

// EntityTimeFallback marks a reminder whose time was defaulted
const EntityTimeFallback = "timeFallback"

// Entities maps entity names (time, query, url, personality...) to values.
// Values are strings, int64 epoch millis, or numbers decoded from JSON.
type Entities map[string]any

// String returns the entity as a trimmed string, or "" if absent.
func (e Entities) String(key string) string {
	switch v := e[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Int64 returns a numeric entity. Numeric strings are parsed.
func (e Entities) Int64(key string) (int64, bool) {
	switch v := e[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Clone returns a shallow copy
func (e Entities) Clone() Entities {
	out := make(Entities, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Classification is the intent classifier's verdict for one utterance
type Classification struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Command    string   `json:"command,omitempty"`
	Entities   Entities `json:"entities,omitempty"`
}

// IsCommand reports whether a structured command was recovered
func (c Classification) IsCommand() bool {
	return c.Intent == IntentCommand && c.Command != ""
}

// SentimentLabel is one of the three canonical sentiment labels
type SentimentLabel string

const (
	Positive SentimentLabel = "POSITIVE"
	Negative SentimentLabel = "NEGATIVE"
	Neutral  SentimentLabel = "NEUTRAL"
)

// SentimentResult is the sentiment analyzer output
type SentimentResult struct {
	Label SentimentLabel `json:"label"`
	Score float64        `json:"score"`
}

// ConversationTurn is one analyzed exchange
type ConversationTurn struct {
	Utterance      Utterance       `json:"utterance"`
	Classification Classification  `json:"classification"`
	Sentiment      SentimentResult `json:"sentiment"`
	Entities       Entities        `json:"entities,omitempty"`
	Context        []string        `json:"context,omitempty"` // texts of the turns it was composed against
	Response       string          `json:"response,omitempty"`
	Mood           Mood            `json:"mood,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// ResultKind discriminates CommandResult variants
type ResultKind string

const (
	ResultSuccess         ResultKind = "success"
	ResultValidationError ResultKind = "validationError"
	ResultUnknownCommand  ResultKind = "unknownCommand"
)

// ErrorCommandName is the command name carried by validation failures
const ErrorCommandName = "error"

// CommandResult is what the dispatcher returns for a handled command
type CommandResult struct {
	Kind         ResultKind     `json:"kind"`
	CommandName  string         `json:"command"`
	Data         map[string]any `json:"data,omitempty"`
	ResponseText string         `json:"response"`
}

// Success builds a successful result
func Success(command, text string, data map[string]any) *CommandResult {
	return &CommandResult{Kind: ResultSuccess, CommandName: command, Data: data, ResponseText: text}
}

// ValidationError builds a failed result with a user-facing message
func ValidationError(text string) *CommandResult {
	return &CommandResult{Kind: ResultValidationError, CommandName: ErrorCommandName, ResponseText: text}
}

// Mood drives styling, animation and voice modulation
type Mood string

const (
	MoodNeutral      Mood = "neutral"
	MoodExcited      Mood = "excited"
	MoodEmpathetic   Mood = "empathetic"
	MoodAlert        Mood = "alert"
	MoodProfessional Mood = "professional"
	MoodThinking     Mood = "thinking"
)

// Voice holds speech synthesis parameters
type Voice struct {
	Pitch float64 `json:"pitch"`
	Speed float64 `json:"speed"`
}

// Response is the pipeline output
type Response struct {
	Text      string `json:"text"`
	Mood      Mood   `json:"mood"`
	Animation string `json:"animation"`
	Voice     Voice  `json:"voice"`
}

// PersonalityProfile is a named bundle of styling and voice parameters
type PersonalityProfile struct {
	Name          string   `yaml:"name" json:"name"`
	ResponseStyle string   `yaml:"response_style" json:"response_style"`
	EmojiEnabled  bool     `yaml:"emoji" json:"emoji"`
	VoicePitch    float64  `yaml:"pitch" json:"pitch"`
	VoiceSpeed    float64  `yaml:"speed" json:"speed"`
	Greetings     []string `yaml:"greetings" json:"greetings,omitempty"`
	Color         string   `yaml:"color" json:"color,omitempty"`
}

// Clamp01 bounds a score to [0,1]
func Clamp01(v float64) float64 {
	if v != v || v < 0 { // NaN or negative
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
