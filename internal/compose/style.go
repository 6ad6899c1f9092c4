package compose

import (
	"regexp"
	"strings"

	"github.com/vthunder/jarvis/internal/types"
)

// Response styles
const (
	StyleCasual   = "casual"
	StyleHumorous = "humorous"
	StyleFormal   = "formal"
	StyleBusiness = "business"
)

const humorSuffix = " 😄 *beep boop*"

var (
	exclamations = regexp.MustCompile(`!+`)
	gonna        = regexp.MustCompile(`(?i)\bgonna\b`)
)

// ApplyStyle rewrites text in the given response style. Unknown styles pass
// through unchanged.
func ApplyStyle(style, text string) string {
	switch strings.ToLower(style) {
	case StyleCasual:
		text = strings.ReplaceAll(text, ". ", "! ")
		if strings.HasSuffix(text, ".") {
			text = strings.TrimSuffix(text, ".") + "!"
		}
		return strings.ReplaceAll(text, "I am", "I'm")
	case StyleHumorous:
		if strings.HasSuffix(text, humorSuffix) {
			return text
		}
		return text + humorSuffix
	case StyleFormal:
		text = exclamations.ReplaceAllString(text, ".")
		return gonna.ReplaceAllString(text, "going to")
	default:
		return text
	}
}

type emojiRule struct {
	keyword string
	emoji   string
}

// emojiTable is ordered; matches are appended in this order
var emojiTable = []emojiRule{
	{"help", "🤝"},
	{"search", "🔍"},
	{"reminder", "⏰"},
	{"good", "👍"},
	{"great", "🌟"},
	{"happy", "😊"},
	{"sad", "😢"},
	{"thanks", "🙏"},
}

// AddEmoji appends one emoji per matching keyword, in table order
func AddEmoji(text string) string {
	lower := strings.ToLower(text)
	var sb strings.Builder
	sb.WriteString(text)
	for _, r := range emojiTable {
		if strings.Contains(lower, r.keyword) {
			sb.WriteString(" ")
			sb.WriteString(r.emoji)
		}
	}
	return sb.String()
}

// MoodFor maps a sentiment result to a mood. Only confident (>0.8) polar
// sentiment moves the mood off neutral.
func MoodFor(s types.SentimentResult) types.Mood {
	switch {
	case s.Label == types.Positive && s.Score > 0.8:
		return types.MoodExcited
	case s.Label == types.Negative && s.Score > 0.8:
		return types.MoodEmpathetic
	}
	return types.MoodNeutral
}

var animations = map[types.Mood]string{
	types.MoodExcited:      "bounce",
	types.MoodEmpathetic:   "soft",
	types.MoodAlert:        "alert",
	types.MoodProfessional: "process",
	types.MoodThinking:     "process",
	types.MoodNeutral:      "idle",
}

// AnimationFor returns the animation tag for mood; unknown moods idle
func AnimationFor(m types.Mood) string {
	if a, ok := animations[m]; ok {
		return a
	}
	return "idle"
}

// VoiceFor scales the profile's voice by mood
func VoiceFor(p types.PersonalityProfile, m types.Mood) types.Voice {
	pitch, speed := p.VoicePitch, p.VoiceSpeed
	if pitch <= 0 {
		pitch = 1
	}
	if speed <= 0 {
		speed = 1
	}
	mult := 1.0
	switch m {
	case types.MoodExcited:
		mult = 1.1
	case types.MoodEmpathetic:
		mult = 0.9
	}
	return types.Voice{Pitch: pitch * mult, Speed: speed * mult}
}
