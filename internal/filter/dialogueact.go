// Package filter holds cheap, model-free heuristics over user text.
package filter

import (
	"regexp"
	"strings"
)

// DialogueAct is the pragmatic function of an utterance
type DialogueAct string

const (
	ActBackchannel DialogueAct = "backchannel" // ok, thanks, got it
	ActGreeting    DialogueAct = "greeting"
	ActQuestion    DialogueAct = "question"
	ActCommand     DialogueAct = "command"
	ActStatement   DialogueAct = "statement"
)

var backchannelPatterns = []string{
	`^(yes|yeah|yep|yup|no|nope|nah)[.!]?$`,
	`^(ok|okay|k|sure|right|exactly|cool|nice|perfect)[.!]?$`,
	`^(got it|gotcha|understood|i see|sounds good)[.!]?$`,
	`^(thanks|thank you|thx|ty)( jarvis)?[.!]*$`,
	`^(uh[ -]?huh|mhm|hmm|ah|oh)[.!]?$`,
	`^[.!?]*$`,
}

var greetingPatterns = []string{
	`^(hi|hey|hello|yo|heya|howdy)( there)?( jarvis)?[.!]*$`,
	`^good (morning|afternoon|evening)( jarvis)?[.!]*$`,
	`^(bye|goodbye|good night|see you|later)( jarvis)?[.!]*$`,
}

var questionPatterns = []string{
	`\?$`,
	`^(what|where|when|who|why|how|which)\b`,
	`^(can|could|would|should|will|do|does|did|is|are|have|has)\s+(you|i|we|it|they|there)\b`,
}

var commandPatterns = []string{
	`^(please|pls|jarvis)\b`,
	`^(remind|search|find|look up|play|stop|pause|set|turn|read|check|download|send|email|add|list|show|change|switch|open|tell)\b`,
}

var (
	compiledBackchannel = compilePatterns(backchannelPatterns)
	compiledGreeting    = compilePatterns(greetingPatterns)
	compiledQuestion    = compilePatterns(questionPatterns)
	compiledCommand     = compilePatterns(commandPatterns)
)

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile("(?i)"+p))
	}
	return out
}

// ClassifyDialogueAct labels content. Order: backchannel, greeting, question,
// command, statement. The confidence reflects how specific the rule was.
func ClassifyDialogueAct(content string) (DialogueAct, float64) {
	content = strings.TrimSpace(content)
	switch {
	case content == "" || matchesAny(content, compiledBackchannel):
		return ActBackchannel, 0.9
	case matchesAny(content, compiledGreeting):
		return ActGreeting, 0.9
	case matchesAny(content, compiledQuestion):
		return ActQuestion, 0.8
	case matchesAny(content, compiledCommand):
		return ActCommand, 0.6
	}
	return ActStatement, 0.5
}

func matchesAny(content string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

// IsLowInfo reports whether content carries nothing worth remembering
func IsLowInfo(content string) bool {
	act, _ := ClassifyDialogueAct(content)
	return act == ActBackchannel || act == ActGreeting
}
