package reflex

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultConfidence is the classification confidence of a grammar match
const DefaultConfidence = 0.95

// Reflex is a command template defined in YAML: an utterance pattern that
// maps onto a dispatcher command with named captures as entities.
type Reflex struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Command     string            `yaml:"command"`
	Trigger     Trigger           `yaml:"trigger"`
	Defaults    map[string]string `yaml:"defaults,omitempty"` // entities applied when a capture is empty
	Priority    int               `yaml:"priority"`           // higher = tried first
	Confidence  float64           `yaml:"confidence,omitempty"`

	compiledPattern *regexp.Regexp
}

// Trigger defines when a reflex fires
type Trigger struct {
	Pattern string   `yaml:"pattern"` // case-insensitive regexp, anchored by the author
	Extract []string `yaml:"extract"` // entity names for the capture groups, in order
}

// MatchResult contains the result of matching a reflex
type MatchResult struct {
	Matched   bool
	Extracted map[string]string
}

func (r *Reflex) compile() error {
	if r.compiledPattern != nil {
		return nil
	}
	if r.Trigger.Pattern == "" {
		return fmt.Errorf("reflex %s: empty pattern", r.Name)
	}
	pattern := r.Trigger.Pattern
	if !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("reflex %s: %w", r.Name, err)
	}
	if n := compiled.NumSubexp(); len(r.Trigger.Extract) > n {
		return fmt.Errorf("reflex %s: %d extract names for %d groups", r.Name, len(r.Trigger.Extract), n)
	}
	r.compiledPattern = compiled
	return nil
}

// Match checks content against the trigger. Empty captures are left out so an
// optional group never yields an empty entity; Defaults fill them instead.
func (r *Reflex) Match(content string) MatchResult {
	if err := r.compile(); err != nil {
		return MatchResult{}
	}

	matches := r.compiledPattern.FindStringSubmatch(content)
	if matches == nil {
		return MatchResult{}
	}

	extracted := make(map[string]string)
	for i, name := range r.Trigger.Extract {
		if i+1 < len(matches) {
			if v := strings.TrimSpace(matches[i+1]); v != "" {
				extracted[name] = v
			}
		}
	}
	for name, v := range r.Defaults {
		if _, ok := extracted[name]; !ok {
			extracted[name] = v
		}
	}
	return MatchResult{Matched: true, Extracted: extracted}
}

func (r *Reflex) confidence() float64 {
	if r.Confidence > 0 && r.Confidence <= 1 {
		return r.Confidence
	}
	return DefaultConfidence
}
