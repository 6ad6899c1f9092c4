package reflex

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vthunder/jarvis/internal/logging"
)

//go:embed commands.yaml
var defaultGrammar []byte

type grammarFile struct {
	Reflexes []*Reflex `yaml:"reflexes"`
}

// Grammar is the priority-ordered set of command templates
type Grammar struct {
	mu       sync.RWMutex
	reflexes []*Reflex
}

// Match is a successful grammar lookup
type Match struct {
	Reflex     *Reflex
	Command    string
	Entities   map[string]string
	Confidence float64
}

// NewGrammar creates an empty grammar
func NewGrammar() *Grammar {
	return &Grammar{}
}

// DefaultGrammar returns the built-in command templates
func DefaultGrammar() (*Grammar, error) {
	reflexes, err := ParseGrammar(defaultGrammar)
	if err != nil {
		return nil, fmt.Errorf("built-in grammar: %w", err)
	}
	g := NewGrammar()
	g.Add(reflexes...)
	return g, nil
}

// ParseGrammar decodes and validates a YAML grammar document
func ParseGrammar(data []byte) ([]*Reflex, error) {
	var file grammarFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse grammar: %w", err)
	}
	for _, r := range file.Reflexes {
		if r.Name == "" || r.Command == "" {
			return nil, fmt.Errorf("reflex needs name and command (pattern %q)", r.Trigger.Pattern)
		}
		if err := r.compile(); err != nil {
			return nil, err
		}
	}
	return file.Reflexes, nil
}

// Add inserts reflexes. A reflex with an existing name replaces it.
func (g *Grammar) Add(reflexes ...*Reflex) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range reflexes {
		replaced := false
		for i, existing := range g.reflexes {
			if existing.Name == r.Name {
				g.reflexes[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			g.reflexes = append(g.reflexes, r)
		}
	}
	sort.SliceStable(g.reflexes, func(i, j int) bool {
		return g.reflexes[i].Priority > g.reflexes[j].Priority
	})
}

// LoadDir overlays every *.yaml / *.yml grammar file in dir. Files that fail
// to parse are logged and skipped.
func (g *Grammar) LoadDir(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return 0, fmt.Errorf("failed to glob grammar: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return 0, fmt.Errorf("failed to glob grammar: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			logging.Warn("reflex", "failed to read %s: %v", file, err)
			continue
		}
		reflexes, err := ParseGrammar(data)
		if err != nil {
			logging.Warn("reflex", "failed to load %s: %v", file, err)
			continue
		}
		g.Add(reflexes...)
		loaded += len(reflexes)
	}
	logging.Info("reflex", "loaded %d reflexes from %s", loaded, dir)
	return loaded, nil
}

// Reflexes returns the templates in match order
func (g *Grammar) Reflexes() []*Reflex {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Reflex, len(g.reflexes))
	copy(out, g.reflexes)
	return out
}

// Commands returns the distinct command names the grammar can produce
func (g *Grammar) Commands() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range g.Reflexes() {
		if !seen[r.Command] {
			seen[r.Command] = true
			out = append(out, r.Command)
		}
	}
	sort.Strings(out)
	return out
}

// Match returns the highest-priority template matching text
func (g *Grammar) Match(text string) (Match, bool) {
	normalized := NormalizeCommandText(text)
	if normalized == "" {
		return Match{}, false
	}
	for _, r := range g.Reflexes() {
		res := r.Match(normalized)
		if !res.Matched {
			continue
		}
		return Match{
			Reflex:     r,
			Command:    r.Command,
			Entities:   res.Extracted,
			Confidence: r.confidence(),
		}, true
	}
	return Match{}, false
}

var (
	leadingFiller  = regexp.MustCompile(`(?i)^(?:(?:hey |ok |okay )?jarvis[,:]?\s+)?(?:(?:please|pls|can you|could you|would you)\s+)?`)
	trailingFiller = regexp.MustCompile(`(?i)(?:,?\s+please)?[\s.!?]*$`)
	spaces         = regexp.MustCompile(`\s+`)
)

// NormalizeCommandText strips the wake word, politeness and trailing
// punctuation so templates only describe the command itself.
func NormalizeCommandText(text string) string {
	text = spaces.ReplaceAllString(strings.TrimSpace(text), " ")
	text = leadingFiller.ReplaceAllString(text, "")
	text = trailingFiller.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
