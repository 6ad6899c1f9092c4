// Package learning keeps the self-learning interaction log and replays past
// successful responses for commands the dispatcher doesn't know.
package learning

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/vthunder/jarvis/internal/filter"
	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/storage"
	"github.com/vthunder/jarvis/internal/types"
)

// Defaults
const (
	DefaultMaxSize         = 500
	DefaultReplayThreshold = 0.8
)

// Store is the durable side of the log
type Store interface {
	AddInteraction(ctx context.Context, in storage.Interaction) error
	RecentInteractions(ctx context.Context, limit int) ([]storage.Interaction, error)
}

// Config configures a Log
type Config struct {
	Enabled   bool
	Path      string // JSONL file; empty disables file persistence
	Store     Store  // optional
	Threshold float64
	MaxSize   int
}

// Log is a bounded, ordered record of interactions
type Log struct {
	mu        sync.RWMutex
	entries   []storage.Interaction
	enabled   bool
	path      string
	store     Store
	threshold float64
	maxSize   int
	fileMu    sync.Mutex
}

// NewLog creates a log
func NewLog(cfg Config) *Log {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultReplayThreshold
	}
	return &Log{
		entries:   make([]storage.Interaction, 0, 64),
		enabled:   cfg.Enabled,
		path:      cfg.Path,
		store:     cfg.Store,
		threshold: cfg.Threshold,
		maxSize:   cfg.MaxSize,
	}
}

// Enabled reports whether logging is on
func (l *Log) Enabled() bool { return l != nil && l.enabled }

// LogInteraction records a finished turn. Persistence errors are logged, never returned.
func (l *Log) LogInteraction(ctx context.Context, turn types.ConversationTurn, success bool) {
	if !l.Enabled() {
		return
	}
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := storage.Interaction{
		ID:         uuid.NewString(),
		Timestamp:  ts,
		Text:       turn.Utterance.Text,
		Normalized: Normalize(turn.Utterance.Text),
		Intent:     turn.Classification.Intent,
		Command:    turn.Classification.Command,
		Response:   turn.Response,
		Success:    success,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.maxSize {
		l.entries = l.entries[len(l.entries)-l.maxSize:]
	}
	l.mu.Unlock()

	if l.path != "" {
		if err := l.appendToDisk(entry); err != nil {
			logging.Error("learning", err, "failed to append interaction")
		}
	}
	if l.store != nil {
		if err := l.store.AddInteraction(ctx, entry); err != nil {
			logging.Error("learning", err, "failed to store interaction")
		}
	}
}

func (l *Log) appendToDisk(entry storage.Interaction) error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Load restores the most recent entries, from the JSONL file when one is
// configured, otherwise from the store.
func (l *Log) Load(ctx context.Context) error {
	var entries []storage.Interaction
	switch {
	case l.path != "":
		var err error
		entries, err = readJSONL(l.path)
		if err != nil {
			return fmt.Errorf("failed to read learning log: %w", err)
		}
	case l.store != nil:
		var err error
		entries, err = l.store.RecentInteractions(ctx, l.maxSize)
		if err != nil {
			return err
		}
	default:
		return nil
	}

	if len(entries) > l.maxSize {
		entries = entries[len(entries)-l.maxSize:]
	}
	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	logging.Debug("learning", "loaded %d interactions", len(entries))
	return nil
}

func readJSONL(path string) ([]storage.Interaction, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []storage.Interaction
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e storage.Interaction
		if err := json.Unmarshal(line, &e); err != nil {
			continue // skip malformed lines
		}
		if e.Normalized == "" {
			e.Normalized = Normalize(e.Text)
		}
		out = append(out, e)
	}
	return out, scanner.Err()
}

// HandleUnknownCommand replays the response of the most similar past
// successful interaction, or returns nil when nothing scores at or above the
// replay threshold.
func (l *Log) HandleUnknownCommand(text string, cls types.Classification) *types.Response {
	if l == nil {
		return nil
	}
	query := Normalize(text)
	if query == "" || filter.IsLowInfo(text) {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		best      *storage.Interaction
		bestScore float64
	)
	for i := range l.entries {
		e := &l.entries[i]
		if !e.Success || strings.TrimSpace(e.Response) == "" {
			continue
		}
		score := Similarity(query, e.Normalized)
		if score >= bestScore && score > 0 {
			best, bestScore = e, score
		}
	}
	if best == nil || bestScore < l.threshold {
		return nil
	}
	logging.Debug("learning", "replaying %q for %q (command %s, score %.2f)", best.Text, text, cls.Command, bestScore)
	return &types.Response{Text: best.Response, Mood: types.MoodThinking}
}

// Normalize lower-cases, strips punctuation and collapses whitespace
func Normalize(text string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Similarity is 1 for identical normalized text, otherwise the Jaccard index
// of the token sets
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	setA := tokenSet(a)
	setB := tokenSet(b)
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		out[t] = true
	}
	return out
}

// Recent returns the n most recent entries, oldest first
func (l *Log) Recent(n int) []storage.Interaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]storage.Interaction, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Stats summarizes the log
type Stats struct {
	Total     int            `json:"total"`
	Successes int            `json:"successes"`
	Failures  int            `json:"failures"`
	ByIntent  map[string]int `json:"by_intent"`
	ByCommand map[string]int `json:"by_command"`
}

// Stats returns counts over the in-memory entries
func (l *Log) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Total: len(l.entries), ByIntent: map[string]int{}, ByCommand: map[string]int{}}
	for _, e := range l.entries {
		if e.Success {
			s.Successes++
		} else {
			s.Failures++
		}
		if e.Intent != "" {
			s.ByIntent[e.Intent]++
		}
		if e.Command != "" {
			s.ByCommand[e.Command]++
		}
	}
	return s
}
