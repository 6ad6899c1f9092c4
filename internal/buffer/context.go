// Package buffer holds the rolling conversation context the composer reads.
package buffer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/vthunder/jarvis/internal/types"
)

// ViewSize is how many recent turns Current exposes
const ViewSize = 5

// ContextWindow is a fixed-capacity ring of conversation turns
type ContextWindow struct {
	mu    sync.RWMutex
	turns []types.ConversationTurn // ring storage, len == cap once full
	start int                      // index of the oldest turn
	size  int
}

// NewContextWindow creates a window holding at most capacity turns (minimum 1)
func NewContextWindow(capacity int) *ContextWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &ContextWindow{turns: make([]types.ConversationTurn, capacity)}
}

// Update appends a turn, evicting the oldest when full
func (w *ContextWindow) Update(turn types.ConversationTurn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.push(turn)
}

func (w *ContextWindow) push(turn types.ConversationTurn) {
	capacity := len(w.turns)
	if w.size < capacity {
		w.turns[(w.start+w.size)%capacity] = turn
		w.size++
		return
	}
	w.turns[w.start] = turn
	w.start = (w.start + 1) % capacity
}

// Current returns up to the last ViewSize turns, most recent last
func (w *ContextWindow) Current() []types.ConversationTurn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := w.size
	if n > ViewSize {
		n = ViewSize
	}
	return w.tail(n)
}

// All returns every buffered turn, oldest first
func (w *ContextWindow) All() []types.ConversationTurn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tail(w.size)
}

func (w *ContextWindow) tail(n int) []types.ConversationTurn {
	out := make([]types.ConversationTurn, n)
	capacity := len(w.turns)
	for i := 0; i < n; i++ {
		out[i] = w.turns[(w.start+w.size-n+i)%capacity]
	}
	return out
}

// LoadHistory replaces the window with turns (oldest first), keeping the most
// recent Cap() of them
func (w *ContextWindow) LoadHistory(turns []types.ConversationTurn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
	if len(turns) > len(w.turns) {
		turns = turns[len(turns)-len(w.turns):]
	}
	for _, t := range turns {
		w.push(t)
	}
}

// Len is the number of buffered turns
func (w *ContextWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Cap is the window capacity
func (w *ContextWindow) Cap() int {
	return len(w.turns)
}

// Clear drops all turns
func (w *ContextWindow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
}

func (w *ContextWindow) reset() {
	for i := range w.turns {
		w.turns[i] = types.ConversationTurn{}
	}
	w.start, w.size = 0, 0
}

// Texts returns the utterance texts of the current view
func (w *ContextWindow) Texts() []string {
	cur := w.Current()
	out := make([]string, 0, len(cur))
	for _, t := range cur {
		out = append(out, t.Utterance.Text)
	}
	return out
}

// Format renders the current view as a transcript
func (w *ContextWindow) Format() string {
	var sb strings.Builder
	for _, t := range w.Current() {
		fmt.Fprintf(&sb, "[%s] user: %s\n", t.Timestamp.Format("15:04"), t.Utterance.Text)
		if t.Response != "" {
			fmt.Fprintf(&sb, "[%s] jarvis: %s\n", t.Timestamp.Format("15:04"), t.Response)
		}
	}
	return sb.String()
}
