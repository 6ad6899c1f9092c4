// Package profiling records per-utterance pipeline stage timings as JSONL.
package profiling

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Pipeline stages
const (
	StageClassify  = "classify"
	StageSentiment = "sentiment"
	StageDispatch  = "dispatch"
	StageEntities  = "entities"
	StageCompose   = "compose"
)

// StageTiming is one measured stage
type StageTiming struct {
	Stage      string  `json:"stage"`
	DurationMs float64 `json:"duration_ms"`
}

// Record is one line of the profile log
type Record struct {
	UtteranceID string         `json:"utterance_id"`
	StartTime   time.Time      `json:"start_time"`
	TotalMs     float64        `json:"total_ms"`
	Stages      []StageTiming  `json:"stages"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Profiler appends stage timings to a JSONL file. A nil *Profiler is a
// valid no-op.
type Profiler struct {
	mu      sync.Mutex
	logFile *os.File
	encoder *json.Encoder
}

// Open creates a profiler writing to path, creating parent directories
func Open(path string) (*Profiler, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create profile dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open profiling log: %w", err)
	}
	return &Profiler{logFile: f, encoder: json.NewEncoder(f)}, nil
}

// Close closes the log file
func (p *Profiler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.logFile == nil {
		return nil
	}
	err := p.logFile.Close()
	p.logFile, p.encoder = nil, nil
	return err
}

// Enabled reports whether timings are written
func (p *Profiler) Enabled() bool {
	return p != nil
}

// Begin starts timing one utterance
func (p *Profiler) Begin(utteranceID string) *Trace {
	if p == nil {
		return nil
	}
	return &Trace{p: p, id: utteranceID, start: time.Now()}
}

func (p *Profiler) write(rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.encoder == nil {
		return nil
	}
	return p.encoder.Encode(rec)
}

// Trace collects the stages of one utterance. A nil *Trace is a no-op.
type Trace struct {
	p     *Profiler
	id    string
	start time.Time

	mu     sync.Mutex
	stages []StageTiming
}

// Stage begins timing a stage and returns a function to call when done
func (t *Trace) Stage(name string) func() {
	if t == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		t.Add(name, time.Since(start))
	}
}

// Add records a stage duration
func (t *Trace) Add(name string, d time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.stages = append(t.stages, StageTiming{Stage: name, DurationMs: millis(d)})
	t.mu.Unlock()
}

// Finish writes the trace
func (t *Trace) Finish(metadata map[string]any) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	stages := make([]StageTiming, len(t.stages))
	copy(stages, t.stages)
	t.mu.Unlock()

	return t.p.write(Record{
		UtteranceID: t.id,
		StartTime:   t.start,
		TotalMs:     millis(time.Since(t.start)),
		Stages:      stages,
		Metadata:    metadata,
	})
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
