// Package assistant runs the Jarvis pipeline: classify an utterance,
// dispatch it when it is a confident command, otherwise fold it into the
// conversation and compose a styled reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/jarvis/internal/buffer"
	"github.com/vthunder/jarvis/internal/compose"
	"github.com/vthunder/jarvis/internal/intent"
	"github.com/vthunder/jarvis/internal/learning"
	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/persona"
	"github.com/vthunder/jarvis/internal/profiling"
	"github.com/vthunder/jarvis/internal/reflex"
	"github.com/vthunder/jarvis/internal/sentiment"
	"github.com/vthunder/jarvis/internal/storage"
	"github.com/vthunder/jarvis/internal/types"
)

// Errors
var (
	ErrBusy           = errors.New("assistant is busy processing another utterance")
	ErrEmptyUtterance = errors.New("empty utterance")
	ErrNoThreshold    = errors.New("command confidence threshold must be within [0,1]")
)

// DefaultCallTimeout bounds each external call
const DefaultCallTimeout = 10 * time.Second

// Store is the durable side of the pipeline
type Store interface {
	AddConversation(ctx context.Context, turn types.ConversationTurn) error
	RecentConversations(ctx context.Context, limit int) ([]types.ConversationTurn, error)
	LogMood(ctx context.Context, m storage.MoodLog) error
}

// Config holds pipeline settings
type Config struct {
	// CommandConfidenceThreshold has no default; values outside [0,1] are rejected
	CommandConfidenceThreshold float64
	CallTimeout                time.Duration
	// CommandTimeouts overrides CallTimeout for slow commands, keyed by command name
	CommandTimeouts            map[string]time.Duration
	Now                        func() time.Time
}

// Deps are the pipeline stages and collaborators. Classifier, Sentiment,
// Engine, Context, Composer and Session are required.
type Deps struct {
	Classifier *intent.Classifier
	Sentiment  *sentiment.Analyzer
	Engine     *reflex.Engine
	Context    *buffer.ContextWindow
	Composer   *compose.Composer
	Session    *persona.Session
	Learning   *learning.Log       // optional
	Store      Store               // optional
	Profiler   *profiling.Profiler // optional
}

// Result is the full outcome of one utterance
type Result struct {
	Response       types.Response        `json:"response"`
	Classification types.Classification  `json:"classification"`
	Sentiment      types.SentimentResult `json:"sentiment"`
	Command        *types.CommandResult  `json:"command,omitempty"`
	Entities       types.Entities        `json:"entities,omitempty"`
}

// Assistant processes one utterance at a time
type Assistant struct {
	cfg  Config
	deps Deps
	busy atomic.Bool

	// background writes run in order on one worker; a full queue drops writes
	writes     chan func(ctx context.Context)
	pending    sync.WaitGroup
	workerDone chan struct{}
	closeMu    sync.Mutex
	closed     bool
}

// New validates cfg and deps and creates an assistant
func New(cfg Config, deps Deps) (*Assistant, error) {
	if cfg.CommandConfidenceThreshold < 0 || cfg.CommandConfidenceThreshold > 1 ||
		cfg.CommandConfidenceThreshold != cfg.CommandConfidenceThreshold {
		return nil, fmt.Errorf("%w: got %v", ErrNoThreshold, cfg.CommandConfidenceThreshold)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	switch {
	case deps.Classifier == nil:
		return nil, errors.New("classifier is required")
	case deps.Sentiment == nil:
		return nil, errors.New("sentiment analyzer is required")
	case deps.Engine == nil:
		return nil, errors.New("command engine is required")
	case deps.Context == nil:
		return nil, errors.New("context window is required")
	case deps.Composer == nil:
		return nil, errors.New("composer is required")
	case deps.Session == nil:
		return nil, errors.New("persona session is required")
	}
	a := &Assistant{
		cfg:        cfg,
		deps:       deps,
		writes:     make(chan func(ctx context.Context), 64),
		workerDone: make(chan struct{}),
	}
	go a.writer()
	return a, nil
}

// Session returns the personality session
func (a *Assistant) Session() *persona.Session { return a.deps.Session }

// Context returns the conversation window
func (a *Assistant) Context() *buffer.ContextWindow { return a.deps.Context }

// Restore loads recent conversation and the learning log. The session
// restores its own settings. Failures are logged; the assistant starts fresh.
func (a *Assistant) Restore(ctx context.Context) {
	if a.deps.Store != nil {
		cctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
		turns, err := a.deps.Store.RecentConversations(cctx, a.deps.Context.Cap())
		cancel()
		if err != nil {
			logging.Error("assistant", err, "failed to load conversation history")
		} else {
			a.deps.Context.LoadHistory(turns)
			logging.Info("assistant", "restored %d turns of context", len(turns))
		}
	}
	if a.deps.Learning != nil {
		if err := a.deps.Learning.Load(ctx); err != nil {
			logging.Error("assistant", err, "failed to load learning log")
		}
	}
}

// Stats is a snapshot of what the pipeline has done since it started
type Stats struct {
	Commands []string                       `json:"commands"`
	Fired    map[string]reflex.CommandStats `json:"fired"`
	Learning *learning.Stats                `json:"learning,omitempty"`
	Context  []string                       `json:"context"`
}

// Stats reports registered commands, per-command counters, the learning log
// summary and the utterances in the current context view
func (a *Assistant) Stats() Stats {
	s := Stats{
		Commands: a.deps.Engine.Actions().List(),
		Fired:    a.deps.Engine.Stats(),
		Context:  a.deps.Context.Texts(),
	}
	if a.deps.Learning.Enabled() {
		ls := a.deps.Learning.Stats()
		s.Learning = &ls
	}
	return s
}

// Greeting returns the current personality's greeting
func (a *Assistant) Greeting() types.Response {
	p := a.deps.Session.Current()
	text := compose.ApplyStyle(p.ResponseStyle, a.deps.Session.Greeting())
	return types.Response{
		Text:      text,
		Mood:      types.MoodNeutral,
		Animation: compose.AnimationFor(types.MoodNeutral),
		Voice:     compose.VoiceFor(p, types.MoodNeutral),
	}
}

// Process handles one utterance and returns the reply
func (a *Assistant) Process(ctx context.Context, text string) (types.Response, error) {
	res, err := a.ProcessTurn(ctx, text)
	return res.Response, err
}

// ProcessTurn handles one utterance. A concurrent call returns ErrBusy.
// Panics and stage failures become the degraded response, never an error.
func (a *Assistant) ProcessTurn(ctx context.Context, text string) (res Result, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyUtterance
	}
	if !a.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer a.busy.Store(false)

	defer func() {
		if r := recover(); r != nil {
			logging.Error("assistant", fmt.Errorf("panic: %v", r), "pipeline failed for %q\n%s",
				logging.Truncate(text, 50), debug.Stack())
			res = Result{Response: compose.Degraded()}
			err = nil
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return a.run(ctx, types.Utterance{Text: text, Timestamp: a.cfg.Now()}), nil
}

func (a *Assistant) run(ctx context.Context, utt types.Utterance) Result {
	trace := a.deps.Profiler.Begin(uuid.NewString())
	var meta map[string]any
	defer func() {
		if err := trace.Finish(meta); err != nil {
			logging.Debug("assistant", "profile write failed: %v", err)
		}
	}()

	done := trace.Stage(profiling.StageClassify)
	cls := a.classify(ctx, utt.Text)
	done()

	done = trace.Stage(profiling.StageSentiment)
	sent := a.analyze(ctx, utt.Text)
	done()

	res := Result{Classification: cls, Sentiment: sent}

	if cls.IsCommand() && cls.Confidence >= a.cfg.CommandConfidenceThreshold {
		done = trace.Stage(profiling.StageDispatch)
		cmd := a.dispatch(ctx, utt.Text, cls)
		done()
		if cmd != nil {
			meta = map[string]any{"command": cls.Command, "kind": cmd.Kind}
			res.Command = cmd

			done = trace.Stage(profiling.StageCompose)
			res.Response = a.deps.Composer.Compose(compose.Analysis{
				Utterance:      utt,
				Classification: cls,
				Sentiment:      sent,
				Profile:        a.deps.Session.Current(),
				Command:        cmd,
			})
			done()

			a.learn(types.ConversationTurn{
				Utterance:      utt,
				Classification: cls,
				Sentiment:      sent,
				Response:       res.Response.Text,
				Mood:           res.Response.Mood,
				Timestamp:      utt.Timestamp,
			}, cmd.Kind == types.ResultSuccess)
			return res
		}
		logging.Debug("assistant", "no handler for %s, answering conversationally", cls.Command)
	}

	done = trace.Stage(profiling.StageEntities)
	entities := intent.ExtractEntities(utt.Text)
	done()
	res.Entities = entities

	prior := a.deps.Context.Current()
	contextTexts := make([]string, 0, len(prior))
	for _, t := range prior {
		contextTexts = append(contextTexts, t.Utterance.Text)
	}

	done = trace.Stage(profiling.StageCompose)
	res.Response = a.deps.Composer.Compose(compose.Analysis{
		Utterance:      utt,
		Classification: cls,
		Sentiment:      sent,
		Entities:       entities,
		Context:        prior,
		Profile:        a.deps.Session.Current(),
	})
	done()

	turn := types.ConversationTurn{
		Utterance:      utt,
		Classification: cls,
		Sentiment:      sent,
		Entities:       entities,
		Context:        contextTexts,
		Response:       res.Response.Text,
		Mood:           res.Response.Mood,
		Timestamp:      utt.Timestamp,
	}
	a.deps.Context.Update(turn)
	a.persist(turn)
	a.learn(turn, !cls.IsCommand())
	meta = map[string]any{"intent": cls.Intent, "mood": res.Response.Mood}
	return res
}

func (a *Assistant) classify(ctx context.Context, text string) types.Classification {
	cctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()
	return a.deps.Classifier.Classify(cctx, text)
}

func (a *Assistant) analyze(ctx context.Context, text string) types.SentimentResult {
	cctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()
	return a.deps.Sentiment.Analyze(cctx, text)
}

func (a *Assistant) dispatch(ctx context.Context, text string, cls types.Classification) *types.CommandResult {
	cctx, cancel := context.WithTimeout(reflex.WithUtterance(ctx, text), a.commandTimeout(cls.Command))
	defer cancel()
	return a.deps.Engine.Dispatch(cctx, cls.Command, cls.Entities)
}

func (a *Assistant) commandTimeout(command string) time.Duration {
	if d, ok := a.cfg.CommandTimeouts[command]; ok && d > 0 {
		return d
	}
	return a.cfg.CallTimeout
}

// persist stores the turn and its mood in the background
func (a *Assistant) persist(turn types.ConversationTurn) {
	if a.deps.Store == nil {
		return
	}
	a.goBackground(func(ctx context.Context) {
		if err := a.deps.Store.AddConversation(ctx, turn); err != nil {
			logging.Error("assistant", err, "failed to store conversation")
		}
		if err := a.deps.Store.LogMood(ctx, storage.MoodLog{
			Timestamp: turn.Timestamp,
			Mood:      string(turn.Mood),
			Notes:     logging.Truncate(turn.Utterance.Text, 80),
		}); err != nil {
			logging.Error("assistant", err, "failed to log mood")
		}
	})
}

func (a *Assistant) learn(turn types.ConversationTurn, success bool) {
	if !a.deps.Learning.Enabled() {
		return
	}
	a.goBackground(func(ctx context.Context) {
		a.deps.Learning.LogInteraction(ctx, turn, success)
	})
}

func (a *Assistant) goBackground(fn func(ctx context.Context)) {
	a.closeMu.Lock()
	defer a.closeMu.Unlock()
	if a.closed {
		logging.Warn("assistant", "dropping background write after close")
		return
	}
	a.pending.Add(1)
	select {
	case a.writes <- fn:
	default:
		a.pending.Done()
		logging.Warn("assistant", "write queue full, dropping background write")
	}
}

func (a *Assistant) writer() {
	defer close(a.workerDone)
	for fn := range a.writes {
		a.runWrite(fn)
	}
}

func (a *Assistant) runWrite(fn func(ctx context.Context)) {
	defer a.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("assistant", fmt.Errorf("panic: %v", r), "background write failed")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.CallTimeout)
	defer cancel()
	fn(ctx)
}

// Flush waits for queued background writes to finish
func (a *Assistant) Flush() {
	a.pending.Wait()
}

// Close drains background writes, stops the writer and closes the profiler
func (a *Assistant) Close() error {
	a.closeMu.Lock()
	if !a.closed {
		a.closed = true
		close(a.writes)
	}
	a.closeMu.Unlock()
	<-a.workerDone
	return a.deps.Profiler.Close()
}
