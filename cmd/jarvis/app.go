package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vthunder/jarvis/internal/assistant"
	"github.com/vthunder/jarvis/internal/buffer"
	"github.com/vthunder/jarvis/internal/compose"
	"github.com/vthunder/jarvis/internal/config"
	"github.com/vthunder/jarvis/internal/effectors"
	"github.com/vthunder/jarvis/internal/integrations/email"
	"github.com/vthunder/jarvis/internal/integrations/files"
	"github.com/vthunder/jarvis/internal/integrations/media"
	"github.com/vthunder/jarvis/internal/integrations/websearch"
	"github.com/vthunder/jarvis/internal/intent"
	"github.com/vthunder/jarvis/internal/learning"
	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/nlp"
	"github.com/vthunder/jarvis/internal/persona"
	"github.com/vthunder/jarvis/internal/profiling"
	"github.com/vthunder/jarvis/internal/reflex"
	"github.com/vthunder/jarvis/internal/sentiment"
	"github.com/vthunder/jarvis/internal/storage"
	"github.com/vthunder/jarvis/internal/sysinfo"
	"github.com/vthunder/jarvis/internal/tasks"
	"github.com/vthunder/jarvis/internal/types"
)

// app is a fully wired Jarvis instance
type app struct {
	cfg       *config.Config
	db        *storage.DB
	session   *persona.Session
	tasks     *tasks.Manager
	assistant *assistant.Assistant
	scheduler *tasks.Scheduler
	learning  *learning.Log
	player    *media.Player
}

// appOptions selects the output side of the instance
type appOptions struct {
	// Speaker voices replies and reminders; nil disables stopSpeaking and reminder delivery
	Speaker effectors.Speaker
	// Reminders starts the reminder scheduler
	Reminders bool
}

// openStore opens the database and a personality session backed by it
func openStore(ctx context.Context, cfg *config.Config) (*storage.DB, *persona.Session, error) {
	db, err := storage.Open(cfg.DBDriver, cfg.DBPath())
	if err != nil {
		return nil, nil, err
	}
	session := persona.NewSession(persona.DefaultCatalog(), cfg.DefaultPersonality, persona.WithStore(db))
	if err := session.Restore(ctx); err != nil {
		logging.Warn("main", "failed to restore settings: %v", err)
	}
	return db, session, nil
}

// textModel picks the statistical model: Ollama when configured, with the
// offline lexicon behind it
func textModel(cfg *config.Config) nlp.TextClassifier {
	lexicon := nlp.NewLexiconClassifier()
	if cfg.OllamaModel == "" {
		return lexicon
	}
	logging.Info("main", "using ollama model %s at %s", cfg.OllamaModel, cfg.OllamaURL)
	return nlp.Fallback{nlp.NewOllamaClassifier(cfg.OllamaURL, cfg.OllamaModel), lexicon}
}

func loadGrammar(cfg *config.Config) (*reflex.Grammar, error) {
	grammar, err := reflex.DefaultGrammar()
	if err != nil {
		return nil, err
	}
	if cfg.GrammarDir != "" {
		n, err := grammar.LoadDir(cfg.GrammarDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load grammar from %s: %w", cfg.GrammarDir, err)
		}
		logging.Info("main", "loaded %d extra commands from %s", n, cfg.GrammarDir)
	}
	return grammar, nil
}

// newApp wires storage, the pipeline stages and every command collaborator
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	db, session, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, session: session}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	grammar, err := loadGrammar(cfg)
	if err != nil {
		return nil, err
	}
	model := textModel(cfg)

	a.tasks = tasks.NewManager(db)
	a.learning = learning.NewLog(learning.Config{
		Enabled:   cfg.SelfLearning,
		Path:      cfg.Path("learning.jsonl"),
		Store:     db,
		Threshold: cfg.ReplayThreshold,
	})

	mail := email.NewClient(cfg.Path("mail"), nil)
	if err := mail.Load(); err != nil {
		logging.Warn("main", "failed to load mail outbox: %v", err)
	}

	a.player = media.NewPlayer(media.DefaultVolume, nil)
	svc := reflex.Services{
		Tasks:   a.tasks,
		Media:   a.player,
		Email:   mail,
		Files:   files.NewManager(cfg.DownloadDir),
		Search:  websearch.NewClient(os.Getenv("JARVIS_SEARCH_ENDPOINT")),
		System:  sysinfo.NewReader(),
		Session: session,
	}
	if opts.Speaker != nil {
		svc.Speaker = opts.Speaker
	}
	reg := reflex.NewActionRegistry()
	reflex.RegisterBuiltins(reg, svc)

	var prof *profiling.Profiler
	if cfg.Profile {
		if prof, err = profiling.Open(cfg.Path("profile.jsonl")); err != nil {
			return nil, err
		}
	}

	a.assistant, err = assistant.New(assistant.Config{
		CommandConfidenceThreshold: cfg.CommandConfidenceThreshold,
		CallTimeout:                cfg.CallTimeout,
		CommandTimeouts: map[string]time.Duration{
			reflex.CmdDownloadFile: files.DefaultTimeout,
			reflex.CmdSearchWeb:    websearch.DefaultTimeout,
		},
	}, assistant.Deps{
		Classifier: intent.NewClassifier(model, grammar),
		Sentiment:  sentiment.NewAnalyzer(model),
		Engine:     reflex.NewEngine(reg, reflex.WithUnknownHandler(a.learning)),
		Context:    buffer.NewContextWindow(cfg.ContextWindowSize),
		Composer:   compose.New(),
		Session:    session,
		Learning:   a.learning,
		Store:      db,
		Profiler:   prof,
	})
	if err != nil {
		prof.Close()
		return nil, err
	}
	a.assistant.Restore(ctx)

	if opts.Reminders && opts.Speaker != nil {
		a.scheduler = tasks.NewScheduler(a.tasks, cfg.ReminderInterval, reminderNotifier(session, opts.Speaker))
		if err := a.scheduler.Start(); err != nil {
			return nil, err
		}
	}

	ok = true
	return a, nil
}

// reminderNotifier speaks "Reminder: X" in the current personality's voice
func reminderNotifier(session *persona.Session, speaker effectors.Speaker) tasks.Notifier {
	return func(ctx context.Context, r storage.Reminder) error {
		p := session.Current()
		text := compose.ApplyStyle(p.ResponseStyle, "Reminder: "+r.Text)
		return speaker.Speak(ctx, text, compose.VoiceFor(p, types.MoodAlert))
	}
}

// Close stops the scheduler, drains background writes and closes the database
func (a *app) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.assistant != nil {
		if err := a.assistant.Close(); err != nil {
			logging.Warn("main", "failed to close assistant: %v", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
