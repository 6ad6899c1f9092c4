// Package persona holds the personality catalog and the per-user session
// (selected personality and theme) shared by the composer and dispatcher.
package persona

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/types"
)

//go:embed personas.yaml
var defaultCatalog []byte

// SettingsKey is the preferences key holding the session
const SettingsKey = "userSettings"

// DefaultPersonality is used when nothing else resolves
const DefaultPersonality = "professional"

// DefaultTheme is the startup theme
const DefaultTheme = "dark"

var (
	// ErrUnknownPersonality is returned for names missing from the catalog
	ErrUnknownPersonality = errors.New("unknown personality")
	// ErrUnknownTheme is returned for unsupported theme names
	ErrUnknownTheme = errors.New("unknown theme")
)

// Catalog is the static set of personalities and themes
type Catalog struct {
	profiles map[string]types.PersonalityProfile
	themes   []string
}

type catalogFile struct {
	Personalities []types.PersonalityProfile `yaml:"personalities"`
	Themes        []string                   `yaml:"themes"`
}

// ParseCatalog decodes a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse personalities: %w", err)
	}
	c := &Catalog{profiles: make(map[string]types.PersonalityProfile)}
	for _, p := range f.Personalities {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return nil, fmt.Errorf("personality without a name")
		}
		p.Name = name
		if p.VoicePitch == 0 {
			p.VoicePitch = 1
		}
		if p.VoiceSpeed == 0 {
			p.VoiceSpeed = 1
		}
		c.profiles[name] = p
	}
	if len(c.profiles) == 0 {
		return nil, fmt.Errorf("catalog has no personalities")
	}
	for _, t := range f.Themes {
		c.themes = append(c.themes, strings.ToLower(strings.TrimSpace(t)))
	}
	return c, nil
}

// DefaultCatalog returns the embedded catalog
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded personas.yaml: %v", err))
	}
	return c
}

// Lookup finds a personality by case-insensitive name
func (c *Catalog) Lookup(name string) (types.PersonalityProfile, bool) {
	p, ok := c.profiles[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names lists personality names, sorted
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.profiles))
	for n := range c.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Themes lists supported theme names
func (c *Catalog) Themes() []string {
	return append([]string(nil), c.themes...)
}

// ValidTheme reports whether theme is supported
func (c *Catalog) ValidTheme(theme string) bool {
	theme = strings.ToLower(strings.TrimSpace(theme))
	for _, t := range c.themes {
		if t == theme {
			return true
		}
	}
	return false
}

// PreferenceStore persists opaque settings blobs
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) ([]byte, bool, error)
	PutPreference(ctx context.Context, key string, value []byte) error
}

// Settings is the persisted form of a session
type Settings struct {
	Personality string `json:"personality"`
	Theme       string `json:"theme"`
}

// Session is the current personality and theme. Safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	catalog *Catalog
	store   PreferenceStore
	current types.PersonalityProfile
	theme   string
	pick    func(n int) int
}

// Option configures a Session
type Option func(*Session)

// WithStore persists changes to store
func WithStore(store PreferenceStore) Option {
	return func(s *Session) { s.store = store }
}

// WithPicker overrides greeting selection (tests)
func WithPicker(pick func(n int) int) Option {
	return func(s *Session) { s.pick = pick }
}

// NewSession starts a session on the named personality. Unknown names fall
// back to DefaultPersonality.
func NewSession(catalog *Catalog, personality string, opts ...Option) *Session {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	s := &Session{catalog: catalog, theme: DefaultTheme, pick: rand.IntN}
	for _, opt := range opts {
		opt(s)
	}
	p, ok := catalog.Lookup(personality)
	if !ok {
		if personality != "" {
			logging.Warn("persona", "unknown personality %q, using %s", personality, DefaultPersonality)
		}
		p, ok = catalog.Lookup(DefaultPersonality)
		if !ok {
			p, _ = catalog.Lookup(catalog.Names()[0])
		}
	}
	s.current = p
	return s
}

// Catalog returns the session's catalog
func (s *Session) Catalog() *Catalog { return s.catalog }

// Current returns the active personality
func (s *Session) Current() types.PersonalityProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Theme returns the active theme
func (s *Session) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetPersonality switches personality. An unknown name leaves the session unchanged.
func (s *Session) SetPersonality(ctx context.Context, name string) (types.PersonalityProfile, error) {
	p, ok := s.catalog.Lookup(name)
	if !ok {
		return s.Current(), fmt.Errorf("%w %q", ErrUnknownPersonality, name)
	}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	s.persist(ctx)
	return p, nil
}

// SetTheme switches theme. An unknown theme leaves the session unchanged.
func (s *Session) SetTheme(ctx context.Context, theme string) error {
	if !s.catalog.ValidTheme(theme) {
		return fmt.Errorf("%w %q", ErrUnknownTheme, theme)
	}
	s.mu.Lock()
	s.theme = strings.ToLower(strings.TrimSpace(theme))
	s.mu.Unlock()
	s.persist(ctx)
	return nil
}

// Greeting picks one of the current personality's greetings
func (s *Session) Greeting() string {
	p := s.Current()
	if len(p.Greetings) == 0 {
		return "Hello! How can I help?"
	}
	return p.Greetings[s.pick(len(p.Greetings))]
}

// Settings returns the persisted form
func (s *Session) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Settings{Personality: s.current.Name, Theme: s.theme}
}

// Restore loads saved settings. Unknown saved values are ignored.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	data, ok, err := s.store.GetPreference(ctx, SettingsKey)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", SettingsKey, err)
	}
	if !ok {
		return nil
	}
	var saved Settings
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("failed to decode %s: %w", SettingsKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.catalog.Lookup(saved.Personality); ok {
		s.current = p
	}
	if s.catalog.ValidTheme(saved.Theme) {
		s.theme = strings.ToLower(saved.Theme)
	}
	return nil
}

func (s *Session) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(s.Settings())
	if err != nil {
		logging.Error("persona", err, "failed to encode settings")
		return
	}
	if err := s.store.PutPreference(ctx, SettingsKey, data); err != nil {
		logging.Error("persona", err, "failed to save settings")
	}
}
