// Package media tracks playback state for music commands. Audio output is
// left to the shell; the player records what should be playing and where.
package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultVolume is the startup volume in percent
const DefaultVolume = 70

// Sources
const (
	SourceLocal   = "local"
	SourceYouTube = "youtube"
	SourceSpotify = "spotify"
)

// Track is something the player was asked to play
type Track struct {
	Query     string    `json:"query"`
	Source    string    `json:"source"`
	URL       string    `json:"url,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Status is a snapshot of the player
type Status struct {
	Playing bool   `json:"playing"`
	Volume  int    `json:"volume"`
	Current *Track `json:"current,omitempty"`
}

// Player is an in-process playback state machine
type Player struct {
	mu      sync.Mutex
	volume  int
	current *Track
	history []Track
	open    func(ctx context.Context, t Track) error
}

// NewPlayer creates a player. open, if set, hands the track to an external
// program (browser, mpv...); it may be nil.
func NewPlayer(volume int, open func(ctx context.Context, t Track) error) *Player {
	if volume < 0 || volume > 100 {
		volume = DefaultVolume
	}
	return &Player{volume: volume, open: open}
}

// Play starts a track. Source is youtube, spotify or local (default).
func (p *Player) Play(ctx context.Context, query, source string) (Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Track{}, fmt.Errorf("nothing to play")
	}
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = SourceLocal
	}

	t := Track{Query: query, Source: source, StartedAt: time.Now()}
	switch source {
	case SourceYouTube:
		t.URL = "https://www.youtube.com/results?search_query=" + url.QueryEscape(query)
	case SourceSpotify:
		t.URL = "https://open.spotify.com/search/" + url.PathEscape(query)
	case SourceLocal:
	default:
		return Track{}, fmt.Errorf("unsupported source %q", source)
	}

	if p.open != nil {
		if err := p.open(ctx, t); err != nil {
			return Track{}, fmt.Errorf("failed to start playback: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = &t
	p.history = append(p.history, t)
	if len(p.history) > 50 {
		p.history = p.history[len(p.history)-50:]
	}
	return t, nil
}

// Stop ends playback. Stopping an idle player is not an error.
func (p *Player) Stop(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
	return nil
}

// SetVolume sets the volume in percent (0-100)
func (p *Player) SetVolume(_ context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", percent)
	}
	p.mu.Lock()
	p.volume = percent
	p.mu.Unlock()
	return nil
}

// Status returns the current state
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{Playing: p.current != nil, Volume: p.volume}
	if p.current != nil {
		cur := *p.current
		s.Current = &cur
	}
	return s
}

// History returns recently played tracks, oldest first
func (p *Player) History() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Track, len(p.history))
	copy(out, p.history)
	return out
}
