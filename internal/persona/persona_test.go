package persona

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	data map[string][]byte
	err  error
}

func (m *memStore) GetPreference(_ context.Context, key string) ([]byte, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) PutPreference(_ context.Context, key string, value []byte) error {
	if m.err != nil {
		return m.err
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	return nil
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{"friendly", "funny", "professional", "serious"}, c.Names())

	serious, ok := c.Lookup("Serious")
	require.True(t, ok)
	assert.Equal(t, "formal", serious.ResponseStyle)
	assert.False(t, serious.EmojiEnabled)
	assert.InDelta(t, 0.95, serious.VoicePitch, 1e-9)
	assert.Len(t, serious.Greetings, 3)

	funny, _ := c.Lookup("funny")
	assert.Equal(t, "humorous", funny.ResponseStyle)
	assert.True(t, funny.EmojiEnabled)

	assert.True(t, c.ValidTheme("Light"))
	assert.False(t, c.ValidTheme("neon"))
}

func TestNewSessionFallsBack(t *testing.T) {
	s := NewSession(nil, "pirate")
	assert.Equal(t, DefaultPersonality, s.Current().Name)
	assert.Equal(t, DefaultTheme, s.Theme())
}

func TestSetPersonality(t *testing.T) {
	store := &memStore{}
	s := NewSession(nil, "friendly", WithStore(store))
	ctx := context.Background()

	p, err := s.SetPersonality(ctx, "SERIOUS")
	require.NoError(t, err)
	assert.Equal(t, "serious", p.Name)

	_, err = s.SetPersonality(ctx, "pirate")
	assert.ErrorIs(t, err, ErrUnknownPersonality)
	assert.Equal(t, "serious", s.Current().Name)

	var saved Settings
	require.NoError(t, json.Unmarshal(store.data[SettingsKey], &saved))
	assert.Equal(t, Settings{Personality: "serious", Theme: DefaultTheme}, saved)
}

func TestSetTheme(t *testing.T) {
	s := NewSession(nil, "")
	require.NoError(t, s.SetTheme(context.Background(), "Light"))
	assert.Equal(t, "light", s.Theme())
	assert.ErrorIs(t, s.SetTheme(context.Background(), "neon"), ErrUnknownTheme)
	assert.Equal(t, "light", s.Theme())
}

func TestRestore(t *testing.T) {
	store := &memStore{data: map[string][]byte{
		SettingsKey: []byte(`{"personality":"funny","theme":"auto"}`),
	}}
	s := NewSession(nil, "professional", WithStore(store))
	require.NoError(t, s.Restore(context.Background()))
	assert.Equal(t, "funny", s.Current().Name)
	assert.Equal(t, "auto", s.Theme())

	store.data[SettingsKey] = []byte(`{"personality":"pirate","theme":"neon"}`)
	require.NoError(t, s.Restore(context.Background()))
	assert.Equal(t, "funny", s.Current().Name)

	store.err = errors.New("disk gone")
	assert.Error(t, s.Restore(context.Background()))
}

func TestPersistFailureKeepsSelection(t *testing.T) {
	s := NewSession(nil, "professional", WithStore(&memStore{err: errors.New("read-only")}))
	_, err := s.SetPersonality(context.Background(), "friendly")
	require.NoError(t, err)
	assert.Equal(t, "friendly", s.Current().Name)
}

func TestGreeting(t *testing.T) {
	s := NewSession(nil, "serious", WithPicker(func(int) int { return 1 }))
	assert.Equal(t, "Good day. I'm ready to help with any task you require.", s.Greeting())
}
