package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayStop(t *testing.T) {
	p := NewPlayer(-1, nil)
	ctx := context.Background()
	assert.Equal(t, DefaultVolume, p.Status().Volume)

	tr, err := p.Play(ctx, "lofi beats", "YouTube")
	require.NoError(t, err)
	assert.Equal(t, SourceYouTube, tr.Source)
	assert.Equal(t, "https://www.youtube.com/results?search_query=lofi+beats", tr.URL)

	st := p.Status()
	assert.True(t, st.Playing)
	require.NotNil(t, st.Current)
	assert.Equal(t, "lofi beats", st.Current.Query)

	require.NoError(t, p.Stop(ctx))
	assert.False(t, p.Status().Playing)
	require.NoError(t, p.Stop(ctx))
	assert.Len(t, p.History(), 1)
}

func TestPlayValidation(t *testing.T) {
	p := NewPlayer(50, nil)
	_, err := p.Play(context.Background(), "  ", "")
	assert.Error(t, err)
	_, err = p.Play(context.Background(), "jazz", "cassette")
	assert.ErrorContains(t, err, "unsupported source")
}

func TestPlayOpenerFailure(t *testing.T) {
	p := NewPlayer(50, func(context.Context, Track) error { return errors.New("no browser") })
	_, err := p.Play(context.Background(), "jazz", "")
	assert.ErrorContains(t, err, "no browser")
	assert.False(t, p.Status().Playing)
}

func TestSetVolume(t *testing.T) {
	p := NewPlayer(50, nil)
	require.NoError(t, p.SetVolume(context.Background(), 0))
	require.NoError(t, p.SetVolume(context.Background(), 100))
	assert.Equal(t, 100, p.Status().Volume)
	assert.Error(t, p.SetVolume(context.Background(), 101))
	assert.Error(t, p.SetVolume(context.Background(), -5))
}
