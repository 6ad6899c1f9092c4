package effectors

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vthunder/jarvis/internal/types"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []string
	errs   []error // returned in order, then nil
	typing int
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.sent = append(f.sent, channelID+":"+content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakeSender) ChannelTyping(string, ...discordgo.RequestOption) error {
	f.mu.Lock()
	f.typing++
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func restError(code int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: code}}
}

func TestIsNonRetryableError(t *testing.T) {
	assert.False(t, isNonRetryableError(errors.New("network timeout")))
	for _, code := range []int{400, 401, 403, 404, 429} {
		assert.True(t, isNonRetryableError(restError(code)), code)
	}
	for _, code := range []int{500, 502, 503} {
		assert.False(t, isNonRetryableError(restError(code)), code)
	}
	assert.False(t, isNonRetryableError(&discordgo.RESTError{}))
}

func TestBackoff(t *testing.T) {
	want := []time.Duration{1, 2, 4, 8, 16, 32, 60, 60}
	for i, w := range want {
		assert.Equal(t, w*time.Second, backoffFor(i+1), "attempt %d", i+1)
	}
}

func TestSpeakQueuesAndFlushes(t *testing.T) {
	s := &fakeSender{}
	e := NewDiscordEffector(s, "chan")
	require.NoError(t, e.Speak(context.Background(), "hello", types.Voice{}))
	assert.Equal(t, 1, e.Pending())

	e.flush(time.Now())
	assert.Equal(t, []string{"chan:hello"}, s.messages())
	assert.Zero(t, e.Pending())

	assert.Error(t, NewDiscordEffector(s, "").Speak(context.Background(), "x", types.Voice{}))
}

func TestTransientErrorIsRetriedAfterBackoff(t *testing.T) {
	s := &fakeSender{errs: []error{errors.New("transient")}}
	e := NewDiscordEffector(s, "chan")
	var attempts []int
	e.SetOnRetry(func(_, _ string, attempt int, _ time.Duration) { attempts = append(attempts, attempt) })

	now := time.Now()
	e.Submit("chan", "hi")
	e.flush(now)
	assert.Equal(t, 1, e.Pending())
	assert.Equal(t, []int{1}, attempts)

	e.flush(now.Add(500 * time.Millisecond))
	assert.Empty(t, s.messages(), "still backing off")

	e.flush(now.Add(2 * time.Second))
	assert.Equal(t, []string{"chan:hi"}, s.messages())
	assert.Zero(t, e.Pending())
}

func TestPermanentFailures(t *testing.T) {
	s := &fakeSender{errs: []error{restError(403)}}
	e := NewDiscordEffector(s, "chan")
	var failed []string
	e.SetOnError(func(id, _ string) { failed = append(failed, id) })

	id := e.Submit("chan", "forbidden")
	e.flush(time.Now())
	assert.Equal(t, []string{id}, failed)
	assert.Zero(t, e.Pending())

	s.errs = []error{errors.New("a"), errors.New("b")}
	e.SetMaxRetryDuration(100 * time.Millisecond)
	id = e.Submit("chan", "flaky")
	now := time.Now()
	e.flush(now)
	e.flush(now.Add(2 * time.Second))
	assert.Equal(t, id, failed[len(failed)-1])
	assert.Zero(t, e.Pending())
}

func TestStopDropsQueue(t *testing.T) {
	e := NewDiscordEffector(&fakeSender{}, "chan")
	e.Submit("chan", "a")
	e.Submit("chan", "b")
	require.NoError(t, e.Stop())
	assert.Zero(t, e.Pending())
}

func TestPollLoopLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &fakeSender{}
	e := NewDiscordEffector(s, "chan")
	e.pollInterval = 5 * time.Millisecond
	e.Start()
	e.Submit("chan", "tick")
	require.Eventually(t, func() bool { return len(s.messages()) == 1 }, time.Second, 5*time.Millisecond)
	e.Typing("")
	e.Close()
	e.Close()
	assert.Equal(t, 1, s.typing)
}

func TestChunkMessage(t *testing.T) {
	assert.Equal(t, []string{"hello"}, chunkMessage("hello", 2000))
	assert.Equal(t, []string{""}, chunkMessage("", 2000))
	assert.Len(t, chunkMessage(strings.Repeat("a", 2000), 2000), 1)

	for _, sep := range []string{"\n\n", "\n", " "} {
		msg := strings.Repeat("a", 1500) + sep + strings.Repeat("b", 1500)
		assert.Len(t, chunkMessage(msg, 2000), 2, "%q", sep)
	}

	msg := strings.Repeat("x", 5000)
	chunks := chunkMessage(msg, 2000)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 2000)
	}
	assert.Equal(t, msg, strings.Join(chunks, ""))
	assert.Equal(t, 2000, findSplitPoint(strings.Repeat("x", 3000), 2000))
}

func TestConsoleSpeaker(t *testing.T) {
	var sb strings.Builder
	sp := NewConsoleSpeaker(&sb, WithPrefix("> "))
	require.NoError(t, sp.Speak(context.Background(), "Hello there.", types.Voice{Pitch: 1, Speed: 1}))
	assert.Equal(t, "> Hello there.\n", sb.String())
	assert.NoError(t, sp.Stop())
}

type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func TestConsoleSpeakerStopInterrupts(t *testing.T) {
	defer goleak.VerifyNone(t)

	buf := &syncBuffer{}
	sp := NewConsoleSpeaker(buf, WithPrefix(""), WithWordDelay(50*time.Millisecond))
	done := make(chan error, 1)
	go func() {
		done <- sp.Speak(context.Background(), "one two three four five six", types.Voice{Speed: 1})
	}()
	require.Eventually(t, func() bool { return strings.HasPrefix(buf.String(), "one") }, time.Second, time.Millisecond)
	require.NoError(t, sp.Stop())

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, buf.String(), "six")
}
