package effectors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/types"
)

// Discord limits
const (
	MaxMessageLength        = 2000
	DefaultMaxRetryDuration = 5 * time.Minute
	maxBackoff              = 60 * time.Second
)

// Sender is the subset of *discordgo.Session the effector uses
type Sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Outgoing is a queued message
type Outgoing struct {
	ID        string
	ChannelID string
	Content   string
	Queued    time.Time
}

type retryState struct {
	attempts  int
	firstFail time.Time
	nextRetry time.Time
}

// DiscordEffector sends replies to Discord. Messages are queued and flushed
// by a poll loop; transient failures are retried with exponential backoff.
type DiscordEffector struct {
	sender           Sender
	channelID        string
	pollInterval     time.Duration
	maxRetryDuration time.Duration

	mu    sync.Mutex
	queue []*Outgoing

	retryMu     sync.Mutex
	retryStates map[string]*retryState

	onError func(id, errMsg string)
	onRetry func(id, errMsg string, attempt int, nextRetry time.Duration)

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDiscordEffector creates an effector. channelID is where Speak sends.
func NewDiscordEffector(sender Sender, channelID string) *DiscordEffector {
	return &DiscordEffector{
		sender:           sender,
		channelID:        channelID,
		pollInterval:     100 * time.Millisecond,
		maxRetryDuration: DefaultMaxRetryDuration,
		retryStates:      make(map[string]*retryState),
		stopChan:         make(chan struct{}),
	}
}

// SetOnError registers a callback for permanently failed messages
func (e *DiscordEffector) SetOnError(cb func(id, errMsg string)) { e.onError = cb }

// SetOnRetry registers a callback for scheduled retries
func (e *DiscordEffector) SetOnRetry(cb func(id, errMsg string, attempt int, nextRetry time.Duration)) {
	e.onRetry = cb
}

// SetMaxRetryDuration bounds how long a message keeps being retried
func (e *DiscordEffector) SetMaxRetryDuration(d time.Duration) { e.maxRetryDuration = d }

// Start begins flushing the queue
func (e *DiscordEffector) Start() {
	e.wg.Add(1)
	go e.pollLoop()
	logging.Info("discord-effector", "started")
}

// Close stops the poll loop and waits for it to exit
func (e *DiscordEffector) Close() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
}

// Submit queues content for channelID and returns the message id
func (e *DiscordEffector) Submit(channelID, content string) string {
	msg := &Outgoing{ID: uuid.NewString(), ChannelID: channelID, Content: content, Queued: time.Now()}
	e.mu.Lock()
	e.queue = append(e.queue, msg)
	e.mu.Unlock()
	return msg.ID
}

// Speak queues text for the default channel
func (e *DiscordEffector) Speak(_ context.Context, text string, _ types.Voice) error {
	if e.channelID == "" {
		return errors.New("no discord channel configured")
	}
	e.Submit(e.channelID, text)
	return nil
}

// Stop drops everything not yet sent
func (e *DiscordEffector) Stop() error {
	e.mu.Lock()
	dropped := len(e.queue)
	e.queue = nil
	e.mu.Unlock()

	e.retryMu.Lock()
	e.retryStates = make(map[string]*retryState)
	e.retryMu.Unlock()
	if dropped > 0 {
		logging.Info("discord-effector", "dropped %d queued messages", dropped)
	}
	return nil
}

// Pending returns the number of queued messages
func (e *DiscordEffector) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Typing shows the typing indicator; errors are ignored
func (e *DiscordEffector) Typing(channelID string) {
	if channelID == "" {
		channelID = e.channelID
	}
	if err := e.sender.ChannelTyping(channelID); err != nil {
		logging.Debug("discord-effector", "typing indicator failed: %v", err)
	}
}

func (e *DiscordEffector) pollLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.flush(time.Now())
		}
	}
}

// flush tries every queued message that isn't backing off
func (e *DiscordEffector) flush(now time.Time) {
	e.mu.Lock()
	pending := make([]*Outgoing, len(e.queue))
	copy(pending, e.queue)
	e.mu.Unlock()

	for _, msg := range pending {
		if !e.shouldRetryNow(msg.ID, now) {
			continue
		}
		err := e.send(msg)
		if err != nil && e.handleSendError(msg, err, now) {
			continue
		}
		if err == nil {
			e.clearRetry(msg.ID)
			logging.Debug("discord-effector", "sent %s: %s", msg.ID, logging.Truncate(msg.Content, 60))
		}
		e.remove(msg.ID)
	}
}

func (e *DiscordEffector) send(msg *Outgoing) error {
	if msg.ChannelID == "" {
		return errors.New("missing channel_id")
	}
	for _, chunk := range chunkMessage(msg.Content, MaxMessageLength) {
		if _, err := e.sender.ChannelMessageSend(msg.ChannelID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (e *DiscordEffector) remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, m := range e.queue {
		if m.ID == id {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			return
		}
	}
}

// handleSendError records a failure and reports whether the message should
// stay queued for another attempt
func (e *DiscordEffector) handleSendError(msg *Outgoing, err error, now time.Time) bool {
	if isNonRetryableError(err) {
		e.fail(msg, err)
		return false
	}

	e.retryMu.Lock()
	state, ok := e.retryStates[msg.ID]
	if !ok {
		state = &retryState{firstFail: now}
		e.retryStates[msg.ID] = state
	}
	if now.Sub(state.firstFail) > e.maxRetryDuration {
		e.retryMu.Unlock()
		e.fail(msg, fmt.Errorf("gave up after %d attempts: %w", state.attempts, err))
		return false
	}
	state.attempts++
	backoff := backoffFor(state.attempts)
	state.nextRetry = now.Add(backoff)
	attempt := state.attempts
	e.retryMu.Unlock()

	logging.Warn("discord-effector", "send %s failed (attempt %d), retrying in %v: %v", msg.ID, attempt, backoff, err)
	if e.onRetry != nil {
		e.onRetry(msg.ID, err.Error(), attempt, backoff)
	}
	return true
}

func (e *DiscordEffector) fail(msg *Outgoing, err error) {
	e.clearRetry(msg.ID)
	logging.Error("discord-effector", err, "message %s failed permanently", msg.ID)
	if e.onError != nil {
		e.onError(msg.ID, err.Error())
	}
}

func (e *DiscordEffector) clearRetry(id string) {
	e.retryMu.Lock()
	delete(e.retryStates, id)
	e.retryMu.Unlock()
}

func (e *DiscordEffector) shouldRetryNow(id string, now time.Time) bool {
	e.retryMu.Lock()
	defer e.retryMu.Unlock()
	state, ok := e.retryStates[id]
	if !ok {
		return true
	}
	return !now.Before(state.nextRetry)
}

// backoffFor returns 1s, 2s, 4s... capped at 60s
func backoffFor(attempt int) time.Duration {
	d := time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// isNonRetryableError reports client errors (4xx) that retrying won't fix
func isNonRetryableError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		code := restErr.Response.StatusCode
		return code >= 400 && code < 500
	}
	return false
}

// chunkMessage splits content into pieces of at most maxLen bytes,
// preferring paragraph, line and word boundaries
func chunkMessage(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}
	var chunks []string
	for len(content) > maxLen {
		pt := findSplitPoint(content, maxLen)
		chunks = append(chunks, content[:pt])
		content = content[pt:]
	}
	if content != "" {
		chunks = append(chunks, content)
	}
	return chunks
}

func findSplitPoint(content string, maxLen int) int {
	if len(content) <= maxLen {
		return len(content)
	}
	window := content[:maxLen]
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i >= maxLen/2 {
			return i + len(sep)
		}
	}
	return maxLen
}
