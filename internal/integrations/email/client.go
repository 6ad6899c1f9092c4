// Package email is a file-backed mail collaborator: outgoing mail is queued in
// an outbox JSONL for a delivery transport, incoming mail is read from an
// inbox JSONL maintained by an external sync.
package email

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/jarvis/internal/logging"
)

// Message statuses
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// MaxCachedEmails bounds how many inbox messages are kept in memory
const MaxCachedEmails = 100

// Message is one email
type Message struct {
	ID      string    `json:"id"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	Subject string    `json:"subject,omitempty"`
	Body    string    `json:"body,omitempty"`
	Date    time.Time `json:"date"`
	Status  string    `json:"status,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Transport delivers a message (SMTP, an API, a test double)
type Transport interface {
	Deliver(ctx context.Context, m Message) error
}

// Client queues outgoing mail and reads the inbox
type Client struct {
	mu         sync.Mutex
	outbox     map[string]*Message
	outboxPath string
	inboxPath  string
	transport  Transport
}

// NewClient creates a client rooted at dir (outbox.jsonl, inbox.jsonl)
func NewClient(dir string, transport Transport) *Client {
	return &Client{
		outbox:     make(map[string]*Message),
		outboxPath: filepath.Join(dir, "outbox.jsonl"),
		inboxPath:  filepath.Join(dir, "inbox.jsonl"),
		transport:  transport,
	}
}

// Load restores the outbox. Later lines override earlier ones (status updates).
func (c *Client) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs, err := readJSONL(c.outboxPath)
	if err != nil {
		return err
	}
	c.outbox = make(map[string]*Message)
	for i := range msgs {
		m := msgs[i]
		c.outbox[m.ID] = &m
	}
	return nil
}

// Send queues a message and, when a transport is configured, delivers it.
// The returned message carries the final status.
func (c *Client) Send(ctx context.Context, to, subject, body string) (*Message, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(to))
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if strings.TrimSpace(subject) == "" {
		subject = "Message from Jarvis"
	}

	m := &Message{
		ID:      uuid.NewString(),
		To:      addr.Address,
		Subject: strings.TrimSpace(subject),
		Body:    strings.TrimSpace(body),
		Date:    time.Now(),
		Status:  StatusPending,
	}
	if err := c.append(m); err != nil {
		return nil, fmt.Errorf("failed to queue email: %w", err)
	}

	if c.transport == nil {
		return m, nil
	}
	if err := c.transport.Deliver(ctx, *m); err != nil {
		c.mark(m.ID, StatusFailed, err.Error())
		return nil, fmt.Errorf("delivery failed: %w", err)
	}
	c.mark(m.ID, StatusSent, "")
	m.Status = StatusSent
	return m, nil
}

// Pending returns queued messages awaiting an external sender
func (c *Client) Pending() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Message
	for _, m := range c.outbox {
		if m.Status == StatusPending {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// MarkSent records delivery by an external sender
func (c *Client) MarkSent(id string) {
	c.mark(id, StatusSent, "")
}

// MarkFailed records a failed delivery
func (c *Client) MarkFailed(id, reason string) {
	c.mark(id, StatusFailed, reason)
}

func (c *Client) mark(id, status, reason string) {
	c.mu.Lock()
	m, ok := c.outbox[id]
	if ok {
		m.Status = status
		m.Error = reason
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if err := c.append(m); err != nil {
		logging.Warn("email", "failed to persist status for %s: %v", id, err)
	}
}

func (c *Client) append(m *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outbox[m.ID] = m
	if err := os.MkdirAll(filepath.Dir(c.outboxPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(c.outboxPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Recent returns up to limit inbox messages, newest first. A non-empty filter
// keeps messages whose sender or subject contains it (case-insensitive).
func (c *Client) Recent(ctx context.Context, filter string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	msgs, err := readJSONL(c.inboxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	if len(msgs) > MaxCachedEmails {
		msgs = msgs[len(msgs)-MaxCachedEmails:]
	}

	filter = strings.ToLower(strings.TrimSpace(filter))
	var out []Message
	for _, m := range msgs {
		if filter != "" &&
			!strings.Contains(strings.ToLower(m.From), filter) &&
			!strings.Contains(strings.ToLower(m.Subject), filter) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func readJSONL(path string) ([]Message, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var m Message
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			continue // skip malformed lines
		}
		out = append(out, m)
	}
	return out, scanner.Err()
}
