// Package files downloads URLs into a sandboxed download directory.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/vthunder/jarvis/internal/logging"
)

// ErrTooLarge is returned when a download exceeds the size cap
var ErrTooLarge = errors.New("download exceeds size limit")

// DefaultTimeout bounds a whole download
const DefaultTimeout = 60 * time.Second

// Manager downloads files
type Manager struct {
	dir       string
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// Option configures a Manager
type Option func(*Manager)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithMaxBytes caps download size
func WithMaxBytes(n int64) Option {
	return func(m *Manager) { m.maxBytes = n }
}

// NewManager creates a manager writing into dir
func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{
		dir:       dir,
		client:    &http.Client{Timeout: DefaultTimeout},
		maxBytes:  100 * 1024 * 1024,
		userAgent: "Jarvis/1.0",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the download directory
func (m *Manager) Dir() string { return m.dir }

// Download fetches rawURL and writes it under the download directory. When
// filename is empty the last path segment of the URL is used. Returns the
// absolute path written.
func (m *Manager) Download(ctx context.Context, rawURL, filename string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q", rawURL)
	}

	name := SanitizeFilename(filename)
	if name == "" {
		name = SanitizeFilename(path.Base(u.Path))
	}
	if name == "" {
		name = "download"
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}
	dest, err := m.resolve(name)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(m.dir, ".partial-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, m.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	if n > m.maxBytes {
		return "", ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to save download: %w", err)
	}

	logging.Info("files", "downloaded %s (%d bytes) to %s", u.Redacted(), n, dest)
	return dest, nil
}

// resolve joins name onto the download dir and refuses anything escaping it
func (m *Manager) resolve(name string) (string, error) {
	root, err := filepath.Abs(m.dir)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(root, name)
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	return dest, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// SanitizeFilename reduces name to a single safe path element
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if len(name) > 128 {
		name = name[:128]
	}
	return strings.TrimSpace(name)
}
