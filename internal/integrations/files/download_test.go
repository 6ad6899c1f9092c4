package files

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"..\\..\\boot.ini", "boot.ini"},
		{".hidden", "hidden"},
		{"my file (1).txt", "my file _1_.txt"},
		{"..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/notes.txt":
			w.Write([]byte("hello"))
		case "/big":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	m := NewManager(dir, WithMaxBytes(32))
	ctx := context.Background()

	path, err := m.Download(ctx, srv.URL+"/files/notes.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	path, err = m.Download(ctx, srv.URL+"/files/notes.txt", "../escape.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.txt"), path)

	_, err = m.Download(ctx, srv.URL+"/missing", "")
	assert.ErrorContains(t, err, "HTTP 404")

	_, err = m.Download(ctx, srv.URL+"/big", "")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = m.Download(ctx, "ftp://example.com/x", "")
	assert.ErrorContains(t, err, "invalid URL")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".partial-"), "temp file left behind: %s", e.Name())
	}
}
