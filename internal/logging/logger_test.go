package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubsystemField(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.InfoLevel)

	Info("pipeline", "processed %d turns", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "pipeline", line["subsystem"])
	assert.Equal(t, "processed 3 turns", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.InfoLevel)

	Debug("pipeline", "hidden")
	assert.Empty(t, buf.String())

	SetOutput(&buf, zerolog.DebugLevel)
	Debug("pipeline", "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestErrorCarriesErr(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.InfoLevel)

	Error("storage", errors.New("disk full"), "append failed")
	assert.True(t, strings.Contains(buf.String(), `"error":"disk full"`))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "a b", Truncate("a\nb", 10))
	assert.Equal(t, "hello...", Truncate("hello world", 5))
	assert.Equal(t, "héllo...", Truncate("héllo wörld", 5))
}
