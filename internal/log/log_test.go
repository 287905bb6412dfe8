package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), LevelDebug, OutputJSON, &buf)

	Debug(ctx, "debug line", "k", "v")
	Info(ctx, "info line", "k", "v")
	Warn(ctx, "warn line")
	Error(ctx, "error line", "err", "boom")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[3], &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "error line", entry["msg"])
	assert.Equal(t, "boom", entry["err"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), LevelErr, OutputText, &buf)

	Info(ctx, "suppressed")
	Error(ctx, "kept")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "kept")
}

func TestWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), LevelInfo, OutputJSON, &buf)
	ctx = With(ctx, "threadID", "thread-1")

	Info(ctx, "line")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "thread-1", entry["threadID"])
}

func TestCopyFromContext(t *testing.T) {
	var buf bytes.Buffer
	orig := NewContext(context.Background(), LevelInfo, OutputJSON, &buf)

	dest := CopyFromContext(orig, context.Background())
	Info(dest, "carried over")

	assert.Contains(t, buf.String(), "carried over")
}
