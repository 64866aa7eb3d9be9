package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/iapkit/pkg/logger"
)

type attemptKey struct{}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Run("json by default", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("hello")

		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText))
		log.Info("hello")
		assert.Contains(t, buf.String(), "level=INFO")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.New(logger.WithFormat("xml"))
		})
	})

	t.Run("static attributes", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithAttr(slog.String("svc", "iap")))
		log.Info("msg")
		assert.Equal(t, "iap", decode(t, buf)["svc"])
	})

	t.Run("level filters records", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		assert.Empty(t, buf.String())
	})

	t.Run("context value", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithContextValue("attempt_id", attemptKey{}))
		ctx := context.WithValue(context.Background(), attemptKey{}, "a-1")
		log.InfoContext(ctx, "msg")
		assert.Equal(t, "a-1", decode(t, buf)["attempt_id"])
	})

	t.Run("context value missing", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithContextValue("attempt_id", attemptKey{}))
		log.InfoContext(context.Background(), "msg")
		_, ok := decode(t, buf)["attempt_id"]
		assert.False(t, ok)
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Run("production uses json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("prod", "iapctl"))
		log.Debug("hidden")
		log.Info("shown")

		entry := decode(t, buf)
		assert.Equal(t, "shown", entry["msg"])
		assert.Equal(t, "production", entry["env"])
		assert.Equal(t, "iapctl", entry["service"])
	})

	t.Run("unknown falls back to development", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("", "iapctl"))
		log.Debug("visible")
		assert.Contains(t, buf.String(), "env=development")
		assert.Contains(t, buf.String(), "msg=visible")
	})
}

func TestAttrs(t *testing.T) {
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))
	assert.True(t, logger.TransactionID("").Equal(slog.Attr{}))
	assert.True(t, logger.UserID("").Equal(slog.Attr{}))

	assert.Equal(t, "pack_id", logger.PackID("coins").Key)
	assert.Equal(t, "stage", logger.Stage("start").Key)
	assert.Equal(t, "retry_count", logger.RetryCount(2).Key)
	assert.Equal(t, int64(2), logger.RetryCount(2).Value.Int64())

	g := logger.Errors(assert.AnError, nil, assert.AnError).Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "0", g[0].Key)
	assert.Equal(t, "2", g[1].Key)
}
