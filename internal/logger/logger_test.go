package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonesrussell/ddharvester/internal/logger"
)

func TestNew_WritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "run.log")
	log, err := logger.New(logger.Config{Level: "debug", Format: logger.FormatJSON, File: path})
	require.NoError(t, err)

	log.Info("phase start", logger.String("phase", "flair_scan"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"phase":"flair_scan"`)
}

func TestNewFromZap_With(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewFromZap(zap.New(core)).With(logger.String("run_id", "abc"))

	log.Warn("item failed", logger.Int("depth", 2))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "item failed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields["run_id"])
	assert.Equal(t, int64(2), fields["depth"])
}

func TestNewNop(t *testing.T) {
	t.Parallel()

	log := logger.NewNop()
	log.Error("ignored")
	assert.Same(t, log, log.With(logger.Bool("x", true)))
	assert.NoError(t, log.Sync())
}
