package log_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/log"
)

func TestStdLoggerSplitsByLevel(t *testing.T) {
	var out, errW bytes.Buffer
	logger, err := log.NewLogger("standard", log.Debug, &out, &errW)
	require.NoError(t, err)

	ctx := context.Background()
	logger.InfoContext(ctx, "starting run")
	logger.ErrorContext(ctx, "batch failed")

	assert.Contains(t, out.String(), "starting run")
	assert.NotContains(t, out.String(), "batch failed")
	assert.Contains(t, errW.String(), "batch failed")
	assert.NotContains(t, errW.String(), "starting run")
}

func TestStructuredLoggerRenamesAttributes(t *testing.T) {
	var out, errW bytes.Buffer
	logger, err := log.NewLogger("json", log.Info, &out, &errW)
	require.NoError(t, err)

	logger.InfoContext(context.Background(), "processed batch", "rows", 42)
	assert.Contains(t, out.String(), `"message":"processed batch"`)
	assert.Contains(t, out.String(), `"severity":"INFO"`)
}

func TestNewLoggerRejectsUnknownFormat(t *testing.T) {
	_, err := log.NewLogger("xml", log.Info, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSeverityToLevelRejectsUnknown(t *testing.T) {
	_, err := log.SeverityToLevel("verbose")
	assert.Error(t, err)
}

func TestDebugBelowLevelIsSuppressed(t *testing.T) {
	var out bytes.Buffer
	logger, err := log.NewLogger("standard", log.Warn, &out, &bytes.Buffer{})
	require.NoError(t, err)
	logger.DebugContext(context.Background(), "should not appear")
	logger.InfoContext(context.Background(), "also should not appear")
	assert.Empty(t, out.String())
}
