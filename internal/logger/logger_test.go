package logger_test

import (
	"testing"

	"github.com/procost/enquiry-api/internal/config"
	"github.com/procost/enquiry-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_LevelFallsBackToInfo(t *testing.T) {
	log, err := logger.NewLogger(
		&config.LoggingConfig{Level: "not-a-level", Format: "console"},
		&config.AppConfig{Name: "test", Environment: "development"},
	)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_JSONFormat(t *testing.T) {
	log, err := logger.NewLogger(
		&config.LoggingConfig{Level: "debug", Format: "json"},
		&config.AppConfig{Name: "test", Environment: "staging"},
	)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, logger.ParseLevel(" WARN "))
	assert.Equal(t, zapcore.DebugLevel, logger.ParseLevel("debug"))
	assert.Equal(t, zapcore.InfoLevel, logger.ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, logger.ParseLevel("verbose"))
}

func TestNamedAndContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	log := logger.WithEnquiry(logger.Named(base, logger.ComponentQuotes), "ENQ-2025-0001")
	log = logger.WithThread(log, "thread-1", "<m1@nordicfish.no>")
	log.Info("Quote generated")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "quotes", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, "ENQ-2025-0001", fields["enquiry_id"])
	assert.Equal(t, "thread-1", fields["thread_key"])
	assert.Equal(t, "<m1@nordicfish.no>", fields["message_key"])

	logger.WithRequest(base, "GET", "/conversations", "req-1").Info("request")
	assert.Equal(t, "req-1", logs.All()[1].ContextMap()["request_id"])
	assert.Empty(t, logs.All()[1].LoggerName)
}
