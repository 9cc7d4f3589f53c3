package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"bitget-pnl-tracker-go/internal/config"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(config.Logger{Level: "warn", Format: "json"}, "tracker")
	assert.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))

	log, err = NewLogger(config.Logger{Level: "debug", Format: "console"}, "")
	assert.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := NewLogger(config.Logger{Level: "loud"}, "ui")
	assert.Error(t, err)
}
