package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bitget-pnl-tracker-go/internal/config"
)

// NewLogger creates a new zap.Logger instance based on the provided configuration.
// "json" selects the production encoder, anything else the console encoder.
func NewLogger(cfg config.Logger, service string) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	zc.Level = zap.NewAtomicLevelAt(logLevel)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if service != "" {
		zc.InitialFields = map[string]interface{}{"service": service}
	}

	return zc.Build()
}
