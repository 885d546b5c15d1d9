package logger

import (
	"github.com/gomantics/gitwatch/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Development mode gets a coloured console
// encoder; otherwise JSON. GITWATCH_LOG_LEVEL overrides the level of either.
func New() *zap.Logger {
	var cfg zap.Config

	if config.IsDev() {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		// Fetch and poll loops log every pass; sampling would hide skips.
		cfg.Sampling = nil
	}

	if lvl := config.LogLevel(); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}

	return l.Named("gitwatch")
}
