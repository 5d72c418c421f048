package logger

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger from the log.* settings.
// log.format is "json" (default) or "console".
func New() (*zap.Logger, error) {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	level, err := zapcore.ParseLevel(strings.ToLower(viper.GetString("log.level")))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if viper.GetString("log.format") == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Must is New that falls back to a no-op logger so startup can log the failure elsewhere.
func Must() *zap.Logger {
	l, err := New()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
