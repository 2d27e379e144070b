package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production environments get the JSON
// production config, everything else the console development config.
// Empty level or format keep the environment's default.
func New(level, format, env string) (*zap.Logger, error) {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	switch format {
	case "":
	case "json", "console":
		config.Encoding = format
	default:
		return nil, fmt.Errorf("log format must be json or console, got %q", format)
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}
