// Package logging builds the zap loggers used across the engine.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported output encodings.
const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

// Config selects the logger level, encoding and preset.
type Config struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`

	// Encoding is json or console. Empty picks the preset default.
	Encoding string `yaml:"encoding" json:"encoding" validate:"omitempty,oneof=json console"`

	// Development switches to zap's development preset (stack traces on
	// warn, human-friendly output).
	Development bool `yaml:"development" json:"development"`

	// OutputPaths overrides the sinks, e.g. stderr or a file path.
	OutputPaths []string `yaml:"output_paths,omitempty" json:"output_paths,omitempty"`
}

// DefaultConfig returns production logging at info level.
func DefaultConfig() Config {
	return Config{Level: "info", Encoding: EncodingJSON}
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	zcfg, err := buildConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func buildConfig(cfg Config) (zap.Config, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zap.Config{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	switch cfg.Encoding {
	case "":
	case EncodingJSON, EncodingConsole:
		zcfg.Encoding = cfg.Encoding
	default:
		return zap.Config{}, fmt.Errorf("invalid log encoding %q", cfg.Encoding)
	}

	if len(cfg.OutputPaths) > 0 {
		zcfg.OutputPaths = cfg.OutputPaths
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg, nil
}

// Named returns l scoped to component, or a no-op logger when l is nil.
func Named(l *zap.Logger, component string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.Named(component)
}
