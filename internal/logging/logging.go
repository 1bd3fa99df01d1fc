// Package logging builds the zap logger shared by every command. Logs go to
// stderr so stdout stays reserved for the response envelope.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultLevel    = "warn"
	DefaultEncoding = "console"
)

type Config struct {
	Level    string
	Encoding string
	// Output defaults to stderr.
	Output []string
}

// New returns a no-op logger when the level is "off".
func New(cfg Config) (*zap.Logger, error) {
	levelName := strings.ToLower(strings.TrimSpace(cfg.Level))
	if levelName == "" {
		levelName = DefaultLevel
	}
	if levelName == "off" || levelName == "none" {
		return zap.NewNop(), nil
	}
	var level zapcore.Level
	if err := level.Set(levelName); err != nil {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}

	encoding := strings.ToLower(strings.TrimSpace(cfg.Encoding))
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if encoding != "console" && encoding != "json" {
		return nil, fmt.Errorf("invalid log encoding %q", cfg.Encoding)
	}
	output := cfg.Output
	if len(output) == 0 {
		output = []string{"stderr"}
	}

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          encoding,
		DisableCaller:     true,
		DisableStacktrace: true,
		EncoderConfig:     zap.NewProductionEncoderConfig(),
		OutputPaths:       output,
		ErrorOutputPaths:  []string{"stderr"},
	}
	if encoding == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
