// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger on stderr, configured for development or
// production. An empty level means debug in development and info otherwise.
func New(development bool, level string) (*zap.Logger, error) {
	return newLogger(os.Stderr, development, level)
}

func newLogger(w io.Writer, development bool, level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if development {
		lvl = zapcore.DebugLevel
	}
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		lvl = parsed
	}
	return NewWithSink(w, lvl, development), nil
}

// NewWithSink builds a logger writing to w. Writes are serialized with
// zapcore.Lock, so every logger derived from the result shares one mutex.
func NewWithSink(w io.Writer, level zapcore.Level, development bool) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encoder := zapcore.NewJSONEncoder(encCfg)
	if development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.TimeKey = "ts"
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
