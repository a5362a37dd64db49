package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects where and how verbosely events are written
type Options struct {
	Debug bool
	// File receives JSON events instead of the console when set
	File string
}

// InitLogger replaces the global zap logger. Without Debug every event is
// dropped so streamed answers stay clean. The returned func flushes the sink.
func InitLogger(opts Options) (func(), error) {
	if !opts.Debug {
		l := zap.NewNop()
		zap.ReplaceGlobals(l)
		return func() {}, nil
	}

	var config zap.Config
	if opts.File != "" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		config.OutputPaths = []string{opts.File}
		config.ErrorOutputPaths = []string{opts.File}
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}
	config.DisableStacktrace = true

	l, err := config.Build()
	if err != nil {
		return func() {}, fmt.Errorf("failed to build logger: %w", err)
	}

	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l)
	return func() { _ = l.Sync() }, nil
}

// Named returns a sugared child of the global logger
func Named(name string) *zap.SugaredLogger {
	return zap.S().Named(name)
}
