package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode selects how the global logger is built
type Mode int

const (
	// ModeQuiet discards all log output
	ModeQuiet Mode = iota
	// ModeDebug writes colored development output to stderr
	ModeDebug
	// ModeServer writes JSON lines at info level, as a long-running backend does
	ModeServer
)

var logger *zap.SugaredLogger

// InitLogger initializes the global zap logger for the given mode
func InitLogger(mode Mode) *zap.SugaredLogger {
	var l *zap.Logger

	switch mode {
	case ModeDebug:
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		config.DisableStacktrace = true
		l = build(config)
	case ModeServer:
		config := zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.DisableStacktrace = true
		l = build(config)
	default:
		l = zap.NewNop()
	}

	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l)
	logger = l.Sugar()
	return logger
}

func build(config zap.Config) *zap.Logger {
	l, err := config.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// GetLogger returns the global sugared logger
func GetLogger() *zap.SugaredLogger {
	if logger == nil {
		InitLogger(ModeQuiet)
	}
	return logger
}

// Sync flushes buffered log entries; errors from syncing a terminal are ignored
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
