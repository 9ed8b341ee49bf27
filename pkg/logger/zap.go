package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to the Logger interface. Key/value pairs
// are passed through zap's sugared API so they become structured fields.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level LogLevel
}

// NewZapLogger wraps z. A nil z falls back to zap.NewNop().
func NewZapLogger(z *zap.Logger, level LogLevel) Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &ZapLogger{sugar: z.Sugar(), level: level}
}

// NewProductionZapLogger builds a JSON zap logger writing to stderr.
func NewProductionZapLogger(level LogLevel) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(z, level), nil
}

func (z *ZapLogger) LogMode(level LogLevel) Logger {
	return &ZapLogger{sugar: z.sugar, level: level}
}

func (z *ZapLogger) Info(msg string, args ...any) {
	if z.level >= Info {
		z.sugar.Infow(msg, args...)
	}
}

func (z *ZapLogger) Warn(msg string, args ...any) {
	if z.level >= Warn {
		z.sugar.Warnw(msg, args...)
	}
}

func (z *ZapLogger) Error(msg string, args ...any) {
	if z.level >= Error {
		z.sugar.Errorw(msg, args...)
	}
}

func (z *ZapLogger) Debug(msg string, args ...any) {
	if z.level >= Debug {
		z.sugar.Debugw(msg, args...)
	}
}

// Sync flushes buffered zap output.
func (z *ZapLogger) Sync() error {
	return z.sugar.Sync()
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case Debug:
		return zapcore.DebugLevel
	case Info:
		return zapcore.InfoLevel
	case Warn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
