package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger wraps a sugared zap logger and scrubs every key/value pair
// through the process redaction policy before it is written.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	policy        *Policy
}

func New(mode string) (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	level := zap.DebugLevel
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		level = zap.InfoLevel
	case "test":
		level = zap.WarnLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: base.Sugar(), policy: PolicyFromEnv()}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), policy: PolicyFromEnv()}
}

// WithPolicy returns a copy of l that scrubs with p.
func (l *Logger) WithPolicy(p *Policy) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger, policy: p}
}

// Component tags every entry with the emitting subsystem.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.policy.Scrub(kv)...)
}

func (l *Logger) Info(msg string, kv ...interface{}) {
	l.SugaredLogger.Infow(msg, l.policy.Scrub(kv)...)
}

func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.policy.Scrub(kv)...)
}

func (l *Logger) Error(msg string, kv ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.policy.Scrub(kv)...)
}

func (l *Logger) Fatal(msg string, kv ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.policy.Scrub(kv)...)
}

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.policy.Scrub(kv)...), policy: l.policy}
}
