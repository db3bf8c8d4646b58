// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package log holds the zap backed logger used by the dashfetch packages.
package log

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the default implementation of logger based on zap.logger.
type ZapLogger struct {
	logger *zap.SugaredLogger
	level  zap.AtomicLevel
}

// Option configures a ZapLogger at construction.
type Option func(*options)

type options struct {
	level  zapcore.Level
	output io.Writer
}

// WithLevel sets the minimum enabled level.
func WithLevel(level string) Option {
	return func(o *options) {
		o.level = ParseLevel(level)
	}
}

// WithOutput redirects log lines, stderr by default.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// ParseLevel maps a level name to a zap level. Unknown names map to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug logs a debug message.
func (z *ZapLogger) Debug(args ...interface{}) {
	z.logger.Debug(args...)
}

// Debugf logs a formatted debug message.
func (z *ZapLogger) Debugf(format string, args ...interface{}) {
	z.logger.Debugf(format, args...)
}

// Info logs an info message.
func (z *ZapLogger) Info(args ...interface{}) {
	z.logger.Info(args...)
}

// Infof logs a formatted info message.
func (z *ZapLogger) Infof(format string, args ...interface{}) {
	z.logger.Infof(format, args...)
}

// Warn logs a warning message.
func (z *ZapLogger) Warn(args ...interface{}) {
	z.logger.Warn(args...)
}

// Warnf logs a formatted warning message.
func (z *ZapLogger) Warnf(format string, args ...interface{}) {
	z.logger.Warnf(format, args...)
}

// Error logs an error message.
func (z *ZapLogger) Error(args ...interface{}) {
	z.logger.Error(args...)
}

// Errorf logs a formatted error message.
func (z *ZapLogger) Errorf(format string, args ...interface{}) {
	z.logger.Errorf(format, args...)
}

// Fatal logs a fatal message and exits.
func (z *ZapLogger) Fatal(args ...interface{}) {
	z.logger.Fatal(args...)
}

// Fatalf logs a formatted fatal message and exits.
func (z *ZapLogger) Fatalf(format string, args ...interface{}) {
	z.logger.Fatalf(format, args...)
}

// With returns a child logger carrying the key/value pairs on every line.
func (z *ZapLogger) With(keysAndValues ...interface{}) *ZapLogger {
	return &ZapLogger{logger: z.logger.With(keysAndValues...), level: z.level}
}

// SetLevel changes the enabled level of this logger and all its children.
func (z *ZapLogger) SetLevel(level string) {
	z.level.SetLevel(ParseLevel(level))
}

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}

// defaultTimeFormat returns the default time format "2006-01-02 15:04:05.000".
func defaultTimeFormat(t time.Time) []byte {
	return []byte(t.Local().Format("2006-01-02 15:04:05.000"))
}

// NewTimeEncoder creates a time format encoder.
func NewTimeEncoder() zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendByteString(defaultTimeFormat(t))
	}
}

// NewZapLogger creates a ZapLogger with trpc-go style zap config.
func NewZapLogger(opts ...Option) *ZapLogger {
	o := &options{level: zapcore.InfoLevel, output: os.Stderr}
	if env := os.Getenv("DASHFETCH_LOG_LEVEL"); env != "" {
		o.level = ParseLevel(env)
	}
	for _, opt := range opts {
		opt(o)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     NewTimeEncoder(),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := zap.NewAtomicLevelAt(o.level)
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(o.output)),
		level,
	)

	// Skip the ZapLogger wrapper frame so callers show up in C.
	logger := zap.New(
		core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	)

	return &ZapLogger{logger: logger.Sugar(), level: level}
}
