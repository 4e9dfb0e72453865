// Copyright 2025 The OpenBACnet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log wraps zap with a key-value style Logger interface and a single
// process-wide root logger.
package log

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openbacnet/openbacnet/pkg/private/serrors"
)

// Level is an alias for the zap logging levels.
type Level = zapcore.Level

// ConsoleLevel is the level of the console logger. It can be changed at
// runtime and serves HTTP: a GET returns the level, a PUT with a JSON body
// like {"level":"debug"} changes it.
var ConsoleLevel = zap.NewAtomicLevel()

const (
	// DefaultConsoleLevel is the default log level for the console.
	DefaultConsoleLevel = "info"
	// DefaultStacktraceLevel is the default log level for which stack traces
	// are included.
	DefaultStacktraceLevel = "none"
)

// Logger describes the logger interface.
type Logger interface {
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(lvl Level) bool
}

type logger struct {
	logger *zap.Logger
}

// New creates a logger with the given context, derived from the root logger.
func New(ctx ...any) Logger {
	return &logger{logger: zap.L().With(convertCtx(ctx)...)}
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.logger.Debug(msg, convertCtx(ctx)...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.logger.Info(msg, convertCtx(ctx)...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.logger.Error(msg, convertCtx(ctx)...)
}

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Core().Enabled(lvl)
}

func (l *logger) WithOptions(opts ...zap.Option) Logger {
	return &logger{logger: l.logger.WithOptions(opts...)}
}

// Root returns the root logger. It's a logger without any context.
func Root() Logger {
	return &logger{logger: zap.L()}
}

// Debug logs at debug level on the root logger.
func Debug(msg string, ctx ...any) {
	zapLogger().Debug(msg, convertCtx(ctx)...)
}

// Info logs at info level on the root logger.
func Info(msg string, ctx ...any) {
	zapLogger().Info(msg, convertCtx(ctx)...)
}

// Error logs at error level on the root logger.
func Error(msg string, ctx ...any) {
	zapLogger().Error(msg, convertCtx(ctx)...)
}

// Flush writes the logs to the underlying buffer.
func Flush() {
	_ = zapLogger().Sync()
}

// HandlePanic catches panics and logs them. Deferred at the top of every
// goroutine that is not allowed to take the process down.
func HandlePanic() {
	if msg := recover(); msg != nil {
		zapLogger().Error("Panic", zap.Any("msg", msg), zap.Stack("stack"))
		_ = zapLogger().Sync()
		panic(msg)
	}
}

func zapLogger() *zap.Logger {
	return zap.L().WithOptions(zap.AddCallerSkip(1))
}

func convertCtx(ctx []any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(ctx[i]), ctx[i+1]))
	}
	return fields
}

// ConsoleConfig is the configuration for the console logger.
type ConsoleConfig struct {
	// Level of console logging (defaults to DefaultConsoleLevel).
	Level string `toml:"level,omitempty"`
	// Format of the console logging, "human" or "json" (defaults to human).
	Format string `toml:"format,omitempty"`
	// StacktraceLevel sets from which level stacktraces are included.
	StacktraceLevel string `toml:"stacktrace_level,omitempty"`
}

// Config is the configuration for the logger.
type Config struct {
	// Console is the configuration for the console logging.
	Console ConsoleConfig `toml:"console,omitempty"`
}

// InitDefaults populates unset fields in cfg to their default values.
func (c *Config) InitDefaults() {
	if c.Console.Level == "" {
		c.Console.Level = DefaultConsoleLevel
	}
	if c.Console.Format == "" {
		c.Console.Format = "human"
	}
	if c.Console.StacktraceLevel == "" {
		c.Console.StacktraceLevel = DefaultStacktraceLevel
	}
}

// Validate checks that the logging configuration makes sense.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Console.Level); err != nil {
		return serrors.Wrap("invalid console level", err, "level", c.Console.Level)
	}
	if c.Console.Format != "" && c.Console.Format != "human" && c.Console.Format != "json" {
		return serrors.New("invalid console format", "format", c.Console.Format)
	}
	return nil
}

// EntriesCounter defines the metrics emitted per log entry.
type EntriesCounter struct {
	Debug prometheus.Counter
	Info  prometheus.Counter
	Error prometheus.Counter
}

// Option is a function that sets an option.
type Option func(o *options)

type options struct {
	entriesCounter *EntriesCounter
}

// WithEntriesCounter configures a metric counters that are incremented with
// every emitted log entry.
func WithEntriesCounter(m EntriesCounter) Option {
	return func(o *options) {
		o.entriesCounter = &m
	}
}

// Setup configures the process-wide root logger and replaces zap's global.
func Setup(cfg Config, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg.InitDefaults()
	level, err := parseLevel(cfg.Console.Level)
	if err != nil {
		return serrors.Wrap("parsing log level", err, "level", cfg.Console.Level)
	}
	ConsoleLevel.SetLevel(level)
	zCfg := zap.Config{
		Level:            ConsoleLevel,
		Encoding:         encoding(cfg.Console.Format),
		EncoderConfig:    encoderConfig(cfg.Console.Format),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}
	zOpts := []zap.Option{stacktraceOption(cfg.Console.StacktraceLevel)}
	if o.entriesCounter != nil {
		zOpts = append(zOpts, zap.Hooks(o.entriesCounter.hook))
	}
	l, err := zCfg.Build(zOpts...)
	if err != nil {
		return serrors.Wrap("creating logger", err)
	}
	zap.ReplaceGlobals(l)
	return nil
}

func (m *EntriesCounter) hook(e zapcore.Entry) error {
	switch e.Level {
	case zapcore.ErrorLevel:
		if m.Error != nil {
			m.Error.Inc()
		}
	case zapcore.InfoLevel:
		if m.Info != nil {
			m.Info.Inc()
		}
	case zapcore.DebugLevel:
		if m.Debug != nil {
			m.Debug.Inc()
		}
	}
	return nil
}

func stacktraceOption(lvl string) zap.Option {
	if lvl == "" || strings.ToLower(lvl) == "none" {
		return zap.AddStacktrace(zapcore.InvalidLevel)
	}
	level, err := parseLevel(lvl)
	if err != nil {
		return zap.AddStacktrace(zapcore.InvalidLevel)
	}
	return zap.AddStacktrace(level)
}

func parseLevel(lvl string) (zapcore.Level, error) {
	return zapcore.ParseLevel(strings.ToLower(lvl))
}

func encoding(format string) string {
	if format == "json" {
		return "json"
	}
	return "console"
}

func encoderConfig(format string) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	if format != "json" {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg
}
