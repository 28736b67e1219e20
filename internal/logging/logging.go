// Package logging provides the structured logger used across oro.
//
// It wraps zerolog with a small API shaped around component loggers:
//
//	log := logging.New(logging.Config{Level: "debug"})
//	log.WithComponent("process").Debug("spawned", logging.Fields("pid", 42))
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Standard field keys.
const (
	FieldComponent = "component"
	FieldExecID    = "exec_id"
	FieldProgram   = "program"
	FieldExitCode  = "exit_code"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldPath      = "path"
)

// Config configures a Logger.
type Config struct {
	Level   string `toml:"level" yaml:"level"`
	Format  string `toml:"format" yaml:"format"`
	Output  string `toml:"output" yaml:"output"`
	NoColor bool   `toml:"no_color" yaml:"no_color"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "warn"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate checks the level and format values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("log level must be one of trace, debug, info, warn, error, disabled (got: %s)", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json (got: %s)", c.Format)
	}
	return nil
}

// Logger wraps zerolog.Logger.
type Logger struct {
	logger zerolog.Logger
}

// New creates a logger writing to the configured output.
func New(cfg Config) *Logger {
	cfg.ApplyDefaults()
	return NewWithWriter(cfg, outputWriter(cfg.Output))
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	cfg.ApplyDefaults()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.WarnLevel
	}

	if strings.ToLower(cfg.Format) == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "15:04:05",
			NoColor:    cfg.NoColor,
		}
	}

	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{logger: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{logger: l.logger.With().Str(FieldComponent, name).Logger()}
}

// With returns a logger carrying the given fields on every event.
func (l *Logger) With(fields map[string]any) *Logger {
	zc := l.logger.With()
	for k, v := range fields {
		zc = zc.Interface(k, v)
	}
	return &Logger{logger: zc.Logger()}
}

// Zerolog returns the underlying zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// Enabled reports whether events at level would be written.
func (l *Logger) Enabled(level zerolog.Level) bool {
	return l.logger.GetLevel() <= level && level != zerolog.Disabled
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]any) {
	emit(l.logger.Debug(), msg, fields)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]any) {
	emit(l.logger.Info(), msg, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]any) {
	emit(l.logger.Warn(), msg, fields)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]any) {
	emit(l.logger.Error(), msg, fields)
}

// Fields builds a field map from alternating key-value pairs.
//
//	log.Info("done", logging.Fields("op", "save", "id", 42))
func Fields(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

func emit(event *zerolog.Event, msg string, fields []map[string]any) {
	if event == nil {
		return
	}
	for _, fm := range fields {
		for k, v := range fm {
			if err, ok := v.(error); ok {
				event.AnErr(k, err)
				continue
			}
			event.Interface(k, v)
		}
	}
	event.Msg(msg)
}

func outputWriter(output string) io.Writer {
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout
	default:
		return os.Stderr
	}
}
