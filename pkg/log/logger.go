package log

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name (case-insensitive). Accepts debug, info,
// warn/warning, error, fatal.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, errors.New("log: unknown level " + s)
	}
}

// Entry represents a single log entry handed to a Formatter.
type Entry struct {
	Level     Level
	Message   string
	Fields    []Field
	Timestamp time.Time
}

// Logger is the core logging interface for pubsub components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// With returns a child logger that carries the given fields on every entry.
	With(fields ...Field) Logger

	// SetLevel sets the minimum log level. It affects all loggers derived
	// from the same root.
	SetLevel(level Level)
	// GetLevel returns the current minimum log level.
	GetLevel() Level
}

// Formatter renders an Entry to bytes, including the trailing newline.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output receives formatted entries.
type Output interface {
	Write(entry *Entry, formatted []byte) error
	Close() error
}

// Option configures a logger built by NewLogger.
type Option func(*core)

// core is the shared sink behind a logger tree. Child loggers created via
// With share the core, so SetLevel on any of them applies to all.
type core struct {
	mu        sync.Mutex
	level     Level
	formatter Formatter
	outputs   []Output
}

type logger struct {
	core   *core
	fields []Field
}

// NewLogger creates a logger. Defaults: InfoLevel, TextFormatter, console
// output.
func NewLogger(options ...Option) Logger {
	c := &core{level: InfoLevel}
	for _, opt := range options {
		opt(c)
	}
	if c.formatter == nil {
		c.formatter = &TextFormatter{}
	}
	if len(c.outputs) == 0 {
		c.outputs = append(c.outputs, NewConsoleOutput())
	}
	return &logger{core: c}
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) Option {
	return func(c *core) { c.level = level }
}

// WithFormatter sets the entry formatter.
func WithFormatter(f Formatter) Option {
	return func(c *core) { c.formatter = f }
}

// WithOutput adds an output.
func WithOutput(o Output) Option {
	return func(c *core) { c.outputs = append(c.outputs, o) }
}

func (l *logger) log(level Level, msg string, fields []Field) {
	c := l.core
	c.mu.Lock()
	if level < c.level {
		c.mu.Unlock()
		return
	}
	entry := &Entry{
		Level:     level,
		Message:   msg,
		Timestamp: time.Now(),
	}
	if n := len(l.fields) + len(fields); n > 0 {
		entry.Fields = make([]Field, 0, n)
		entry.Fields = append(entry.Fields, l.fields...)
		entry.Fields = append(entry.Fields, fields...)
	}
	formatted, err := c.formatter.Format(entry)
	if err == nil {
		for _, out := range c.outputs {
			_ = out.Write(entry, formatted)
		}
	}
	c.mu.Unlock()
	if level == FatalLevel {
		os.Exit(1)
	}
}

func (l *logger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *logger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *logger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *logger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }
func (l *logger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, fields) }

func (l *logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &logger{core: l.core, fields: merged}
}

func (l *logger) SetLevel(level Level) {
	l.core.mu.Lock()
	l.core.level = level
	l.core.mu.Unlock()
}

func (l *logger) GetLevel() Level {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	return l.core.level
}

// Config declares logger settings loadable from flags or env.
type Config struct {
	// Level is one of debug|info|warn|error|fatal. Empty means info.
	Level string
	// Format is text or json. Empty means text.
	Format string
}

// ApplyConfig builds a Logger from a declarative Config.
func ApplyConfig(cfg *Config) (Logger, error) {
	level := InfoLevel
	if cfg != nil && cfg.Level != "" {
		parsed, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	var f Formatter = &TextFormatter{}
	if cfg != nil {
		switch strings.ToLower(cfg.Format) {
		case "", "text":
		case "json":
			f = &JSONFormatter{}
		default:
			return nil, errors.New("log: unknown format " + cfg.Format)
		}
	}
	return NewLogger(WithLevel(level), WithFormatter(f), WithOutput(NewConsoleOutput())), nil
}
