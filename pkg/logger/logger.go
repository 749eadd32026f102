package logger

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// ParseLevel converts a level name into a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "notice":
		return NoticeLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level: %s", s)
}

// String returns the lowercase level name
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case NoticeLevel:
		return "notice"
	case ErrorLevel:
		return "error"
	}
	return "unknown"
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})

	// With returns a logger that tags every message with key=value.
	With(key, value string) Logger
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{}) {}
func (l *EmptyLogger) With(_, _ string) Logger           { return l }

type field struct {
	key   string
	value string
}

var fieldColors = map[string]color.Attribute{
	"correlation_id": color.FgHiBlue,
	"direction":      color.FgMagenta,
}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	fields         []field
	mu             *sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
		mu:             &sync.Mutex{},
	}
}

// With returns a copy of the logger carrying an additional field. The copy
// shares the output lock with its parent.
func (l *StdLogger) With(key, value string) Logger {
	fields := make([]field, 0, len(l.fields)+1)
	fields = append(fields, l.fields...)
	fields = append(fields, field{key: key, value: value})
	return &StdLogger{
		enableColoring: l.enableColoring,
		level:          l.level,
		fields:         fields,
		mu:             l.mu,
	}
}

// formatMessage formats the log message with the appropriate log level, field prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, format string) string {
	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	var prefix strings.Builder
	for _, f := range l.fields {
		tag := "[" + f.key + "=" + f.value + "] "
		if l.enableColoring {
			attr, ok := fieldColors[f.key]
			if !ok {
				attr = color.FgWhite
			}
			tag = color.New(attr).Sprint(tag)
		}
		prefix.WriteString(tag)
	}

	return levelStr + prefix.String() + format
}

func (l *StdLogger) logf(level Level, format string, args ...interface{}) {
	if l.level > level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	log.Printf(l.formatMessage(level, format), args...)
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logf(InfoLevel, format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logf(ErrorLevel, format, args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logf(DebugLevel, format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.logf(NoticeLevel, format, args...)
}
