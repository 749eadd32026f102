package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// JSONLogger writes one JSON object per message through zerolog.
type JSONLogger struct {
	zl zerolog.Logger
}

var _ Logger = (*JSONLogger)(nil)

// NewJSONLogger creates a JSON logger writing to w (stderr when nil)
func NewJSONLogger(w io.Writer, level Level) *JSONLogger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()
	return &JSONLogger{zl: zl}
}

func zerologLevel(level Level) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case NoticeLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *JSONLogger) With(key, value string) Logger {
	return &JSONLogger{zl: l.zl.With().Str(key, value).Logger()}
}

func (l *JSONLogger) Info(format string, args ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *JSONLogger) Error(format string, args ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *JSONLogger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

// Notice maps to zerolog's warn level and is tagged so it can be told apart.
func (l *JSONLogger) Notice(format string, args ...interface{}) {
	l.zl.Warn().Str("severity", "notice").Msg(fmt.Sprintf(format, args...))
}

// New builds the logger selected by format ("text" or "json")
func New(format string, coloring bool, level Level) (Logger, error) {
	switch format {
	case "", "text":
		return NewStdLogger(coloring, level), nil
	case "json":
		return NewJSONLogger(os.Stderr, level), nil
	}
	return nil, fmt.Errorf("unknown log format: %s", format)
}
