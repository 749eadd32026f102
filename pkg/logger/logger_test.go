package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"notice", NoticeLevel, false},
		{" error ", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStdLoggerFieldPrefix(t *testing.T) {
	l := NewStdLogger(false, InfoLevel)
	scoped := l.With("correlation_id", "abc").With("direction", "buy").(*StdLogger)

	msg := scoped.formatMessage(InfoLevel, "hello")
	assert.Equal(t, "[INFO]   [correlation_id=abc] [direction=buy] hello", msg)

	// parent is untouched
	assert.Equal(t, "[ERROR]  hello", l.formatMessage(ErrorLevel, "hello"))
}

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, DebugLevel).With("correlation_id", "abc")

	l.Info("quoted %d tiers", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "abc", entry["correlation_id"])
	assert.Equal(t, "quoted 3 tiers", entry["message"])
}

func TestJSONLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, ErrorLevel)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("xml", false, InfoLevel)
	assert.Error(t, err)
}
