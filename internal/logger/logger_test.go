package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := (Logger{Level: tt.in}).level(); got != tt.want {
			t.Errorf("level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{Format: "json"}.New(&buf)
	l.Info().Str("k", "v").Msg("Hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%s)", err, buf.String())
	}
	if rec["message"] != "Hello" || rec["k"] != "v" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{Format: "text"}.New(&buf)
	l.Info().Msg("Hello")

	if !strings.Contains(buf.String(), "Hello") {
		t.Errorf("text output missing message: %q", buf.String())
	}
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("text output looks like json: %q", buf.String())
	}
}
