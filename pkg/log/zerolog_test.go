package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"loud", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithLogger(zerolog.New(&buf))

	logger.Warn("malformed feed line",
		String("source", "feed.tsv"),
		Int("line", 3),
		Any("queues", []string{"a", "b"}),
		Err(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"source":"feed.tsv"`, `"line":3`, `"queues":["a","b"]`, `"error":"boom"`, `"message":"malformed feed line"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestNewConsoleLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewConsoleLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("NewConsoleLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Error("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("error message should be written")
	}
}
