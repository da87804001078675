// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"loud", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNamedLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	prev := GetLevel()
	defer SetLevel(prev)

	l := Named("plan")

	SetLevel(LevelWarn)
	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN]  plan: shown 2") {
		t.Errorf("expected prefixed warning, got %q", out)
	}

	buf.Reset()
	SetLevel(LevelDebug)
	l.Debugf("trace")
	Errorf("bare")
	out = buf.String()
	if !strings.Contains(out, "[DEBUG] plan: trace") {
		t.Errorf("expected debug line, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] bare") {
		t.Errorf("expected unprefixed error line, got %q", out)
	}
}
