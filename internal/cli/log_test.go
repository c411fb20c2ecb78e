package cli

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level log.Level
		emit  func(*log.Logger)
		want  bool
	}{
		{log.InfoLevel, func(l *log.Logger) { l.Info("loaded backbone") }, true},
		{log.InfoLevel, func(l *log.Logger) { l.Debug("tick") }, false},
		{log.DebugLevel, func(l *log.Logger) { l.Debug("tick") }, true},
		{log.WarnLevel, func(l *log.Logger) { l.Info("loaded backbone") }, false},
		{log.WarnLevel, func(l *log.Logger) { l.Warn("portrait unavailable") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			tt.emit(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("wrote = %v, want %v (%q)", got, tt.want, buf.String())
			}
		})
	}
}

func TestLoggerTimestamp(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, log.InfoLevel).Info("ready")
	if !regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{2} `).MatchString(buf.String()) {
		t.Errorf("line %q does not start with a HH:MM:SS.ms timestamp", buf.String())
	}
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	newProgress(newLogger(&buf, log.InfoLevel)).done("traced lineage", "nodes", 3)

	out := buf.String()
	for _, want := range []string{"traced lineage", "nodes=3", "elapsed="} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("empty context should yield the default logger")
	}

	var buf bytes.Buffer
	custom := newLogger(&buf, log.InfoLevel)
	ctx := withLogger(context.Background(), custom)
	if loggerFromContext(ctx) != custom {
		t.Fatal("attached logger not returned")
	}
	loggerFromContext(ctx).Info("via context")
	if !strings.Contains(buf.String(), "via context") {
		t.Error("attached logger did not write")
	}
}
