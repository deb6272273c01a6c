package xrbridge

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/xrbridge/internal/xrlog"
)

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	// Default logger must be disabled at all levels.
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("default logger should not be enabled for %v", level)
		}
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	SetLogger(custom)

	if got := Logger(); got != custom {
		t.Error("Logger() did not return the custom logger set via SetLogger")
	}
	if xrlog.Logger() != custom {
		t.Error("sub-packages do not share the logger")
	}

	Logger().Info("test message", "key", "value")
	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("expected log output to contain 'test message', got: %s", buf.String())
	}
}

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)

	l := Logger()
	if l == nil {
		t.Fatal("SetLogger(nil) should set nop logger, not nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should produce a disabled logger")
	}
}

type mockSink struct{ logger *slog.Logger }

func (m *mockSink) SetLogger(l *slog.Logger) { m.logger = l }

func TestSetLoggerPropagatesToAttached(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	sink := &mockSink{}
	detach := attachLogger(sink, "not a sink")
	if sink.logger != Logger() {
		t.Error("attachLogger did not hand over the current logger")
	}

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)
	if sink.logger != custom {
		t.Error("SetLogger did not propagate to the attached sink")
	}

	detach()
	SetLogger(nil)
	if sink.logger != custom {
		t.Error("detached sink still receives loggers")
	}
}
