package xrbridge

import (
	"log/slog"
	"sync"

	"github.com/gogpu/xrbridge/internal/xrlog"
)

// SetLogger configures the logger for xrbridge and all its sub-packages.
// By default, xrbridge produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior). The logger
// is also handed to the driver and backend of every live HMD that accepts
// one.
//
// Log levels used by xrbridge:
//   - [slog.LevelDebug]: per-frame diagnostics (frame numbers, retired layers)
//   - [slog.LevelInfo]: lifecycle events (session start, splash shown)
//   - [slog.LevelWarn]: compositor not running, failed allocations
//   - [slog.LevelError]: broken invariants in release builds
//
// Example:
//
//	xrbridge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	xrlog.Set(l)
	l = xrlog.Logger()

	sinksMu.Lock()
	defer sinksMu.Unlock()
	for s := range sinks {
		s.SetLogger(l)
	}
}

// Logger returns the current logger used by xrbridge.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return xrlog.Logger()
}

// loggerSetter is implemented by drivers and backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

var (
	sinksMu sync.Mutex
	sinks   = map[loggerSetter]struct{}{}
)

// attachLogger registers the values that accept a logger and hands them the
// current one. It returns a function that unregisters them.
func attachLogger(values ...any) func() {
	var attached []loggerSetter
	sinksMu.Lock()
	for _, v := range values {
		if s, ok := v.(loggerSetter); ok {
			s.SetLogger(xrlog.Logger())
			sinks[s] = struct{}{}
			attached = append(attached, s)
		}
	}
	sinksMu.Unlock()
	return func() {
		sinksMu.Lock()
		defer sinksMu.Unlock()
		for _, s := range attached {
			delete(sinks, s)
		}
	}
}
