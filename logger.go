package hybridmem

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with allocator-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithArena adds an arena name field to the logger.
func (l *Logger) WithArena(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("arena", name),
	}
}

// LogAlloc logs a tracked allocation at debug level.
func (l *Logger) LogAlloc(ctx context.Context, size int, label string, site string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "allocation failed",
			"size", size,
			"label", label,
			"site", site,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "allocation tracked",
			"size", size,
			"label", label,
			"site", site,
		)
	}
}

// LogCollect logs a completed collection pass.
func (l *Logger) LogCollect(ctx context.Context, objects int, bytes uint64, duration time.Duration) {
	l.InfoContext(ctx, "collection completed",
		"freed_objects", objects,
		"freed_bytes", bytes,
		"duration", duration,
	)
}

// LogArenaExhausted logs a fallback from an arena to the heap path.
func (l *Logger) LogArenaExhausted(ctx context.Context, arena string, size int, remaining uint64) {
	l.WarnContext(ctx, "arena exhausted, falling back to heap",
		"arena", arena,
		"size", size,
		"remaining", remaining,
	)
}

// LogUntrackedFree logs a free or retain of memory the registry does not track.
func (l *Logger) LogUntrackedFree(ctx context.Context, op string, addr uintptr) {
	l.DebugContext(ctx, "untracked pointer ignored",
		"op", op,
		"addr", addr,
	)
}

// LogLeaks logs objects that survived shutdown.
func (l *Logger) LogLeaks(ctx context.Context, objects int, bytes uint64, report string) {
	if objects == 0 {
		l.InfoContext(ctx, "shutdown completed without leaks")
		return
	}
	l.WarnContext(ctx, "objects leaked at shutdown",
		"objects", objects,
		"bytes", bytes,
		"report", report,
	)
}

// LogArenaDestroyed logs the release of an arena block.
func (l *Logger) LogArenaDestroyed(ctx context.Context, arena string, capacity int, highWater uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "arena destroy failed",
			"arena", arena,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "arena destroyed",
			"arena", arena,
			"capacity", capacity,
			"high_water", highWater,
		)
	}
}

// LogDestructorPanic logs a destructor that panicked.
func (l *Logger) LogDestructorPanic(ctx context.Context, label string, recovered any) {
	l.ErrorContext(ctx, "destructor panicked",
		"label", label,
		"panic", recovered,
	)
}

// LogSnapshotExport logs the result of a snapshot export.
func (l *Logger) LogSnapshotExport(ctx context.Context, name string, stores int, bytes int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot export failed",
			"snapshot", name,
			"stores", stores,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "snapshot exported",
		"snapshot", name,
		"stores", stores,
		"bytes", bytes,
		"duration", duration,
	)
}
