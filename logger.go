package quizd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with quizd-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithChunk adds a chunk ID field to the logger.
func (l *Logger) WithChunk(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("chunk", id),
	}
}

// WithQuery adds a query field to the logger.
func (l *Logger) WithQuery(query string) *Logger {
	return &Logger{
		Logger: l.Logger.With("query", query),
	}
}

// LogIngest logs a chunk ingest operation.
func (l *Logger) LogIngest(ctx context.Context, count, failed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"count", count,
			"error", err,
		)
		return
	}
	if failed > 0 {
		l.WarnContext(ctx, "ingest completed with embedding failures",
			"count", count,
			"lexical_only", failed,
		)
	} else {
		l.DebugContext(ctx, "ingest completed",
			"count", count,
		)
	}
}

// LogRemove logs a chunk removal.
func (l *Logger) LogRemove(ctx context.Context, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"chunk", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"chunk", id,
		)
	}
}

// LogRetrieve logs a retrieval operation.
func (l *Logger) LogRetrieve(ctx context.Context, k, resultsFound int, degraded bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "retrieval failed",
			"k", k,
			"error", err,
		)
		return
	}
	if degraded {
		l.WarnContext(ctx, "retrieval degraded",
			"k", k,
			"results", resultsFound,
		)
	} else {
		l.DebugContext(ctx, "retrieval completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogQuiz logs a quiz generation run.
func (l *Logger) LogQuiz(ctx context.Context, want, got int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "quiz generation failed",
			"want", want,
			"error", err,
		)
		return
	}
	if got < want {
		l.WarnContext(ctx, "quiz generation fell short",
			"want", want,
			"got", got,
			"elapsed", elapsed,
		)
	} else {
		l.InfoContext(ctx, "quiz generated",
			"questions", got,
			"elapsed", elapsed,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"op", op,
			"name", name,
		)
	}
}
