// Package rtpslog provides the PDP core's logging surface: a thin wrapper
// over log/slog, grounded on _examples/dep2p-go-dep2p/pkg/lib/log. The
// teacher's go.mod still lists go.uber.org/zap, but its own
// scripts/migrate-logger shows the codebase already migrated every call
// site in internal/core onto slog; we follow that live practice rather
// than the unused dependency.
package rtpslog

import (
	"context"
	"log/slog"
	"os"
)

var defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetDefault replaces the logger every component logs through, including
// loggers already handed out by Named.
func SetDefault(l *slog.Logger) {
	defaultLogger = l
}

// Logger is a component-scoped logger that always reads the current
// default handler, so SetDefault takes effect for loggers already handed
// out, matching the teacher's LazyLogger.
type Logger struct {
	component string
}

// Named returns a logger tagged with component, the way the teacher's
// log.Logger("core/peerstore") scopes its messages.
func Named(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) with() *slog.Logger {
	return defaultLogger.With("component", l.component)
}

func (l *Logger) Debug(msg string, args ...any) { l.with().Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.with().Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.with().Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.with().Error(msg, args...) }

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.with().DebugContext(ctx, msg, args...)
}
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.with().InfoContext(ctx, msg, args...)
}
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.with().WarnContext(ctx, msg, args...)
}
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.with().ErrorContext(ctx, msg, args...)
}
