// SPDX-License-Identifier: MIT
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// slogLevel maps a LogLevel onto the slog scale. Fatal sits above Error.
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelError + 4
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var (
	// currentLevel holds the global log level; it is read on every call.
	currentLevel atomic.Uint32

	// handlerLevel is shared by every handler created through SetOutput so
	// level changes apply without rebuilding loggers.
	handlerLevel = new(slog.LevelVar)

	// base is the root slog logger. Swapped atomically by SetOutput.
	base atomic.Pointer[slog.Logger]

	// exit is replaced in tests so Fatal paths can be observed.
	exit = os.Exit
)

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: handlerLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl > slog.LevelError {
					return slog.String(slog.LevelKey, LevelFatal.String())
				}
			}
			return a
		},
	})
	base.Store(slog.New(h))
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
	handlerLevel.Set(level.slogLevel())
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// Logger is a component-scoped logger. Every record it emits carries a
// component attribute so interleaved output from the capture loop, the
// transports and the UI can be told apart.
type Logger struct {
	component string
}

// For returns a Logger tagged with the given component name.
func For(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) emit(level LogLevel, msg string) {
	if !shouldLog(level) {
		return
	}
	lg := base.Load()
	if l != nil && l.component != "" {
		lg = lg.With("component", l.component)
	}
	lg.Log(context.Background(), level.slogLevel(), msg)
}

// logf skips formatting entirely when the level is filtered out.
func (l *Logger) logf(level LogLevel, format string, v []any) {
	if shouldLog(level) {
		l.emit(level, fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v) }
func (l *Logger) Infof(format string, v ...any)  { l.logf(LevelInfo, format, v) }
func (l *Logger) Warnf(format string, v ...any)  { l.logf(LevelWarn, format, v) }
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v) }

// Fatalf logs regardless of level and exits the process.
func (l *Logger) Fatalf(format string, v ...any) {
	base.Load().Log(context.Background(), LevelFatal.slogLevel(), fmt.Sprintf(format, v...))
	exit(1)
}

// std is the untagged logger behind the package-level functions.
var std = &Logger{}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { std.Debugf(format, v...) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { std.Infof(format, v...) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { std.Warnf(format, v...) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { std.Errorf(format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) { std.Fatalf(format, v...) }

// --- Functions without formatting (convenience) ---

func Debug(v ...any) { std.emit(LevelDebug, fmt.Sprint(v...)) }
func Info(v ...any)  { std.emit(LevelInfo, fmt.Sprint(v...)) }
func Warn(v ...any)  { std.emit(LevelWarn, fmt.Sprint(v...)) }
func Error(v ...any) { std.emit(LevelError, fmt.Sprint(v...)) }
