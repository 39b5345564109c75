// Package logging wires up the process wide slog loggers: a JSON logger
// for machine consumed output, a text logger for terminals, and rotated
// per-service file loggers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
)

var (
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
)

// LevelTrace sits below slog.LevelDebug and carries per-statement noise
// such as SQL query logging. File loggers opt into it when debug is on.
const LevelTrace = slog.Level(-8)

// renameLevel labels LevelTrace as TRACE in log output instead of the
// "DEBUG-4" slog would print for it.
func renameLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

func newStructuredHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameLevel,
	})
}

func newHumanHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameLevel,
	})
}

// Init builds the two process loggers at Info level and installs the
// structured one as the slog default. The server keeps that default;
// CLI commands switch to the human-readable logger so their stdout
// stays parseable.
func Init() {
	structuredLogger = slog.New(newStructuredHandler(os.Stdout, slog.LevelInfo))
	humanReadableLogger = slog.New(newHumanHandler(os.Stderr, slog.LevelInfo))
	slog.SetDefault(structuredLogger)
}

// SetLevel rebuilds both loggers with level as their minimum and makes
// the structured logger the default again. Callers that want the
// human-readable default install it after this.
func SetLevel(level slog.Level) {
	structuredLogger = slog.New(newStructuredHandler(os.Stdout, level))
	humanReadableLogger = slog.New(newHumanHandler(os.Stderr, level))
	slog.SetDefault(structuredLogger)
}

// SetOutput redirects both loggers, typically to buffers in tests.
// Levels reset to the Init defaults.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	structuredLogger = slog.New(newStructuredHandler(structuredOutput, slog.LevelInfo))
	humanReadableLogger = slog.New(newHumanHandler(humanReadableOutput, slog.LevelInfo))
	slog.SetDefault(structuredLogger)
}

// HumanReadable returns the text logger writing to stderr, or nil
// before Init has run.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService returns a child of the current default logger carrying a
// service attribute. The default is bound at call time, so a service
// built after the CLI switched to human-readable output logs the same
// way as the command that built it.
func ForService(serviceName string) *slog.Logger {
	return slog.Default().With("service", serviceName)
}

// NewFileLogger returns a JSON logger writing to filePath through a
// rotating writer, plus a close function for that writer. Rotation
// follows the main log settings: daily and weekly rotation bound the
// file age, size rotation bounds the file size.
func NewFileLogger(filePath, serviceName string, level slog.Level) (*slog.Logger, func() error, error) {
	// lumberjack does not create missing directories.
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory %s: %w", dir, err)
		}
	}

	logConf := conf.Setting().Main.Log

	writer := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	if sizeMB := int(logConf.MaxSize / (1024 * 1024)); sizeMB > 0 {
		writer.MaxSize = sizeMB
	}

	switch logConf.Rotation {
	case conf.RotationDaily:
		writer.MaxAge = 1
		writer.MaxBackups = 30
	case conf.RotationWeekly:
		writer.MaxAge = 7
		writer.MaxBackups = 4
	case conf.RotationSize:
		// size bound already applied
	default:
		slog.Warn("Unknown log rotation type, rotating by size",
			"rotation", logConf.Rotation)
	}

	logger := slog.New(newStructuredHandler(writer, level)).With("service", serviceName)
	return logger, writer.Close, nil
}
