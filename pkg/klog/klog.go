// Package klog builds the structured loggers used by the kernel and its
// tools.
package klog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel converts a level name such as "DEBUG" or "warn" into a
// slog.Level. Unknown names yield LevelInfo and an error.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q, using INFO", name)
	}
}

// New returns a text logger writing to w at the named level. An unknown
// level falls back to INFO and is reported through the new logger.
func New(w io.Writer, level string) *slog.Logger {
	lvl, err := ParseLevel(level)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	if err != nil {
		logger.Warn(err.Error())
	}
	return logger
}

// Open returns a logger writing to stderr and, if path is not empty, also
// appending to the file at path. The returned close func releases the file.
//
// Example:
//
//	logger, closeLog, err := klog.Open("./sched.log", "DEBUG")
//	if err != nil {
//		// Handle error
//	}
//	defer closeLog()
func Open(path, level string) (*slog.Logger, func() error, error) {
	if path == "" {
		return New(os.Stderr, level), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(io.MultiWriter(os.Stderr, f), level), f.Close, nil
}
