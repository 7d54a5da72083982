// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package logger provides a process-wide structured logger backed by
// log/slog. It exposes the printf-style and key/value-style helpers the
// rest of this module calls directly, without threading a *slog.Logger
// through every function signature.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newDefault(os.Stderr))
}

func newDefault(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if unstructuredLogs() {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// unstructuredLogs reports whether DEBUG level verbosity is requested via
// the MPD_DEBUG environment variable.
func unstructuredLogs() bool {
	v := os.Getenv("MPD_DEBUG")
	return v == "1" || v == "true"
}

// SetLogger replaces the process-wide logger. Intended for tests and for
// cmd/mpd to install a differently-configured handler at startup.
func SetLogger(l *slog.Logger) {
	singleton.Store(l)
}

func get() *slog.Logger {
	return singleton.Load()
}

// Debug logs at debug level.
func Debug(msg string) { get().Debug(msg) }

// Debugf logs at debug level with printf-style formatting.
func Debugf(format string, args ...any) { get().Debug(fmt.Sprintf(format, args...)) }

// Debugw logs at debug level with structured key/value pairs.
func Debugw(msg string, kv ...any) { get().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string) { get().Info(msg) }

// Infof logs at info level with printf-style formatting.
func Infof(format string, args ...any) { get().Info(fmt.Sprintf(format, args...)) }

// Infow logs at info level with structured key/value pairs.
func Infow(msg string, kv ...any) { get().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string) { get().Warn(msg) }

// Warnf logs at warn level with printf-style formatting.
func Warnf(format string, args ...any) { get().Warn(fmt.Sprintf(format, args...)) }

// Warnw logs at warn level with structured key/value pairs.
func Warnw(msg string, kv ...any) { get().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string) { get().Error(msg) }

// Errorf logs at error level with printf-style formatting.
func Errorf(format string, args ...any) { get().Error(fmt.Sprintf(format, args...)) }

// Errorw logs at error level with structured key/value pairs.
func Errorw(msg string, kv ...any) { get().Error(msg, kv...) }
