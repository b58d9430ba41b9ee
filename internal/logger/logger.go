// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured, severity-leveled logging used
// throughout bfswalk, built on log/slog the way gcsfuse's internal/logger
// is: a custom handler that renames/reformats the standard time, level and
// message attributes, with file output rotated by lumberjack.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels below slog's built-in four; TRACE sits one notch under
// DEBUG and OFF sits above ERROR so that no record at any real severity
// is ever enabled.
const (
	LevelTrace = slog.Level(-8)
	LevelOff   = slog.Level(12)
)

type handlerFactory struct {
	format string // "json" or "text"
}

var defaultLoggerFactory = &handlerFactory{format: "text"}

var programLevel = new(slog.LevelVar)

var defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stdout, programLevel, ""))

// createJsonOrTextHandler builds the handler for the given writer, level,
// and message prefix, formatted per the factory's configured format.
func (f *handlerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr(f.format, prefix),
	}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// replaceAttr renames the level attribute to "severity" (spelled out, not
// slog's numeric default), renames the message attribute to "message" and
// prefixes it, and -- for JSON -- turns the timestamp into a {seconds, nanos}
// pair instead of an RFC3339 string.
func replaceAttr(format, prefix string) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.MessageKey:
			return slog.String("message", prefix+a.Value.String())
		case slog.LevelKey:
			return slog.String("severity", severityName(a.Value.Any().(slog.Level)))
		case slog.TimeKey:
			t := a.Value.Time()
			if format == "json" {
				return slog.Attr{
					Key: "timestamp",
					Value: slog.GroupValue(
						slog.Int64("seconds", t.Unix()),
						slog.Int64("nanos", int64(t.Nanosecond())),
					),
				}
			}
			return slog.String(a.Key, t.Format("01/02/2006 15:04:05.000000"))
		}
		return a
	}
}

func severityName(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

func severityLevel(s string) slog.Level {
	switch s {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return LevelOff
	}
}

func setLoggingLevel(severity string, lv *slog.LevelVar) {
	lv.Set(severityLevel(severity))
}

// Options configures Init; Format is "text" or "json", FilePath empty means
// stdout, and the LogRotate* fields mirror gopkg.in/natefinch/lumberjack.v2's
// own knobs.
type Options struct {
	Severity             string
	Format               string
	FilePath             string
	LogRotateMaxSizeMB   int
	LogRotateBackupCount int
	LogRotateCompress    bool
}

// Init reconfigures the package-level logger per opts. It is not
// concurrency-safe against concurrent log calls, matching gcsfuse's own
// single-call-at-startup usage.
func Init(opts Options) {
	defaultLoggerFactory.format = opts.Format

	var w io.Writer = os.Stdout
	if opts.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.LogRotateMaxSizeMB,
			MaxBackups: opts.LogRotateBackupCount,
			Compress:   opts.LogRotateCompress,
		}
	}

	setLoggingLevel(opts.Severity, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
}

func logf(level slog.Level, format string, v ...any) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...any)   { logf(LevelTrace, format, v...) }
func Debugf(format string, v ...any)   { logf(slog.LevelDebug, format, v...) }
func Infof(format string, v ...any)    { logf(slog.LevelInfo, format, v...) }
func Warningf(format string, v ...any) { logf(slog.LevelWarn, format, v...) }
func Errorf(format string, v ...any)   { logf(slog.LevelError, format, v...) }

// WalkLogger adapts the package-level functions to internal/walk.Logger.
type WalkLogger struct{}

func (WalkLogger) Debugf(format string, args ...any)   { Debugf(format, args...) }
func (WalkLogger) Warningf(format string, args ...any) { Warningf(format, args...) }
