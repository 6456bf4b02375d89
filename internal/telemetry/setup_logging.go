// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package telemetry provides utilities for setting up and configuring
// application observability, including logging, tracing, and metrics.
// This file handles structured logging. In JSON mode the output follows the
// Cloud Logging structured format and carries the OpenTelemetry trace and
// span ids; in text mode it uses a colored console handler for local runs.
package telemetry

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/lmittmann/tint"
	"go.opentelemetry.io/otel/trace"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// spanContextLogHandler wraps another handler and adds the trace context
// of the record's Go context, when there is one.
type spanContextLogHandler struct {
	slog.Handler
}

func handlerWithSpanContext(handler slog.Handler) *spanContextLogHandler {
	return &spanContextLogHandler{Handler: handler}
}

// Handle adds the Cloud Logging trace fields.
// See: https://cloud.google.com/logging/docs/structured-logging#special-payload-fields
func (t *spanContextLogHandler) Handle(ctx context.Context, record slog.Record) error {
	if s := trace.SpanContextFromContext(ctx); s.IsValid() {
		record.AddAttrs(
			slog.Any("logging.googleapis.com/trace", s.TraceID()),
			slog.Any("logging.googleapis.com/spanId", s.SpanID()),
			slog.Bool("logging.googleapis.com/trace_sampled", s.TraceFlags().IsSampled()),
		)
	}
	return t.Handler.Handle(ctx, record)
}

func (t *spanContextLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return handlerWithSpanContext(t.Handler.WithAttrs(attrs))
}

func (t *spanContextLogHandler) WithGroup(name string) slog.Handler {
	return handlerWithSpanContext(t.Handler.WithGroup(name))
}

// replacer renames the slog keys to the ones Cloud Logging expects
// ("severity", "timestamp", "message").
func replacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		a.Key = "severity"
		// https://cloud.google.com/logging/docs/reference/v2/rest/v2/LogEntry#LogSeverity
		if level, ok := a.Value.Any().(slog.Level); ok && level == slog.LevelWarn {
			a.Value = slog.StringValue("WARNING")
		}
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// ParseLevel maps a config level name to a slog.Level.
//
// Inputs:
//   - name: "debug", "info", "warn", "warning" or "error", in any case.
//
// Outputs:
//   - slog.Level: The matching level. Unknown names give slog.LevelInfo.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogHandler creates the handler for cfg writing to w.
//
// Inputs:
//   - w: The destination, stdout for the server and stderr for the CLI.
//   - cfg: The telemetry section. LogFormat "text" selects the colored tint
//     handler; anything else selects Cloud Logging JSON with trace fields.
//
// Outputs:
//   - slog.Handler: The configured handler at the level named by cfg.LogLevel.
func NewLogHandler(w io.Writer, cfg cloud.Telemetry) slog.Handler {
	level := ParseLevel(cfg.LogLevel)
	if strings.EqualFold(cfg.LogFormat, LogFormatText) {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: replacer})
	return handlerWithSpanContext(jsonHandler)
}

// SetupLogging installs the handler for cfg as the slog default and routes the
// standard `log` package through it.
//
// Inputs:
//   - cfg: The telemetry section of the application config.
//
// Outputs:
//   - *slog.Logger: The logger that was installed as the default.
func SetupLogging(cfg cloud.Telemetry) *slog.Logger {
	logger := slog.New(NewLogHandler(os.Stdout, cfg))
	slog.SetDefault(logger)
	log.SetFlags(0)
	return logger
}
