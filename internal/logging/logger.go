// Package logging wraps log/slog with the structured fields every pipeline
// stage attaches: tenant_id, trace_id, event_source_id.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Config controls logger construction.
type Config struct {
	JSONFormat bool   // JSON in production, text in debug
	Level      slog.Level
	AddSource  bool
	Output     io.Writer // defaults to os.Stdout
}

var (
	global     *slog.Logger
	globalOnce sync.Once
)

// New builds a *slog.Logger per Config.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.New(handler)
}

// Init sets the process-wide default logger exactly once.
func Init(cfg Config) *slog.Logger {
	globalOnce.Do(func() {
		global = New(cfg)
		slog.SetDefault(global)
	})
	return global
}

// Default returns the process-wide logger, initializing a sane fallback if
// Init was never called.
func Default() *slog.Logger {
	if global == nil {
		return Init(Config{Level: slog.LevelInfo, JSONFormat: true})
	}
	return global
}

// Envelope carries the fields every log line in the pipeline should have.
type Envelope struct {
	TenantID      string
	TraceID       string
	EventSourceID string
}

// With returns a logger pre-populated with the envelope's identifying fields.
func With(l *slog.Logger, e Envelope) *slog.Logger {
	attrs := make([]any, 0, 6)
	if e.TenantID != "" {
		attrs = append(attrs, "tenant_id", e.TenantID)
	}
	if e.TraceID != "" {
		attrs = append(attrs, "trace_id", e.TraceID)
	}
	if e.EventSourceID != "" {
		attrs = append(attrs, "event_source_id", e.EventSourceID)
	}
	return l.With(attrs...)
}

// Component returns a logger tagged with a component name, the convention
// used across every service in this repo (component=uid-allocator, etc.).
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With("component", name)
}
