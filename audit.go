package authflow

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// AuditEvent records one orchestrator outcome. Secrets (codes, verifiers,
// tokens, passwords) are never placed in an event.
type AuditEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	SessionKey string            `json:"session_key,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine. Emit must
// not retain ctx beyond the call.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel, blocking until the
// channel has room or ctx ends. Tests and in-process consumers read Events.
type ChannelSink struct {
	ch chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan AuditEvent, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.ch <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent { return s.ch }

// JSONWriterSink writes one JSON object per line. Encoding failures drop the
// event.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}

// SlogSink writes each event as one "audit" record at Info level, or Warn
// when the event reports a failure. Metadata keys are emitted in sorted order.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(ctx context.Context, event AuditEvent) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	attrs := make([]slog.Attr, 0, 5+len(event.Metadata))
	attrs = append(attrs, slog.String("event", event.EventType), slog.Bool("success", event.Success))
	if event.SessionKey != "" {
		attrs = append(attrs, slog.String("session_key", event.SessionKey))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.Error != "" {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Error))
	}

	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, event.Metadata[k]))
	}

	logger.LogAttrs(ctx, level, "audit", attrs...)
}
