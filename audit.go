package goGuard

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types.
const (
	AuditSessionAnnounced  = "session_announced"
	AuditSessionGranted    = "session_granted"
	AuditSessionDenied     = "session_denied"
	AuditSessionExpired    = "session_expired"
	AuditSessionSuperseded = "session_superseded"
	AuditOutcomeRejected   = "outcome_rejected"
	AuditGrantsCleared     = "grants_cleared"
)

// AuditEvent records one security-relevant engine action.
type AuditEvent struct {
	// Journal numbers events in the order the engine recorded them. A gap means the
	// events in between were dropped.
	Journal   uint64            `json:"journal"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	App       string            `json:"app,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Seq       uint64            `json:"seq,omitempty"`
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the audit trail goroutine, one at a time.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
