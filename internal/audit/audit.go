// Package audit records legal-compliance decisions. Sinks are append-only:
// nothing in this package updates or deletes an entry once written.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventLegalAllowed  = "legal_enforcement_allowed"
	EventLegalBlocked  = "legal_enforcement_blocked"
	EventLegalRecorded = "legal_acceptance_recorded"
)

type Entry struct {
	ID          string            `json:"id"`
	Event       string            `json:"event"`
	Environment string            `json:"environment"`
	Reason      string            `json:"reason,omitempty"`
	Actor       string            `json:"actor,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	At          time.Time         `json:"at"`
}

type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Stamp fills the id and timestamp when the caller left them empty.
func Stamp(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}

type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Append(ctx context.Context, e Entry) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	attrs := []any{
		"audit_id", e.ID,
		"event", e.Event,
		"environment", e.Environment,
		"at", e.At.UTC().Format(time.RFC3339Nano),
	}
	if e.Reason != "" {
		attrs = append(attrs, "reason", e.Reason)
	}
	if e.Actor != "" {
		attrs = append(attrs, "actor", e.Actor)
	}
	for k, v := range e.Metadata {
		attrs = append(attrs, "meta_"+k, v)
	}
	level := slog.LevelInfo
	if e.Event == EventLegalBlocked {
		level = slog.LevelWarn
	}
	l.Log(ctx, level, "audit", attrs...)
	return nil
}

type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *MemorySink) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a copy in append order.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Multi appends to every sink and joins their errors.
type Multi []Sink

func (m Multi) Append(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
