// Package trace times correction cycles so sampler latency shows up in the
// logs next to the decision it delayed.
package trace

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type ctxKey struct{}

// Span represents a timed operation.
type Span struct {
	Name      string
	ID        string
	ParentID  string
	StartTime time.Time
	EndTime   time.Time
	Attrs     map[string]any
}

// StartSpan begins a span, nested under any span already in ctx.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{
		Name:      name,
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	if parent, ok := FromContext(ctx); ok {
		s.ParentID = parent.ID
	}
	return context.WithValue(ctx, ctxKey{}, s), s
}

// FromContext returns the innermost span in ctx.
func FromContext(ctx context.Context) (*Span, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Span)
	return s, ok
}

// End marks the span as complete.
func (s *Span) End() {
	s.EndTime = time.Now()
}

// SetAttr sets a span attribute.
func (s *Span) SetAttr(key string, val any) {
	s.Attrs[key] = val
}

// Duration returns span duration, zero until End.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// LogValue implements slog.LogValuer for structured logging.
func (s *Span) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("name", s.Name),
		slog.String("id", s.ID),
		slog.Duration("duration", s.Duration()),
	}
	if s.ParentID != "" {
		attrs = append(attrs, slog.String("parent_id", s.ParentID))
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.GroupValue(attrs...)
}
