// Package tracing times nested operations through contexts. A finished span
// tree is written to slog at debug level or summarised per child name, which
// is how query stage timings and build phase timings are produced.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

type Span struct {
	name    string
	traceID string
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	children []*Span
	attrs    []slog.Attr
}

// NewTraceID returns a random trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// StartSpan starts a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	s := &Span{name: name, traceID: traceID, start: time.Now()}
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan starts a span under the one in ctx. Without a parent the
// child is a detached root with no trace id.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{name: name, start: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		child.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, child), child
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End fixes the span's duration. Later calls keep the first value.
func (s *Span) End() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.start)
		s.ended = true
	}
	return s.duration
}

func (s *Span) Name() string    { return s.name }
func (s *Span) TraceID() string { return s.traceID }

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// ChildDurations sums the durations of direct children by name.
func (s *Span) ChildDurations() map[string]time.Duration {
	s.mu.Lock()
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()
	out := make(map[string]time.Duration, len(children))
	for _, c := range children {
		out[c.name] += c.Duration()
	}
	return out
}

// Log writes one debug record per span, depth-first.
func (s *Span) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s.log(logger, 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := append([]slog.Attr{
		slog.String("trace_id", s.traceID),
		slog.String("span", s.name),
		slog.Int64("duration_us", s.duration.Microseconds()),
		slog.Int("depth", depth),
	}, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.LogAttrs(context.Background(), slog.LevelDebug, "span", attrs...)
	for _, c := range children {
		c.log(logger, depth+1)
	}
}
