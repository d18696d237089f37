// Package diag provides debug sinks that receive intermediate surfaces of the
// registration pipeline. Sinks never influence results.
package diag

import (
	"context"
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-montage/registration/surface"
)

// Sink receives intermediate surfaces for inspection.
// Implementations must not modify s.
type Sink interface {
	EmitDiagnosticSurface(s *surface.Surface, label string)
}

// Nop discards everything.
type Nop struct{}

// EmitDiagnosticSurface implements Sink.
func (Nop) EmitDiagnosticSurface(*surface.Surface, string) {}

// Recorder keeps deep copies of every emitted surface in memory.
type Recorder struct {
	mu      sync.Mutex
	labels  []string
	records map[string]*surface.Surface
}

// EmitDiagnosticSurface implements Sink.
func (r *Recorder) EmitDiagnosticSurface(s *surface.Surface, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.records == nil {
		r.records = make(map[string]*surface.Surface)
	}
	if _, ok := r.records[label]; !ok {
		r.labels = append(r.labels, label)
	}
	r.records[label] = s.Clone()
}

// Labels returns the labels in first-emission order.
func (r *Recorder) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.labels...)
}

// Surface returns the last surface emitted under label, or nil.
func (r *Recorder) Surface(label string) *surface.Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[label]
}

// LogSink writes summary statistics of each surface to a logger.
type LogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

// EmitDiagnosticSurface implements Sink.
func (l LogSink) EmitDiagnosticSurface(s *surface.Surface, label string) {
	logger := l.Logger
	if logger == nil || s == nil || len(s.Data) == 0 {
		return
	}
	if !logger.Enabled(context.Background(), l.Level) {
		return
	}

	argmax := floats.MaxIdx(s.Data)
	logger.Log(context.Background(), l.Level, "diagnostic surface",
		slog.String("label", label),
		slog.Any("size", s.Size),
		slog.Float64("min", floats.Min(s.Data)),
		slog.Float64("max", s.Data[argmax]),
		slog.Any("argmax", s.IndexOf(argmax, nil)),
		slog.Float64("sum", floats.Sum(s.Data)),
	)
}
