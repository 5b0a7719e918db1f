package modules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/san-kum/flowsim/internal/modules"

// TimerEntry is the cumulative wall time of one module.
type TimerEntry struct {
	Module string
	Calls  int
	Total  time.Duration
}

// Timer accumulates wall time per module and opens a span around every
// timed call.
type Timer struct {
	mu      sync.Mutex
	entries map[string]*TimerEntry
	order   []string
	tracer  trace.Tracer
}

// NewTimer uses the global tracer provider when tracer is nil.
func NewTimer(tracer trace.Tracer) *Timer {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Timer{entries: make(map[string]*TimerEntry), tracer: tracer}
}

// Time runs fn inside a span named module.method and records its duration.
func (t *Timer) Time(ctx context.Context, module, method string, fn func(ctx context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, module+"."+method,
		trace.WithAttributes(
			attribute.String("flowsim.module", module),
			attribute.String("flowsim.method", method),
		))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	t.record(module, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t *Timer) record(module string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[module]
	if !ok {
		e = &TimerEntry{Module: module}
		t.entries[module] = e
		t.order = append(t.order, module)
	}
	e.Calls++
	e.Total += d
}

// Total returns the cumulative time spent in module.
func (t *Timer) Total(module string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[module]; ok {
		return e.Total
	}
	return 0
}

// Entries returns a snapshot in first-call order.
func (t *Timer) Entries() []TimerEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TimerEntry, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.entries[name])
	}
	return out
}

func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*TimerEntry)
	t.order = nil
}

// String renders the entries sorted by total time, slowest first.
func (t *Timer) String() string {
	entries := t.Entries()
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Total > entries[j].Total })

	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %8s %14s\n", "module", "calls", "total")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-24s %8d %14s\n", e.Module, e.Calls, e.Total.Round(time.Microsecond))
	}
	return b.String()
}
