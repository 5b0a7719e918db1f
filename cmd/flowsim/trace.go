package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanStats aggregates ended spans by name.
type spanStats struct {
	mu     sync.Mutex
	counts map[string]int
	totals map[string]time.Duration
}

func newTracerProvider() (*sdktrace.TracerProvider, *spanStats) {
	stats := &spanStats{counts: make(map[string]int), totals: make(map[string]time.Duration)}
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(stats)), stats
}

func (s *spanStats) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (s *spanStats) OnEnd(span sdktrace.ReadOnlySpan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[span.Name()]++
	s.totals[span.Name()] += span.EndTime().Sub(span.StartTime())
}

func (s *spanStats) Shutdown(context.Context) error   { return nil }
func (s *spanStats) ForceFlush(context.Context) error { return nil }

func (s *spanStats) Print(out io.Writer) error {
	s.mu.Lock()
	names := make([]string, 0, len(s.counts))
	for name := range s.counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return s.totals[names[i]] > s.totals[names[j]] })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPAN\tCOUNT\tTOTAL\tMEAN")
	for _, name := range names {
		n, total := s.counts[name], s.totals[name]
		fmt.Fprintf(w, "%s\t%d\t%v\t%v\n", name, n, total.Round(time.Microsecond), (total / time.Duration(n)).Round(time.Nanosecond))
	}
	s.mu.Unlock()
	return w.Flush()
}
