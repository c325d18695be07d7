package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bowmanjd/busser/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// quietOptions returns options whose ticker never fires during a test.
func quietOptions(fs *fakeSubmitter) Options {
	return Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	}
}

func TestEnvTag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			if got := envTag(); got != tc.want {
				t.Fatalf("envTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewBackend_RequiresAPIKey(t *testing.T) {
	t.Setenv("DD_API_KEY", "")

	_, err := NewBackend(context.Background(), Options{})
	if err == nil || err.Error() != "datadog metrics: DD_API_KEY is not set" {
		t.Fatalf("NewBackend() err=%v, want DD_API_KEY error", err)
	}
}

func TestCounterKey(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		labels metrics.Labels
		want   seriesKey
		ok     bool
	}{
		{name: "step", metric: metrics.StepTotal, labels: metrics.Labels{"step": "survey", "status": "ok"}, want: seriesKey{stepTotal, [2]string{"step:survey", "status:ok"}}, ok: true},
		{name: "rows", metric: metrics.RowsTotal, labels: metrics.Labels{"kind": "written"}, want: seriesKey{rowsTotal, [2]string{"kind:written"}}, ok: true},
		{name: "rows_without_kind", metric: metrics.RowsTotal, labels: nil, ok: false},
		{name: "cells", metric: metrics.CellsTotal, want: seriesKey{metric: cellsTotal}, ok: true},
		{name: "page_without_format", metric: metrics.PagesTotal, want: seriesKey{pagesTotal, [2]string{"format:unknown"}}, ok: true},
		{name: "unknown", metric: "unknown_total", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := counterKey(tc.metric, tc.labels)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("counterKey()=(%+v,%v), want (%+v,%v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestBackendTags(t *testing.T) {
	b := &Backend{baseTags: []string{"env:test", "job:busser"}}
	got := b.tags(seriesKey{metric: rowsTotal, tags: [2]string{"kind:scanned"}})
	want := []string{"env:test", "job:busser", "kind:scanned"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tags()=%v, want %v", got, want)
	}
	got[0] = "env:mutated"
	if b.baseTags[0] == "env:mutated" {
		t.Fatalf("tags output aliases base slice")
	}
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		q    float64
		want float64
	}{
		{name: "single", s: []float64{7}, q: 0.95, want: 7},
		{name: "min", s: []float64{1, 2, 3}, q: 0, want: 1},
		{name: "max", s: []float64{1, 2, 3}, q: 1, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, q: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, q: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := quantile(tc.s, tc.q); got != tc.want {
				t.Fatalf("quantile(%v,%v)=%v, want %v", tc.s, tc.q, got, tc.want)
			}
		})
	}
}

func TestDurationSeries(t *testing.T) {
	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	b := &Backend{baseTags: []string{"env:test"}}
	key := stepKey(stepDuration, metrics.Labels{"step": "survey", "status": "ok"})
	series := b.durationSeries(key, in, 999)

	if len(series) != 6 {
		t.Fatalf("series.len=%d, want 6", len(series))
	}
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: got %v, want %v", in, orig)
	}
	for _, s := range series {
		if !contains(s.Tags, "step:survey") || !contains(s.Tags, "status:ok") {
			t.Fatalf("series %q missing step/status tags: %v", s.Metric, s.Tags)
		}
		switch s.Metric {
		case "busser.step.duration_seconds.samples", "busser.step.duration_seconds.max":
			if *s.Points[0].Value != 5 {
				t.Fatalf("%s value=%v, want 5", s.Metric, *s.Points[0].Value)
			}
		}
	}
	if got := b.durationSeries(key, nil, 999); got != nil {
		t.Fatalf("no samples should produce no series: %v", got)
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	opts := quietOptions(fs)
	opts.JobName = ""
	opts.FlushEvery = 0
	opts.Tags = []string{"team:data"}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v, want nil", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:busser") || !contains(b.baseTags, "team:data") {
		t.Fatalf("baseTags=%v, want job:busser and team:data", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

// The metrics facade and the backend agree on names: everything recorded
// through the Record* helpers reaches the payload.
func TestFlush_FacadeMetrics(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	metrics.SetBackend(b)
	t.Cleanup(func() { metrics.SetBackend(nil) })

	metrics.RecordStep("survey", nil, 500*time.Millisecond)
	metrics.RecordStep("output", errors.New("disk full"), time.Second)
	metrics.RecordRows("scanned", 10)
	metrics.RecordRows("written", 4)
	metrics.RecordCells(160)
	metrics.RecordPage("bcp")

	if err := metrics.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if len(b.counts) != 0 || len(b.durations) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, _ := fs.last()
	var names []string
	for _, s := range payload.Series {
		names = append(names, s.Metric)
		if s.Metric == "busser.step.total" && contains(s.Tags, "step:output") && !contains(s.Tags, "status:error") {
			t.Fatalf("output step should be tagged status:error: %v", s.Tags)
		}
	}
	sort.Strings(names)

	for _, w := range []string{
		"busser.cells.total",
		"busser.pages.total",
		"busser.rows.total",
		"busser.step.duration_seconds.p50",
		"busser.step.duration_seconds.samples",
		"busser.step.total",
	} {
		if !contains(names, w) {
			t.Fatalf("payload missing metric %q; got=%v", w, names)
		}
	}
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d, want 0", fs.count())
	}
}

func TestFlush_ReturnsSubmitError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("403")}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.CellsTotal, 1, nil)
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush() err=nil, want submit error")
	}
	if len(b.counts) != 0 {
		t.Fatalf("failed window should still be reset")
	}
}

func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	opts := Options{
		JobName:    "job1",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.CellsTotal, 1, nil)

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && fs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	b.IncCounter(metrics.CellsTotal, 1, nil)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	workers := runtime.GOMAXPROCS(0) * 4
	iters := 2000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				b.IncCounter(metrics.CellsTotal, 1, nil)
				b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "survey", "status": "ok"})
				b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "scanned"})
				b.ObserveHistogram(metrics.StepDurationSeconds, 0.01, metrics.Labels{"step": "survey", "status": "ok"})
			}
		}()
	}
	wg.Wait()

	want := float64(workers * iters)
	b.mu.Lock()
	cells := b.counts[seriesKey{metric: cellsTotal}]
	b.mu.Unlock()
	if cells != want {
		t.Fatalf("cells=%v, want %v", cells, want)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
}

func TestIncCounterAndObserveHistogram_EdgeCases(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.CellsTotal, 0, nil)                            // non-positive
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{})                // missing kind
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})          // unknown
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{}) // negative
	b.ObserveHistogram("unknown_seconds", 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("ignored observations were submitted")
	}

	b.IncCounter(metrics.PagesTotal, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	payload, _ := fs.last()
	if len(payload.Series) != 1 || !contains(payload.Series[0].Tags, "format:unknown") {
		t.Fatalf("page without format should be tagged format:unknown: %+v", payload.Series)
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty_returns_nil", in: "", want: nil},
		{name: "trims_and_skips_empty_segments", in: " env:prod , ,service:busser,  ,team:data ", want: []string{"env:prod", "service:busser", "team:data"}},
		{name: "single_tag", in: "service:busser", want: []string{"service:busser"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
