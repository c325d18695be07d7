// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Metrics are buffered in memory and submitted on a ticker (once a minute by
// default) plus one final time on Close. Short commands such as a single
// `busser schema` run therefore submit exactly once, at exit, while a long
// `busser output` over a large file also produces points while it runs.
//
// Concurrency model:
//   - scan and output code can call IncCounter/ObserveHistogram at any time
//   - Flush swaps the buffers under a mutex, then submits out-of-lock
//   - the flush loop calls Flush periodically; Close stops the loop
package datadog

import (
	"cmp"
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bowmanjd/busser/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Datadog metric names.
const (
	stepTotal    = "busser.step.total"
	stepDuration = "busser.step.duration_seconds"
	rowsTotal    = "busser.rows.total"
	cellsTotal   = "busser.cells.total"
	pagesTotal   = "busser.pages.total"
)

// durationGauges are submitted for every step duration series, as
// <metric><suffix>. A quantile of 1 is the maximum.
var durationGauges = []struct {
	suffix string
	q      float64
}{
	{".p50", 0.50},
	{".p90", 0.90},
	{".p95", 0.95},
	{".p99", 0.99},
	{".max", 1},
}

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "busser".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"team:data"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets them.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// seriesKey names one buffered series: a Datadog metric and up to two tags.
// Empty tags are omitted.
type seriesKey struct {
	metric string
	tags   [2]string
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api      metricsSubmitter
	ctx      context.Context
	baseTags []string

	flushEvery time.Duration
	now        func() time.Time
	newTicker  func(d time.Duration) *time.Ticker
	stopCh     chan struct{}
	doneCh     chan struct{}

	mu        sync.Mutex
	counts    map[seriesKey]float64
	durations map[seriesKey][]float64
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend constructs a Datadog backend using the official client.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "busser".
//   - The env tag comes from ENV, then DD_ENV, otherwise env:unknown.
//
// Errors:
//   - Fails when DD_API_KEY is not set, since every submission would be
//     rejected. Network errors surface later, from Flush.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	api := opts.submitter
	if api == nil {
		if strings.TrimSpace(os.Getenv("DD_API_KEY")) == "" {
			return nil, errors.New("datadog metrics: DD_API_KEY is not set")
		}
		api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        api,
		ctx:        dd.NewDefaultContext(parent),
		baseTags:   slices.Concat([]string{envTag(), "job:" + cmp.Or(opts.JobName, "busser")}, opts.Tags),
		flushEvery: opts.FlushEvery,
		now:        opts.now,
		newTicker:  opts.newTicker,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		counts:     make(map[seriesKey]float64),
		durations:  make(map[seriesKey][]float64),
	}
	if b.flushEvery <= 0 {
		b.flushEvery = time.Minute
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newTicker == nil {
		b.newTicker = time.NewTicker
	}

	go b.loop()
	return b, nil
}

func envTag() string {
	for _, name := range []string{"ENV", "DD_ENV"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return "env:" + v
		}
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush.
// It must be called once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// counterKey maps a facade counter to its series. Rows without a kind are
// dropped; pages without a format are tagged format:unknown.
func counterKey(name string, l metrics.Labels) (seriesKey, bool) {
	switch name {
	case metrics.StepTotal:
		return stepKey(stepTotal, l), true
	case metrics.RowsTotal:
		if l["kind"] == "" {
			return seriesKey{}, false
		}
		return seriesKey{metric: rowsTotal, tags: [2]string{"kind:" + l["kind"]}}, true
	case metrics.CellsTotal:
		return seriesKey{metric: cellsTotal}, true
	case metrics.PagesTotal:
		return seriesKey{metric: pagesTotal, tags: [2]string{"format:" + cmp.Or(l["format"], "unknown")}}, true
	}
	return seriesKey{}, false
}

func stepKey(metric string, l metrics.Labels) seriesKey {
	return seriesKey{metric: metric, tags: [2]string{"step:" + l["step"], "status:" + l["status"]}}
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	key, ok := counterKey(name, labels)
	if !ok || delta <= 0 {
		return
	}
	b.mu.Lock()
	b.counts[key] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.StepDurationSeconds {
		return
	}
	key := stepKey(stepDuration, labels)
	b.mu.Lock()
	b.durations[key] = append(b.durations[key], value)
	b.mu.Unlock()
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Buffers are reset even when submission fails; a failed window is lost.
// Returns nil without submitting when nothing was recorded.
func (b *Backend) Flush() error {
	b.mu.Lock()
	counts, durations := b.counts, b.durations
	b.counts = make(map[seriesKey]float64)
	b.durations = make(map[seriesKey][]float64)
	b.mu.Unlock()

	if len(counts) == 0 && len(durations) == 0 {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.series(counts, durations, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// series converts one flush window into Datadog series stamped at ts.
func (b *Backend) series(counts map[seriesKey]float64, durations map[seriesKey][]float64, ts int64) []datadogV2.MetricSeries {
	out := make([]datadogV2.MetricSeries, 0, len(counts)+(len(durationGauges)+1)*len(durations))
	for key, v := range counts {
		out = append(out, point(key.metric, datadogV2.METRICINTAKETYPE_COUNT, v, b.tags(key), ts))
	}
	for key, samples := range durations {
		out = append(out, b.durationSeries(key, samples, ts)...)
	}
	return out
}

// durationSeries summarizes the samples of one step as gauges. samples is
// not modified.
func (b *Backend) durationSeries(key seriesKey, samples []float64, ts int64) []datadogV2.MetricSeries {
	if len(samples) == 0 {
		return nil
	}
	sorted := slices.Sorted(slices.Values(samples))
	tags := b.tags(key)

	out := make([]datadogV2.MetricSeries, 0, len(durationGauges)+1)
	for _, g := range durationGauges {
		out = append(out, point(key.metric+g.suffix, datadogV2.METRICINTAKETYPE_GAUGE, quantile(sorted, g.q), tags, ts))
	}
	return append(out, point(key.metric+".samples", datadogV2.METRICINTAKETYPE_GAUGE, float64(len(sorted)), tags, ts))
}

// quantile returns the nearest-rank q-quantile of sorted, which must not be
// empty.
func quantile(sorted []float64, q float64) float64 {
	i := int(math.Round(q * float64(len(sorted)-1)))
	return sorted[min(max(i, 0), len(sorted)-1)]
}

// tags returns a fresh slice: the base tags followed by the key's tags.
func (b *Backend) tags(key seriesKey) []string {
	out := slices.Clone(b.baseTags)
	for _, t := range key.tags {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func point(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, ts int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(ts), Value: dd.PtrFloat64(value)}},
		Tags:   tags,
	}
}

// ParseTagsCSV parses comma-separated tags like "team:data,host:etl1".
// Blank entries are skipped.
func ParseTagsCSV(s string) []string {
	var out []string
	for t := range strings.SplitSeq(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
