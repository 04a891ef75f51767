// Package datadog implements a Datadog backend for pkg/metrics.
//
// Typing work happens in bursts (a table is built, columns are cast,
// a materialization runs), so the backend buffers observations
// in-memory and submits them as Datadog series:
//
//   - IncCounter/ObserveHistogram append to lock-protected buffers
//   - a background loop calls Flush() on a ticker (default: 60s)
//   - Close() stops the loop and performs one final Flush()
//
// Long-running services get a time series while they run; short-lived
// jobs get a single tail flush at shutdown. Flush snapshots and resets
// the buffers under the mutex, then submits out of lock, so callers
// are never blocked on the network.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"tabular/pkg/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "tabular".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "service:ingest"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these; unit
	// tests set them to avoid real network submission and
	// nondeterministic clocks/tickers.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal interface needed to submit metrics.
//
// The Datadog SDK exposes a concrete *datadogV2.MetricsApi, which
// cannot be stubbed without real HTTP. Backend depends on this
// interface instead, so tests can swap in a fake.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	// now is injected for deterministic tests. Production uses time.Now.
	now func() time.Time

	// newTicker is injected for deterministic tests. Production uses time.NewTicker.
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	tableCounts    map[string]float64 // backend kind -> count
	inferredCounts map[string]float64 // logical type -> count
	fallbackCounts map[string]float64 // logical type -> count
	castCounts     map[string]float64 // castKey(status, dtype) -> count

	materializeDur  map[string][]float64 // backend kind -> seconds
	materializeRows []float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
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

// Close stops the background flush loop and performs one final Flush().
//
// Errors:
//   - Returns any error from the final Flush() submission.
//   - Close must be called at most once; a second call panics on the
//     already-closed stop channel. This mirrors typical Go "Close
//     once" semantics and is acceptable for process-lifetime backends.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// NewBackend constructs a Datadog backend using the official client.
//
// When to use:
//   - Configure this backend to get Datadog metrics for table
//     construction, inference, casts, and materializations.
//   - Suitable for services (periodic flush) and short-lived jobs
//     (final flush on Close).
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "tabular".
//   - Environment tag selection uses ENV then DD_ENV, otherwise
//     env:unknown.
//
// Errors:
//   - Datadog client construction is not expected to fail under
//     normal conditions; network errors surface from Flush().
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "tabular"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	envTag := resolveEnvTag()
	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, envTag, "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	// Clock / ticker seams.
	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	// Submitter seam.
	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		tableCounts:    make(map[string]float64),
		inferredCounts: make(map[string]float64),
		fallbackCounts: make(map[string]float64),
		castCounts:     make(map[string]float64),

		materializeDur: make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.MetricTablesTotal:
		kind := labels["backend"]
		if kind == "" {
			kind = "unknown"
		}
		b.tableCounts[kind] += delta

	case metrics.MetricInferredTotal:
		lt := labels["logical_type"]
		if lt == "" {
			return
		}
		b.inferredCounts[lt] += delta

	case metrics.MetricFallbacksTotal:
		lt := labels["logical_type"]
		if lt == "" {
			return
		}
		b.fallbackCounts[lt] += delta

	case metrics.MetricCastsTotal:
		status := labels["status"]
		if status == "" {
			status = "unknown"
		}
		b.castCounts[castKey(status, labels["dtype"])] += delta

	default:
		// Unknown names are dropped.
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.MetricMaterializeSeconds:
		kind := labels["backend"]
		if kind == "" {
			kind = "unknown"
		}
		b.materializeDur[kind] = append(b.materializeDur[kind], value)

	case metrics.MetricMaterializeRows:
		b.materializeRows = append(b.materializeRows, value)

	default:
		// Unknown names are dropped.
	}
}

// snapshot is the buffered metric state used to build one flush payload.
//
// Flush() must reset buffers under the lock but submit out of lock;
// snapshot separates collect+reset from payload building+submission.
type snapshot struct {
	tableCounts    map[string]float64
	inferredCounts map[string]float64
	fallbackCounts map[string]float64
	castCounts     map[string]float64

	materializeDur  map[string][]float64
	materializeRows []float64
}

// snapshotAndReset grabs current buffered metrics and resets internal
// buffers. Takes the lock internally and returns detached maps/slices.
func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		tableCounts:    b.tableCounts,
		inferredCounts: b.inferredCounts,
		fallbackCounts: b.fallbackCounts,
		castCounts:     b.castCounts,

		materializeDur:  b.materializeDur,
		materializeRows: b.materializeRows,
	}

	// Reset buffers for the next collection window.
	b.tableCounts = make(map[string]float64)
	b.inferredCounts = make(map[string]float64)
	b.fallbackCounts = make(map[string]float64)
	b.castCounts = make(map[string]float64)

	b.materializeDur = make(map[string][]float64)
	b.materializeRows = nil

	return s
}

// isEmpty returns true if the snapshot contains no data to submit.
func (s snapshot) isEmpty() bool {
	return len(s.tableCounts) == 0 &&
		len(s.inferredCounts) == 0 &&
		len(s.fallbackCounts) == 0 &&
		len(s.castCounts) == 0 &&
		len(s.materializeDur) == 0 &&
		len(s.materializeRows) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Errors:
//   - Returns any error from Datadog submission.
//   - Returns nil if there is nothing to submit.
//
// Edge cases:
//   - Flush is safe to call concurrently with IncCounter/ObserveHistogram.
//   - Flush resets buffers even if submission fails, so a slow or
//     broken intake never blocks future writes. Failed windows are
//     lost.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	nowUnix := b.now().Unix()

	series := b.buildSeries(snap, nowUnix)
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs Datadog series for a snapshot at a fixed
// timestamp. It is pure (no locks, no network, no clocks) and
// centralizes naming/tagging, which is an operational contract.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	addCount := func(metric string, value float64, tags []string) datadogV2.MetricSeries {
		return datadogV2.MetricSeries{
			Metric: metric,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: []datadogV2.MetricPoint{
				{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
			},
			Tags: tags,
		}
	}

	series := make([]datadogV2.MetricSeries, 0, len(s.tableCounts)+len(s.castCounts)+64)

	// Table counters.
	for kind, v := range s.tableCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "backend:"+kind)
		series = append(series, addCount("tabular.tables.total", v, tags))
	}

	// Inference and fallback counters.
	for lt, v := range s.inferredCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "logical_type:"+lt)
		series = append(series, addCount("tabular.inferred.total", v, tags))
	}
	for lt, v := range s.fallbackCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "logical_type:"+lt)
		series = append(series, addCount("tabular.fallbacks.total", v, tags))
	}

	// Cast counters.
	for k, v := range s.castCounts {
		if v == 0 {
			continue
		}
		status, kind := splitCastKey(k)
		tags := withTags(b.baseTags, "status:"+status, "dtype:"+kind)
		series = append(series, addCount("tabular.casts.total", v, tags))
	}

	// Materialization percentiles.
	for kind, samples := range s.materializeDur {
		tags := withTags(b.baseTags, "backend:"+kind)
		addPercentiles(&series, tags, "tabular.materialize.duration_seconds", samples, nowUnix)
	}
	addPercentiles(&series, b.baseTags, "tabular.materialize.rows", s.materializeRows, nowUnix)

	return series
}

// addPercentiles appends a fixed set of percentile gauges for a sample
// set.
//
// Edge cases:
//   - If samples is empty, it does nothing.
//   - It sorts a copy of samples (does not mutate input).
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, metricPrefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func castKey(status, dtype string) string {
	return status + "\x00" + dtype
}

func splitCastKey(k string) (status, dtype string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:ingest".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
