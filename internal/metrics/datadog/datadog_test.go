package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"runtime"
	"sync"
	"testing"
	"time"

	"sheetintake/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// recordingSubmitter captures payloads submitted by Backend.Flush.
type recordingSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (r *recordingSubmitter) SubmitMetrics(_ context.Context, body datadogV2.MetricPayload, _ ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, r.err
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *recordingSubmitter) last() (datadogV2.MetricPayload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return r.payloads[len(r.payloads)-1], true
}

// quietBackend builds a Backend whose ticker never fires during a test.
func quietBackend(t *testing.T, rs *recordingSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:   "intake-test",
		submitter: rs,
		now:       func() time.Time { return time.Unix(1700000000, 0) },
		newTicker: func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func seriesNamed(p datadogV2.MetricPayload, metric, tag string) (datadogV2.MetricSeries, bool) {
	for _, s := range p.Series {
		if s.Metric == metric && (tag == "" || contains(s.Tags, tag)) {
			return s, true
		}
	}
	return datadogV2.MetricSeries{}, false
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// TestResolveEnvTag checks ENV over DD_ENV precedence and the unknown default.
func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		ddEnv string
		want  string
	}{
		{"env wins", "prod", "staging", "env:prod"},
		{"dd env fallback", "", "staging", "env:staging"},
		{"whitespace ignored", "  ", " ", "env:unknown"},
		{"unset", "", "", "env:unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			t.Setenv("DD_ENV", tt.ddEnv)
			if got := resolveEnvTag(); got != tt.want {
				t.Fatalf("resolveEnvTag() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapInitErr(t *testing.T) {
	t.Parallel()

	if wrapInitErr(nil) != nil {
		t.Fatalf("wrapInitErr(nil) should be nil")
	}
	base := errors.New("boom")
	err := wrapInitErr(base)
	if !errors.Is(err, base) || err.Error() != "datadog metrics init: boom" {
		t.Fatalf("wrapInitErr() = %v", err)
	}
}

// TestNewBackend_Defaults verifies the job default, interval default and the
// nil-context guard.
func TestNewBackend_Defaults(t *testing.T) {
	rs := &recordingSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		Tags:      []string{"service:intake"},
		submitter: rs,
		newTicker: func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:sheetintake") || !contains(b.baseTags, "service:intake") {
		t.Fatalf("baseTags = %v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery = %s, want 60s", b.flushEvery)
	}

	//nolint:staticcheck // nil context is the case under test
	if _, err := NewBackend(nil, Options{submitter: rs}); err == nil {
		t.Fatalf("NewBackend(nil) err = nil, want error")
	}
}

// TestFlush_SubmitsAndResets records one observation per metric and checks
// the Datadog names and tags in the payload.
func TestFlush_SubmitsAndResets(t *testing.T) {
	rs := &recordingSubmitter{}
	b := quietBackend(t, rs)

	b.IncCounter(metrics.SheetsTotal, 2, metrics.Labels{"status": "planned"})
	b.IncCounter(metrics.ColumnsTotal, 5, metrics.Labels{"type": "numeric"})
	b.IncCounter(metrics.RowsLoadedTotal, 500, metrics.Labels{"backend": "sqlite"})
	b.IncCounter(metrics.HTTPRequestsTotal, 1, metrics.Labels{"status": "201"})
	b.ObserveHistogram(metrics.InferenceDuration, 0.25, metrics.Labels{"stage": "plan"})
	b.ObserveHistogram(metrics.QualityScore, 84, nil)
	b.ObserveHistogram(metrics.HTTPRequestDurationSecs, 0.1, metrics.Labels{"status": "201"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if rs.count() != 1 {
		t.Fatalf("submit calls = %d, want 1", rs.count())
	}
	if len(b.counts) != 0 || len(b.samples) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	p, _ := rs.last()
	checks := []struct {
		metric string
		tag    string
	}{
		{"sheetintake.sheets.total", "status:planned"},
		{"sheetintake.columns.total", "type:numeric"},
		{"sheetintake.rows_loaded.total", "backend:sqlite"},
		{"sheetintake.http.requests.total", "status:201"},
		{"sheetintake.inference.duration_seconds.p50", "stage:plan"},
		{"sheetintake.quality_score.max", "job:intake-test"},
		{"sheetintake.http.request_duration_seconds.samples", "status:201"},
	}
	for _, c := range checks {
		if _, ok := seriesNamed(p, c.metric, c.tag); !ok {
			t.Fatalf("payload missing %s{%s}", c.metric, c.tag)
		}
	}

	s, _ := seriesNamed(p, "sheetintake.rows_loaded.total", "")
	if s.Type == nil || *s.Type != datadogV2.METRICINTAKETYPE_COUNT {
		t.Fatalf("rows_loaded type = %v, want COUNT", s.Type)
	}
	if *s.Points[0].Value != 500 || *s.Points[0].Timestamp != 1700000000 {
		t.Fatalf("rows_loaded point = %v@%v", *s.Points[0].Value, *s.Points[0].Timestamp)
	}
}

// TestFlush_SubmitErrorStillResets keeps at-most-once delivery: a failed
// submit drops the batch.
func TestFlush_SubmitErrorStillResets(t *testing.T) {
	rs := &recordingSubmitter{err: errors.New("403")}
	b := quietBackend(t, rs)

	b.IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "planned"})
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush() err = nil, want error")
	}
	rs.err = nil
	if err := b.Flush(); err != nil || rs.count() != 1 {
		t.Fatalf("second Flush() err=%v calls=%d, want nil and 1", err, rs.count())
	}
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	rs := &recordingSubmitter{}
	b := quietBackend(t, rs)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if rs.count() != 0 {
		t.Fatalf("submit calls = %d, want 0", rs.count())
	}
}

// TestIgnoredObservations covers unknown names, non-positive deltas, negative
// samples and the unknown label fallback.
func TestIgnoredObservations(t *testing.T) {
	rs := &recordingSubmitter{}
	b := quietBackend(t, rs)

	b.IncCounter(metrics.SheetsTotal, 0, metrics.Labels{"status": "planned"})
	b.IncCounter("not_a_metric", 1, nil)
	b.ObserveHistogram(metrics.QualityScore, -1, nil)
	b.ObserveHistogram("not_a_metric", 1, nil)
	if err := b.Flush(); err != nil || rs.count() != 0 {
		t.Fatalf("expected nothing submitted, got calls=%d err=%v", rs.count(), err)
	}

	b.IncCounter(metrics.HTTPRequestsTotal, 1, metrics.Labels{})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	p, _ := rs.last()
	if _, ok := seriesNamed(p, "sheetintake.http.requests.total", "status:unknown"); !ok {
		t.Fatalf("missing status:unknown series: %+v", p.Series)
	}
}

// TestBuildSeries_SortedAndStable checks ordering by metric then tags.
func TestBuildSeries_SortedAndStable(t *testing.T) {
	t.Parallel()

	b := &Backend{baseTags: []string{"env:test"}}
	snap := snapshot{
		counts: map[seriesKey]float64{
			{metric: metrics.SheetsTotal, value: "skipped"}: 1,
			{metric: metrics.SheetsTotal, value: "planned"}: 3,
			{metric: metrics.ColumnsTotal, value: "text"}:   4,
		},
		samples: map[seriesKey][]float64{},
	}
	got := b.buildSeries(snap, 10)

	var order []string
	for _, s := range got {
		order = append(order, s.Metric+"|"+s.Tags[len(s.Tags)-1])
	}
	want := []string{
		"sheetintake.columns.total|type:text",
		"sheetintake.sheets.total|status:planned",
		"sheetintake.sheets.total|status:skipped",
	}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

// TestAddPercentiles checks the six gauges and that input samples are not
// reordered.
func TestAddPercentiles(t *testing.T) {
	t.Parallel()

	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, "x", in, []string{"stage:plan"}, 1)
	if len(series) != 6 {
		t.Fatalf("len(series) = %d, want 6", len(series))
	}
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: %v", in)
	}
	byName := map[string]float64{}
	for _, s := range series {
		byName[s.Metric] = *s.Points[0].Value
	}
	if byName["x.p50"] != 3 || byName["x.max"] != 5 || byName["x.samples"] != 5 {
		t.Fatalf("gauges = %v", byName)
	}

	series = nil
	addPercentiles(&series, "x", nil, nil, 1)
	if len(series) != 0 {
		t.Fatalf("empty samples produced %d series", len(series))
	}
}

func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	s := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want float64
	}{
		{-1, 1}, {0, 1}, {0.5, 6}, {0.9, 9}, {1, 10}, {2, 10},
	}
	for _, tt := range tests {
		if got := percentileNearestRank(s, tt.p); got != tt.want {
			t.Fatalf("percentileNearestRank(p=%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("percentileNearestRank(nil) = %v, want 0", got)
	}
}

func TestWithTags_DoesNotAlias(t *testing.T) {
	t.Parallel()

	base := make([]string, 1, 4)
	base[0] = "env:test"
	a := withTags(base, "status:a")
	b := withTags(base, "status:b")
	if a[1] != "status:a" || b[1] != "status:b" {
		t.Fatalf("withTags aliased base: a=%v b=%v", a, b)
	}
}

// TestLoopAndClose lets the real ticker flush once, then expects Close to
// flush the remainder.
func TestLoopAndClose(t *testing.T) {
	rs := &recordingSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		FlushEvery: 5 * time.Millisecond,
		submitter:  rs,
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "planned"})
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && rs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if rs.count() < 1 {
		_ = b.Close()
		t.Fatalf("no background flush observed")
	}

	b.IncCounter(metrics.SheetsTotal, 1, metrics.Labels{"status": "planned"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if rs.count() < 2 {
		t.Fatalf("submit calls = %d after Close, want >= 2", rs.count())
	}
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	rs := &recordingSubmitter{}
	b := quietBackend(t, rs)

	workers := runtime.GOMAXPROCS(0) * 4
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				b.IncCounter(metrics.ColumnsTotal, 1, metrics.Labels{"type": "text"})
				b.ObserveHistogram(metrics.InferenceDuration, 0.01, metrics.Labels{"stage": "profile"})
			}
		}()
	}
	wg.Wait()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	p, _ := rs.last()
	s, ok := seriesNamed(p, "sheetintake.columns.total", "type:text")
	if !ok || *s.Points[0].Value != float64(workers*1000) {
		t.Fatalf("columns.total = %+v, want %d", s, workers*1000)
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty_returns_nil", "", nil},
		{"trims_and_skips_empty_segments", " env:prod , ,service:intake,  ,team:data ", []string{"env:prod", "service:intake", "team:data"}},
		{"single_tag", "service:intake", []string{"service:intake"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
