// Package profiler - Stage timings, custom metrics and runtime statistics with
// periodic reports.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler tracks operation timings and custom metrics and logs a
// report every ReportInterval while running.
//
// All methods are safe for concurrent use and on a nil receiver, so callers
// can leave profiling disabled by passing nil.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int
	logger         *zap.SugaredLogger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats    runtime.MemStats
	lastGCCount uint32

	customMetrics  map[string]*MetricTracker
	collectors     []MetricsCollector
	operationTimes map[string]*TimeTracker
}

// MetricTracker tracks a sliding window of values for a custom metric.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

func (t *MetricTracker) observe(value float64, maxSamples int) {
	if t.count == 0 || value < t.min {
		t.min = value
	}
	if t.count == 0 || value > t.max {
		t.max = value
	}
	t.values = append(t.values, value)
	t.sum += value
	if len(t.values) > maxSamples {
		t.sum -= t.values[0]
		t.values = t.values[1:]
	}
	t.count++
}

// TimeTracker tracks a sliding window of durations for an operation.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

func (t *TimeTracker) observe(d time.Duration, maxSamples int) {
	if t.count == 0 || d < t.minTime {
		t.minTime = d
	}
	if t.count == 0 || d > t.maxTime {
		t.maxTime = d
	}
	t.durations = append(t.durations, d)
	t.totalTime += d
	if len(t.durations) > maxSamples {
		t.totalTime -= t.durations[0]
		t.durations = t.durations[1:]
	}
	t.count++
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 10s)
	ReportInterval time.Duration
	// SampleInterval specifies how often collectors are polled (default: 1s)
	SampleInterval time.Duration
	// MaxSamples specifies the window kept per metric (default: 600)
	MaxSamples int
	// Logger receives the reports (default: no-op)
	Logger *zap.SugaredLogger
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
//   - opts: Configuration options for the profiler.
//
// Returns:
//   - *RuntimeProfiler: A stopped profiler; call Start to begin reporting.
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger,
		startTime:      time.Now(),
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins sampling collectors and emitting periodic reports. Calling
// Start on a running profiler does nothing.
func (rp *RuntimeProfiler) Start() {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.startTime = time.Now()
	rp.ctx, rp.cancel = context.WithCancel(context.Background())

	rp.wg.Add(2)
	go rp.loop(rp.sampleInterval, rp.sample)
	go rp.loop(rp.reportInterval, rp.emitStatusReport)
}

// Stop stops the background goroutines and waits for them to exit.
func (rp *RuntimeProfiler) Stop() {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	cancel := rp.cancel
	rp.mu.Unlock()

	cancel()
	rp.wg.Wait()
}

func (rp *RuntimeProfiler) loop(interval time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// AddMetricsCollector registers a collector polled every SampleInterval.
//
// Arguments:
//   - collector: An implementation of MetricsCollector.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	if rp == nil || collector == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
//
// Arguments:
//   - name: The name of the metric.
//   - value: The metric value to record.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.recordMetricLocked(name, value)
}

func (rp *RuntimeProfiler) recordMetricLocked(name string, value float64) {
	tracker, ok := rp.customMetrics[name]
	if !ok {
		tracker = &MetricTracker{}
		rp.customMetrics[name] = tracker
	}
	tracker.observe(value, rp.maxSamples)
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func(): Call when the operation completes.
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	if rp == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		rp.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records one completed operation.
func (rp *RuntimeProfiler) RecordDuration(name string, d time.Duration) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, ok := rp.operationTimes[name]
	if !ok {
		tracker = &TimeTracker{}
		rp.operationTimes[name] = tracker
	}
	tracker.observe(d, rp.maxSamples)
}

// sample polls every registered collector.
func (rp *RuntimeProfiler) sample() {
	rp.mu.RLock()
	collectors := append([]MetricsCollector(nil), rp.collectors...)
	rp.mu.RUnlock()

	values := make([]map[string]float64, 0, len(collectors))
	for _, c := range collectors {
		values = append(values, c.CollectMetrics())
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	for _, m := range values {
		for name, v := range m {
			rp.recordMetricLocked(name, v)
		}
	}
}

// MetricStats summarizes a custom metric window.
type MetricStats struct {
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Last    float64 `json:"last"`
	Samples int     `json:"samples"`
}

// OperationStats summarizes an operation timing window.
type OperationStats struct {
	Avg   time.Duration `json:"avg_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
	Count int64         `json:"count"`
}

// Snapshot is a point-in-time copy of the profiler state.
type Snapshot struct {
	Uptime      time.Duration             `json:"uptime_ns"`
	Goroutines  int                       `json:"goroutines"`
	CgoCalls    int64                     `json:"cgo_calls"`
	HeapAlloc   uint64                    `json:"heap_alloc"`
	HeapObjects uint64                    `json:"heap_objects"`
	NumGC       uint32                    `json:"num_gc"`
	Metrics     map[string]MetricStats    `json:"metrics"`
	Operations  map[string]OperationStats `json:"operations"`
}

// Snapshot returns the current statistics.
func (rp *RuntimeProfiler) Snapshot() Snapshot {
	if rp == nil {
		return Snapshot{Metrics: map[string]MetricStats{}, Operations: map[string]OperationStats{}}
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.snapshotLocked()
}

func (rp *RuntimeProfiler) snapshotLocked() Snapshot {
	runtime.ReadMemStats(&rp.memStats)

	s := Snapshot{
		Uptime:      time.Since(rp.startTime),
		Goroutines:  runtime.NumGoroutine(),
		CgoCalls:    runtime.NumCgoCall(),
		HeapAlloc:   rp.memStats.HeapAlloc,
		HeapObjects: rp.memStats.HeapObjects,
		NumGC:       rp.memStats.NumGC,
		Metrics:     make(map[string]MetricStats, len(rp.customMetrics)),
		Operations:  make(map[string]OperationStats, len(rp.operationTimes)),
	}
	for name, t := range rp.customMetrics {
		if len(t.values) == 0 {
			continue
		}
		s.Metrics[name] = MetricStats{
			Avg:     t.sum / float64(len(t.values)),
			Min:     t.min,
			Max:     t.max,
			Last:    t.values[len(t.values)-1],
			Samples: len(t.values),
		}
	}
	for name, t := range rp.operationTimes {
		if len(t.durations) == 0 {
			continue
		}
		s.Operations[name] = OperationStats{
			Avg:   t.totalTime / time.Duration(len(t.durations)),
			Min:   t.minTime,
			Max:   t.maxTime,
			Count: t.count,
		}
	}
	return s
}

// emitStatusReport logs the current statistics.
func (rp *RuntimeProfiler) emitStatusReport() {
	rp.mu.Lock()
	s := rp.snapshotLocked()
	newGC := s.NumGC - rp.lastGCCount
	rp.lastGCCount = s.NumGC
	rp.mu.Unlock()

	rp.logger.Infow("runtime report",
		"uptime", s.Uptime.Truncate(time.Millisecond),
		"goroutines", s.Goroutines,
		"cgo_calls", s.CgoCalls,
		"heap_alloc", s.HeapAlloc,
		"heap_objects", s.HeapObjects,
		"gc_cycles", newGC,
	)

	for _, name := range sortedKeys(s.Operations) {
		op := s.Operations[name]
		rp.logger.Infow("operation timing",
			"operation", name,
			"avg", op.Avg.Truncate(time.Microsecond),
			"min", op.Min.Truncate(time.Microsecond),
			"max", op.Max.Truncate(time.Microsecond),
			"count", op.Count,
		)
	}
	for _, name := range sortedKeys(s.Metrics) {
		m := s.Metrics[name]
		rp.logger.Infow("metric", "name", name, "avg", m.Avg, "min", m.Min, "max", m.Max, "last", m.Last, "samples", m.Samples)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
