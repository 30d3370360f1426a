package utils

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the in-process counters, gauges and timers of a conversion run.
// Counter names follow "jobs.<state>", "strategy.<name>.failures" and timer names "convert.<category>".
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]*int64
	gauges   map[string]float64
	timers   map[string]*Timer
}

// Timer accumulates durations of one kind of conversion.
type Timer struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]*int64),
		gauges:   make(map[string]float64),
		timers:   make(map[string]*Timer),
	}
}

func (m *Metrics) counter(name string) *int64 {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c
	}
	c = new(int64)
	m.counters[name] = c
	return c
}

// Inc increments a counter by 1.
func (m *Metrics) Inc(name string) {
	atomic.AddInt64(m.counter(name), 1)
}

// GetCounter returns the current value of a counter, 0 if it was never incremented.
func (m *Metrics) GetCounter(name string) int64 {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(c)
}

// SetGauge sets a gauge value.
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	m.gauges[name] = value
	m.mu.Unlock()
}

// GetGauge returns the current value of a gauge.
func (m *Metrics) GetGauge(name string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[name]
}

// Timer returns a timer by name, creating it if necessary.
func (m *Metrics) Timer(name string) *Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[name]; ok {
		return t
	}
	t := &Timer{}
	m.timers[name] = t
	return t
}

// Record adds one duration.
func (t *Timer) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count++
	t.total += d
	if t.count == 1 || d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
}

// TimerStats summarizes a timer in milliseconds.
type TimerStats struct {
	Count   int64   `json:"count"`
	TotalMS float64 `json:"total_ms"`
	MinMS   float64 `json:"min_ms"`
	MaxMS   float64 `json:"max_ms"`
	AvgMS   float64 `json:"avg_ms"`
}

// Stats returns the timer's current statistics.
func (t *Timer) Stats() TimerStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := TimerStats{
		Count:   t.count,
		TotalMS: millis(t.total),
		MinMS:   millis(t.min),
		MaxMS:   millis(t.max),
	}
	if t.count > 0 {
		s.AvgMS = millis(t.total / time.Duration(t.count))
	}
	return s
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Snapshot is a point-in-time copy of every metric, shaped for JSON output.
type Snapshot struct {
	Counters map[string]int64      `json:"counters"`
	Gauges   map[string]float64    `json:"gauges,omitempty"`
	Timers   map[string]TimerStats `json:"timers,omitempty"`
}

// Snapshot copies the current values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		Counters: make(map[string]int64, len(m.counters)),
		Gauges:   make(map[string]float64, len(m.gauges)),
		Timers:   make(map[string]TimerStats, len(m.timers)),
	}
	for name, c := range m.counters {
		s.Counters[name] = atomic.LoadInt64(c)
	}
	for name, g := range m.gauges {
		s.Gauges[name] = g
	}
	for name, t := range m.timers {
		s.Timers[name] = t.Stats()
	}
	return s
}

// LogAttrs flattens the snapshot into sorted slog attributes: one per counter and gauge,
// and "<timer>.count" plus "<timer>.avg_ms" per timer.
func (s Snapshot) LogAttrs() []any {
	attrs := make([]slog.Attr, 0, len(s.Counters)+len(s.Gauges)+2*len(s.Timers))
	for name, v := range s.Counters {
		attrs = append(attrs, slog.Int64(name, v))
	}
	for name, v := range s.Gauges {
		attrs = append(attrs, slog.Float64(name, v))
	}
	for name, t := range s.Timers {
		attrs = append(attrs, slog.Int64(name+".count", t.Count), slog.Float64(name+".avg_ms", t.AvgMS))
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })

	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
