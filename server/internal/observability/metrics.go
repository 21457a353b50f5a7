package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates counters for turn processing.
type Metrics struct {
	mu sync.Mutex

	// Counters
	turnTotal      atomic.Int64
	turnFailed     atomic.Int64
	chatLogDropped atomic.Int64

	// Directive-specific metrics
	directiveMetrics map[string]*DirectiveMetrics

	// Duration data, bounded FIFO
	durations    []time.Duration
	maxDurations int
}

// DirectiveMetrics represents counters for one directive workflow.
type DirectiveMetrics struct {
	dispatchCount atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	softErrors    atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		directiveMetrics: make(map[string]*DirectiveMetrics),
		durations:        make([]time.Duration, 0, maxDurations),
		maxDurations:     maxDurations,
	}
}

// Global metrics instance.
var globalMetrics = NewMetrics(1000)

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordTurn records a processed turn.
func (m *Metrics) RecordTurn() {
	m.turnTotal.Add(1)
}

// RecordTurnFailure records a hard-failed turn.
func (m *Metrics) RecordTurnFailure() {
	m.turnFailed.Add(1)
}

// RecordChatLogDropped records a swallowed chat-log append failure.
func (m *Metrics) RecordChatLogDropped() {
	m.chatLogDropped.Add(1)
}

// RecordDispatch records a directive dispatch.
func (m *Metrics) RecordDispatch(directive string) {
	m.getDirectiveMetrics(directive).dispatchCount.Add(1)
}

// RecordSoftError records a business-rule failure surfaced into the conversation.
func (m *Metrics) RecordSoftError(directive string) {
	m.getDirectiveMetrics(directive).softErrors.Add(1)
}

// RecordDuration records a turn duration.
func (m *Metrics) RecordDuration(directive string, duration time.Duration) {
	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()

	m.getDirectiveMetrics(directive).totalDuration.Add(duration.Milliseconds())
}

// Snapshot is a point-in-time view of the collected counters.
type Snapshot struct {
	TurnTotal      int64
	TurnFailed     int64
	ChatLogDropped int64
	Directives     map[string]DirectiveSnapshot
}

// DirectiveSnapshot is a point-in-time view of one directive's counters.
type DirectiveSnapshot struct {
	DispatchCount   int64
	SoftErrors      int64
	TotalDurationMs int64
}

// SnapshotNow returns the current counter values.
func (m *Metrics) SnapshotNow() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		TurnTotal:      m.turnTotal.Load(),
		TurnFailed:     m.turnFailed.Load(),
		ChatLogDropped: m.chatLogDropped.Load(),
		Directives:     make(map[string]DirectiveSnapshot, len(m.directiveMetrics)),
	}
	for name, dm := range m.directiveMetrics {
		snap.Directives[name] = DirectiveSnapshot{
			DispatchCount:   dm.dispatchCount.Load(),
			SoftErrors:      dm.softErrors.Load(),
			TotalDurationMs: dm.totalDuration.Load(),
		}
	}
	return snap
}

func (m *Metrics) getDirectiveMetrics(directive string) *DirectiveMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	dm, ok := m.directiveMetrics[directive]
	if !ok {
		dm = &DirectiveMetrics{}
		m.directiveMetrics[directive] = dm
	}
	return dm
}
