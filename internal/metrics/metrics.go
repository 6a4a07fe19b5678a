// Package metrics provides the atomic operation counters wired into the
// frontend queue.
package metrics

import "sync/atomic"

// Metrics holds a queue's running operation counters. The zero value is
// ready to use.
type Metrics struct {
	enqueueOps uint64
	dequeueOps uint64
	fullCount  uint64
	emptyCount uint64
	errorCount uint64
}

// New creates a fresh, empty Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordEnqueue() { atomic.AddUint64(&m.enqueueOps, 1) }
func (m *Metrics) RecordDequeue() { atomic.AddUint64(&m.dequeueOps, 1) }
func (m *Metrics) RecordFull()    { atomic.AddUint64(&m.fullCount, 1) }
func (m *Metrics) RecordEmpty()   { atomic.AddUint64(&m.emptyCount, 1) }
func (m *Metrics) RecordError()   { atomic.AddUint64(&m.errorCount, 1) }

// Snapshot is a point-in-time, non-atomic copy of a Metrics instance's
// counters, suitable for logging or inspection in tests.
type Snapshot struct {
	EnqueueOps uint64
	DequeueOps uint64
	FullCount  uint64
	EmptyCount uint64
	ErrorCount uint64
}

// Snapshot reads every counter into a plain struct.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		EnqueueOps: atomic.LoadUint64(&m.enqueueOps),
		DequeueOps: atomic.LoadUint64(&m.dequeueOps),
		FullCount:  atomic.LoadUint64(&m.fullCount),
		EmptyCount: atomic.LoadUint64(&m.emptyCount),
		ErrorCount: atomic.LoadUint64(&m.errorCount),
	}
}
