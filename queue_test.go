package cleanq_test

import (
	"context"
	"testing"

	"github.com/cleanq-go/cleanq"
	"github.com/cleanq-go/cleanq/cleanqtest"
	"github.com/cleanq-go/cleanq/debugqueue"
	"github.com/cleanq-go/cleanq/internal/metrics"
	"github.com/cleanq-go/cleanq/region"
)

// S7: metrics/logging smoke — a queue wired with a Metrics instance
// observes EnqueueOps/DequeueOps incrementing across a round trip.
func TestQueueMetricsSmoke(t *testing.T) {
	pool := region.NewPool()
	backend := debugqueue.New(cleanqtest.NewLoopback(0), nil)
	m := metrics.New()
	q := cleanq.NewQueue("t7", pool, backend, cleanq.WithMetrics(m))

	rid, err := q.Register(0x1000, 0x1000, 8192)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	desc := cleanq.Descriptor{RegionID: rid, Offset: 0, Length: 2048, ValidData: 0, ValidLength: 2048}
	if err := q.Enqueue(desc); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := q.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got != desc {
		t.Fatalf("Dequeue() = %+v, want %+v", got, desc)
	}

	snap := m.Snapshot()
	if snap.EnqueueOps != 1 {
		t.Fatalf("EnqueueOps = %d, want 1", snap.EnqueueOps)
	}
	if snap.DequeueOps != 1 {
		t.Fatalf("DequeueOps = %d, want 1", snap.DequeueOps)
	}
	if snap.ErrorCount != 0 {
		t.Fatalf("ErrorCount = %d, want 0", snap.ErrorCount)
	}
}

// Invariant 2 (bounds safety): the frontend rejects an out-of-bounds
// enqueue before the backend ever sees it.
func TestQueueEnqueueRejectsOutOfBounds(t *testing.T) {
	pool := region.NewPool()
	lb := cleanqtest.NewLoopback(0)
	q := cleanq.NewQueue("t8", pool, lb)

	rid, err := q.Register(0x1000, 0x1000, 4096)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	err = q.Enqueue(cleanq.Descriptor{RegionID: rid, Offset: 2048, Length: 4096})
	if !cleanq.IsCode(err, cleanq.CodeInvalidBufferArgs) {
		t.Fatalf("expected CodeInvalidBufferArgs, got %v", err)
	}
	if _, derr := lb.Dequeue(); !cleanq.IsCode(derr, cleanq.CodeQueueEmpty) {
		t.Fatalf("out-of-bounds enqueue must not reach the backend")
	}
}

// S6 through the frontend: deregistering a region with an in-flight
// buffer fails until the buffer is dequeued back.
func TestQueueDeregisterWithInFlightBuffer(t *testing.T) {
	pool := region.NewPool()
	backend := debugqueue.New(cleanqtest.NewLoopback(0), nil)
	q := cleanq.NewQueue("t9", pool, backend)

	rid, err := q.Register(0x3000, 0x3000, 8192)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	desc := cleanq.Descriptor{RegionID: rid, Offset: 2048, Length: 2048}
	if err := q.Enqueue(desc); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := q.Deregister(rid); !cleanq.IsCode(err, cleanq.CodeRegionDestroy) {
		t.Fatalf("expected CodeRegionDestroy, got %v", err)
	}

	if _, err := q.Dequeue(); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if err := q.Deregister(rid); err != nil {
		t.Fatalf("Deregister after drain: %v", err)
	}
}

func TestQueueDestroyForwardsContext(t *testing.T) {
	pool := region.NewPool()
	lb := cleanqtest.NewLoopback(0)
	q := cleanq.NewQueue("t10", pool, lb)
	if err := q.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}
