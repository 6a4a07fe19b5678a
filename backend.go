// Package cleanq implements a descriptor-queue abstraction for
// zero-copy buffer exchange between two endpoints that share memory: a
// frontend that validates buffer bounds against a region pool, and a
// pluggable backend (FF, IPC, or a debug-tracking wrapper around
// either) that moves descriptors over a shared-memory channel.
package cleanq

import (
	"context"

	"github.com/cleanq-go/cleanq/internal/logging"
	"github.com/cleanq-go/cleanq/internal/metrics"
	"github.com/cleanq-go/cleanq/region"
)

// FlagLast marks the end of a chain of buffers; all other flag bits are
// caller-defined.
const FlagLast = 1 << 30

// Descriptor is the unit of transfer: ownership of the named buffer
// moves from sender to receiver without copying its bytes.
type Descriptor struct {
	RegionID    uint32
	Offset      uint64
	Length      uint64
	ValidData   uint64
	ValidLength uint64
	Flags       uint64
}

// Backend is the capability set every queue implementation (FF, IPC,
// the debug wrapper) realizes. The frontend Queue holds one of these
// and brackets Enqueue/Dequeue with region-pool bounds checks.
type Backend interface {
	// Register mirrors a region, already assigned id rid by the
	// frontend's region pool, into the backend (e.g. publishing a
	// CMD_REGISTER to a peer).
	Register(rid uint32, vaddr, paddr uintptr, length uint64) error
	// Deregister mirrors a region removal into the backend.
	Deregister(rid uint32) error
	Enqueue(d Descriptor) error
	Dequeue() (Descriptor, error)
	// Notify is a no-op for shared-memory backends; kept for parity
	// with the capability set described by the wire backends.
	Notify() error
	Control(req, val uint64) (uint64, error)
	Destroy(ctx context.Context) error
}

// RegisterCallback is invoked when a peer-initiated registration
// arrives inline on the datapath (CMD_REGISTER over FF or IPC).
type RegisterCallback func(rid uint32, vaddr, paddr uintptr, length uint64)

// DeregisterCallback is invoked when a peer-initiated deregistration
// arrives inline on the datapath.
type DeregisterCallback func(rid uint32)

// Queue is the frontend: uniform operations over a region pool and a
// backend, plus optional ambient logging and metrics.
type Queue struct {
	Name    string
	pool    *region.Pool
	backend Backend
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// Option configures a Queue at construction.
type Option func(*Queue)

// WithLogger attaches a logger; without one, Default() is used.
func WithLogger(l *logging.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// NewQueue builds a frontend over pool and backend. pool must be the
// same *region.Pool the backend was constructed with, so that
// peer-initiated registrations the backend applies inline are visible
// through this Queue's Register/Deregister bookkeeping too.
func NewQueue(name string, pool *region.Pool, backend Backend, opts ...Option) *Queue {
	q := &Queue{
		Name:    name,
		pool:    pool,
		backend: backend,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Register assigns a region id from the pool, then mirrors it into the
// backend. If the backend rejects it, the pool assignment is unwound.
func (q *Queue) Register(vaddr, paddr uintptr, length uint64) (uint32, error) {
	rid, err := q.pool.AddRegion(vaddr, paddr, length)
	if err != nil {
		q.recordErr("Register", err)
		return 0, err
	}
	if err := q.backend.Register(rid, vaddr, paddr, length); err != nil {
		q.pool.RemoveRegion(rid)
		q.recordErr("Register", err)
		return 0, err
	}
	q.logger.Debug("register", "queue", q.Name, "rid", rid)
	return rid, nil
}

// Deregister mirrors the removal into the backend first — which may
// refuse with REGION_DESTROY if buffers from the region are still in
// flight — and only then removes the region from the pool, so a refused
// deregister leaves the pool's bookkeeping untouched.
func (q *Queue) Deregister(rid uint32) error {
	if err := q.backend.Deregister(rid); err != nil {
		q.recordErr("Deregister", err)
		return err
	}
	if _, err := q.pool.RemoveRegion(rid); err != nil {
		q.recordErr("Deregister", err)
		return err
	}
	q.logger.Debug("deregister", "queue", q.Name, "rid", rid)
	return nil
}

// Enqueue bounds-checks the descriptor against the region pool before
// calling the backend, so a malformed descriptor never reaches the
// wire.
func (q *Queue) Enqueue(d Descriptor) error {
	if !q.pool.CheckBounds(d.RegionID, d.Offset, d.Length, d.ValidData, d.ValidLength) {
		err := New("Enqueue", CodeInvalidBufferArgs, "buffer out of region bounds")
		q.recordErr("Enqueue", err)
		return err
	}
	if err := q.backend.Enqueue(d); err != nil {
		q.recordBackendErr("Enqueue", err)
		return err
	}
	if q.metrics != nil {
		q.metrics.RecordEnqueue()
	}
	q.logger.Debug("enqueue", "queue", q.Name, "rid", d.RegionID, "off", d.Offset, "len", d.Length)
	return nil
}

// Dequeue calls the backend first, then bounds-checks the returned
// descriptor against the region pool. Regions a peer registers over FF
// or IPC are added to the pool by the backend inside its Dequeue, so
// they pass this check; a descriptor whose region the pool does not
// know is rejected.
func (q *Queue) Dequeue() (Descriptor, error) {
	d, err := q.backend.Dequeue()
	if err != nil {
		q.recordBackendErr("Dequeue", err)
		return Descriptor{}, err
	}
	if !q.pool.CheckBounds(d.RegionID, d.Offset, d.Length, d.ValidData, d.ValidLength) {
		// The region pool has no record of this rid on this side at
		// all, or the descriptor is out of bounds for what it does
		// know. The not-consistent regions the debug wrapper
		// synthesizes live only in the wrapper, not in this pool, so
		// they are rejected here as well.
		rerr := New("Dequeue", CodeBufferNotInRegion, "dequeued descriptor not in region")
		q.recordErr("Dequeue", rerr)
		return Descriptor{}, rerr
	}
	if q.metrics != nil {
		q.metrics.RecordDequeue()
	}
	q.logger.Debug("dequeue", "queue", q.Name, "rid", d.RegionID, "off", d.Offset, "len", d.Length)
	return d, nil
}

// Notify forwards to the backend.
func (q *Queue) Notify() error {
	return q.backend.Notify()
}

// Control forwards to the backend.
func (q *Queue) Control(req, val uint64) (uint64, error) {
	return q.backend.Control(req, val)
}

// Destroy tears down the backend's resources; the pool is left as it
// is. It must be
// called only once no other goroutine is using the queue.
func (q *Queue) Destroy(ctx context.Context) error {
	q.logger.Info("destroy", "queue", q.Name)
	return q.backend.Destroy(ctx)
}

func (q *Queue) recordErr(op string, err error) {
	if q.metrics != nil {
		q.metrics.RecordError()
	}
	q.logger.Warn(op+" failed", "queue", q.Name, "err", err)
}

func (q *Queue) recordBackendErr(op string, err error) {
	switch {
	case IsCode(err, CodeQueueFull):
		if q.metrics != nil {
			q.metrics.RecordFull()
		}
	case IsCode(err, CodeQueueEmpty):
		if q.metrics != nil {
			q.metrics.RecordEmpty()
		}
	default:
		q.recordErr(op, err)
		return
	}
	q.logger.Debug(op+" transient", "queue", q.Name, "err", err)
}
