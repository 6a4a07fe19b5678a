// Package ipcbackend implements the sequence-numbered SPSC backend:
// two descriptor rings plus two ack words in a shared mapping. Flow
// control is a modular comparison of producer and consumer sequence
// numbers rather than a per-slot empty sentinel.
package ipcbackend

import (
	"context"

	"github.com/cleanq-go/cleanq"
	"github.com/cleanq-go/cleanq/internal/barrier"
	"github.com/cleanq-go/cleanq/internal/shm"
	"github.com/cleanq-go/cleanq/internal/wire"
	"github.com/cleanq-go/cleanq/region"
)

// IPC is a two-ring sequence-numbered shared-memory backend.
type IPC struct {
	mapping *shm.Mapping
	buf     []byte
	txHalf  int
	rxHalf  int
	txSeq   uint64
	rxSeq   uint64

	pool         *region.Pool
	onRegister   cleanq.RegisterCallback
	onDeregister cleanq.DeregisterCallback
}

// Option configures an IPC backend at construction.
type Option func(*IPC)

func WithOnRegister(cb cleanq.RegisterCallback) Option {
	return func(q *IPC) { q.onRegister = cb }
}

func WithOnDeregister(cb cleanq.DeregisterCallback) Option {
	return func(q *IPC) { q.onDeregister = cb }
}

// New creates or joins the IPC channel at path. The mapping always has
// wire.IPCDefaultSlots slots per half (N-1 usable descriptor slots plus
// one ack word), matching the reference implementation's fixed ratio.
func New(path string, pool *region.Pool, opts ...Option) (*IPC, error) {
	halfSize := wire.IPCDefaultSlots * wire.CachelineSize
	mapping, err := shm.Open(path, 2*halfSize, true)
	if err != nil {
		return nil, cleanq.Wrap("IPCCreate", cleanq.CodeInitQueue, err)
	}

	q := &IPC{mapping: mapping, buf: mapping.Bytes, pool: pool, txSeq: wire.IPCInitialSeq, rxSeq: wire.IPCInitialSeq}
	for _, opt := range opts {
		opt(q)
	}

	if mapping.Role == shm.RoleCreator {
		q.rxHalf = 0
		q.txHalf = halfSize
		wire.IPCInitAcks(q.buf, halfSize)
	} else {
		q.txHalf = 0
		q.rxHalf = halfSize
	}

	return q, nil
}

// canSend reports whether the ring has room for one more in-flight
// descriptor: tx_seq - tx_ack counts how many sent descriptors the
// consumer has not yet acked, and that must stay below the usable
// slot count.
func (q *IPC) canSend() bool {
	ack := wire.IPCReadAck(q.buf, q.txHalf)
	return q.txSeq-ack < wire.IPCUsableSlots
}

func (q *IPC) trySend(d wire.IPCDescriptor) error {
	if !q.canSend() {
		return cleanq.New("Enqueue", cleanq.CodeQueueFull, "ring full")
	}
	idx := int(q.txSeq % wire.IPCUsableSlots)
	off := wire.IPCDescOffset(q.txHalf, idx)
	d.Seq = q.txSeq
	wire.IPCWriteDescBody(q.buf, off, d)
	barrier.StoreStore()
	wire.IPCWriteSeq(q.buf, off, q.txSeq)
	q.txSeq++
	return nil
}

// Enqueue publishes a data descriptor.
func (q *IPC) Enqueue(d cleanq.Descriptor) error {
	return q.trySend(wire.IPCDescriptor{
		RegionID:    d.RegionID,
		Offset:      d.Offset,
		Length:      d.Length,
		ValidData:   d.ValidData,
		ValidLength: d.ValidLength,
		Flags:       d.Flags,
		Cmd:         wire.IPCCmdData,
	})
}

// Dequeue pulls the next visible descriptor, applying and retrying past
// any inline register/deregister commands before returning data to the
// caller.
func (q *IPC) Dequeue() (cleanq.Descriptor, error) {
	for {
		idx := int(q.rxSeq % wire.IPCUsableSlots)
		off := wire.IPCDescOffset(q.rxHalf, idx)
		if q.rxSeq > wire.IPCReadSeq(q.buf, off) {
			return cleanq.Descriptor{}, cleanq.New("Dequeue", cleanq.CodeQueueEmpty, "no pending descriptor")
		}
		d := wire.IPCReadDesc(q.buf, off)
		q.rxSeq++
		wire.IPCWriteAck(q.buf, q.rxHalf, q.rxSeq)

		switch d.Cmd {
		case wire.IPCCmdRegister:
			vaddr, paddr, length := uintptr(d.Offset), uintptr(d.ValidData), d.Length
			q.pool.AddRegionWithID(d.RegionID, vaddr, paddr, length)
			if q.onRegister != nil {
				q.onRegister(d.RegionID, vaddr, paddr, length)
			}
			continue
		case wire.IPCCmdDeregister:
			q.pool.RemoveRegion(d.RegionID)
			if q.onDeregister != nil {
				q.onDeregister(d.RegionID)
			}
			continue
		default:
			return cleanq.Descriptor{
				RegionID:    d.RegionID,
				Offset:      d.Offset,
				Length:      d.Length,
				ValidData:   d.ValidData,
				ValidLength: d.ValidLength,
				Flags:       d.Flags,
			}, nil
		}
	}
}

// Register publishes a CMD_REGISTER, busy-waiting for a free slot the
// way the reference IPC register does (unlike FF's single attempt).
// Callers that want a non-blocking register can call TryRegister
// instead.
func (q *IPC) Register(rid uint32, vaddr, paddr uintptr, length uint64) error {
	for !q.canSend() {
	}
	return q.trySend(wire.IPCDescriptor{
		RegionID:  rid,
		Offset:    uint64(vaddr),
		Length:    length,
		ValidData: uint64(paddr),
		Cmd:       wire.IPCCmdRegister,
	})
}

// TryRegister is the non-blocking variant of Register, returning
// QUEUE_FULL instead of spinning.
func (q *IPC) TryRegister(rid uint32, vaddr, paddr uintptr, length uint64) error {
	return q.trySend(wire.IPCDescriptor{
		RegionID:  rid,
		Offset:    uint64(vaddr),
		Length:    length,
		ValidData: uint64(paddr),
		Cmd:       wire.IPCCmdRegister,
	})
}

// Deregister publishes a CMD_DEREGISTER, busy-waiting for a free slot.
func (q *IPC) Deregister(rid uint32) error {
	for !q.canSend() {
	}
	return q.trySend(wire.IPCDescriptor{RegionID: rid, Cmd: wire.IPCCmdDeregister})
}

// Notify is a no-op: the IPC channel has no separate doorbell.
func (q *IPC) Notify() error { return nil }

// Control has no IPC-specific requests defined; it echoes val.
func (q *IPC) Control(req, val uint64) (uint64, error) {
	return val, nil
}

// Destroy unmaps the shared region, removing the backing file if this
// side created it.
func (q *IPC) Destroy(ctx context.Context) error {
	if err := q.mapping.Close(); err != nil {
		return cleanq.Wrap("Destroy", cleanq.CodeInitQueue, err)
	}
	return nil
}
