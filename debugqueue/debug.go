// Package debugqueue implements the ownership-tracking debug wrapper: a
// transparent stacking backend that keeps a per-region ordered
// free-range list and validates every enqueue/dequeue against it,
// catching double-use, lost buffers, and out-of-bounds transfers that
// would otherwise silently corrupt the underlying channel.
package debugqueue

import (
	"context"

	"github.com/cleanq-go/cleanq"
	"github.com/cleanq-go/cleanq/internal/logging"
)

// defaultHistSize matches the reference wrapper's rolling diagnostic
// log length.
const defaultHistSize = 32

// freeRange is one node of a region's doubly-linked list of byte
// ranges currently owned (not in flight) by this endpoint.
type freeRange struct {
	offset, length uint64
	prev, next     *freeRange
}

// regionState is one region's free-range list plus its consistency
// flag: consistent regions were explicitly registered on this side;
// not-consistent regions were synthesized from a dequeue of an rid this
// side never registered, and grow as new buffers for that rid arrive.
type regionState struct {
	length     uint64
	consistent bool
	head       *freeRange
}

type histEntry struct {
	op             string
	offset, length uint64
}

// Debug wraps another Backend, adding ownership tracking.
type Debug struct {
	inner   cleanq.Backend
	regions map[uint32]*regionState
	logger  *logging.Logger

	history  []histEntry
	histPos  int
	histFull bool
}

// New wraps inner with ownership tracking. logger may be nil, in which
// case logging.Default() is used.
func New(inner cleanq.Backend, logger *logging.Logger) *Debug {
	if logger == nil {
		logger = logging.Default()
	}
	return &Debug{
		inner:   inner,
		regions: make(map[uint32]*regionState),
		logger:  logger,
		history: make([]histEntry, defaultHistSize),
	}
}

func (d *Debug) record(op string, offset, length uint64) {
	d.history[d.histPos] = histEntry{op: op, offset: offset, length: length}
	d.histPos++
	if d.histPos == len(d.history) {
		d.histPos = 0
		d.histFull = true
	}
}

// History is a diagnostic entry: an operation and the byte range it
// touched.
type History struct {
	Op             string
	Offset, Length uint64
}

// DumpHistory returns the rolling diagnostic log in chronological
// order, for a caller to print or route through its own logger.
func (d *Debug) DumpHistory() []History {
	n := d.histPos
	if d.histFull {
		n = len(d.history)
	}
	out := make([]History, 0, n)
	start := 0
	if d.histFull {
		start = d.histPos
	}
	for i := 0; i < n; i++ {
		e := d.history[(start+i)%len(d.history)]
		out = append(out, History{Op: e.op, Offset: e.offset, Length: e.length})
	}
	return out
}

// Register forwards to the inner backend, then seeds a fresh free-range
// list covering the whole region, marked consistent.
func (d *Debug) Register(rid uint32, vaddr, paddr uintptr, length uint64) error {
	if err := d.inner.Register(rid, vaddr, paddr, length); err != nil {
		return err
	}
	d.regions[rid] = &regionState{
		length:     length,
		consistent: true,
		head:       &freeRange{offset: 0, length: length},
	}
	return nil
}

// Deregister requires the region's free-range list to be exactly one
// node covering the whole region — i.e. nothing from this region is
// currently in flight — before forwarding to the inner backend.
func (d *Debug) Deregister(rid uint32) error {
	rs, ok := d.regions[rid]
	if !ok || rs.head == nil || rs.head.next != nil || rs.head.offset != 0 || rs.head.length != rs.length {
		return cleanq.New("Deregister", cleanq.CodeRegionDestroy, "region has buffers in flight")
	}
	if err := d.inner.Deregister(rid); err != nil {
		return err
	}
	delete(d.regions, rid)
	return nil
}

// findContaining returns the free-range node that fully contains
// [off, off+len), or nil if none does.
func findContaining(head *freeRange, off, length uint64) *freeRange {
	for n := head; n != nil; n = n.next {
		if off >= n.offset && off+length <= n.offset+n.length {
			return n
		}
	}
	return nil
}

// unlink removes r from its region's list. Used identically whether r
// was shrunk to zero length from its left edge or its right edge — the
// reference implementation has two separate unlink code paths here and
// one of them (the right-edge case) drops the rewire of the
// predecessor's next pointer; sharing one helper between both callers
// makes that divergence impossible.
func unlink(rs *regionState, r *freeRange) {
	if r.prev != nil {
		r.prev.next = r.next
	} else {
		rs.head = r.next
	}
	if r.next != nil {
		r.next.prev = r.prev
	}
}

// removeOrSplit removes [off, off+len) from the free-range node r that
// contains it, splitting r in two if the removed range falls strictly
// inside it.
func removeOrSplit(rs *regionState, r *freeRange, off, length uint64) {
	switch {
	case off == r.offset:
		r.offset += length
		r.length -= length
		if r.length == 0 {
			unlink(rs, r)
		}
	case off+length == r.offset+r.length:
		r.length -= length
		if r.length == 0 {
			unlink(rs, r)
		}
	default:
		after := &freeRange{
			offset: off + length,
			length: (r.offset + r.length) - (off + length),
			prev:   r,
			next:   r.next,
		}
		if r.next != nil {
			r.next.prev = after
		}
		r.next = after
		r.length = off - r.offset
	}
}

// Enqueue locates the free range containing [off, off+len), forwards
// the call to the inner backend, and on success removes or splits that
// range — the bytes are no longer owned by this endpoint.
func (d *Debug) Enqueue(desc cleanq.Descriptor) error {
	rs, ok := d.regions[desc.RegionID]
	if !ok {
		return cleanq.New("Enqueue", cleanq.CodeInvalidRegionID, "unknown region")
	}
	r := findContaining(rs.head, desc.Offset, desc.Length)
	if r == nil {
		d.logger.Warn("enqueue of buffer not owned by this endpoint",
			"rid", desc.RegionID, "offset", desc.Offset, "length", desc.Length)
		return cleanq.New("Enqueue", cleanq.CodeInvalidBufferArgs, "buffer not in any free range")
	}
	if err := d.inner.Enqueue(desc); err != nil {
		return err
	}
	removeOrSplit(rs, r, desc.Offset, desc.Length)
	d.record("enqueue", desc.Offset, desc.Length)
	return nil
}

// insertMerge places [off, off+len) into rs's ordered free-range list,
// fusing with whichever neighbor(s) touch its boundaries. Returns
// BUFFER_NOT_IN_USE if the range overlaps an already-free neighbor —
// i.e. this dequeue names bytes this endpoint already owns.
func insertMerge(rs *regionState, off, length uint64) error {
	var prev, next *freeRange
	for n := rs.head; n != nil; n = n.next {
		if n.offset > off {
			next = n
			break
		}
		prev = n
	}

	if prev != nil && prev.offset+prev.length > off {
		return cleanq.New("Dequeue", cleanq.CodeBufferNotInUse, "range already free")
	}
	if next != nil && off+length > next.offset {
		return cleanq.New("Dequeue", cleanq.CodeBufferNotInUse, "range already free")
	}

	mergePrev := prev != nil && prev.offset+prev.length == off
	mergeNext := next != nil && off+length == next.offset

	switch {
	case mergePrev && mergeNext:
		prev.length = (next.offset + next.length) - prev.offset
		prev.next = next.next
		if next.next != nil {
			next.next.prev = prev
		}
	case mergePrev:
		prev.length = (off + length) - prev.offset
	case mergeNext:
		next.length = (next.offset + next.length) - off
		next.offset = off
	default:
		node := &freeRange{offset: off, length: length, prev: prev, next: next}
		if prev != nil {
			prev.next = node
		} else {
			rs.head = node
		}
		if next != nil {
			next.prev = node
		}
	}
	return nil
}

// Dequeue forwards to the inner backend. If the returned region is
// unseen on this side, it synthesizes a not-consistent region of length
// off+len whose free-range list is the single range [0, off+len).
// Otherwise it merges
// the dequeued range into the existing free-range list.
func (d *Debug) Dequeue() (cleanq.Descriptor, error) {
	desc, err := d.inner.Dequeue()
	if err != nil {
		return cleanq.Descriptor{}, err
	}

	known := desc.Offset + desc.Length
	rs, ok := d.regions[desc.RegionID]
	if !ok {
		rs = &regionState{
			length:     known,
			consistent: false,
			head:       &freeRange{offset: 0, length: known},
		}
		d.regions[desc.RegionID] = rs
		d.record("dequeue", desc.Offset, desc.Length)
		return desc, nil
	}

	if !rs.consistent && known > rs.length {
		rs.length = known
	}

	if err := insertMerge(rs, desc.Offset, desc.Length); err != nil {
		return cleanq.Descriptor{}, err
	}
	d.record("dequeue", desc.Offset, desc.Length)
	return desc, nil
}

func (d *Debug) Notify() error { return d.inner.Notify() }

func (d *Debug) Control(req, val uint64) (uint64, error) { return d.inner.Control(req, val) }

// Destroy forwards to the inner backend. The reference implementation
// leaves this a no-op stub; a stacking wrapper that doesn't tear down
// what it wraps is simply incomplete, so this always forwards.
func (d *Debug) Destroy(ctx context.Context) error {
	return d.inner.Destroy(ctx)
}
