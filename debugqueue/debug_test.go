package debugqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cleanq-go/cleanq"
	"github.com/cleanq-go/cleanq/cleanqtest"
)

func newDebugOverLoopback() (*Debug, uint32) {
	lb := cleanqtest.NewLoopback(0)
	d := New(lb, nil)
	rid := uint32(7)
	_ = d.Register(rid, 0, 0, 8192)
	return d, rid
}

func freeRanges(d *Debug, rid uint32) [][2]uint64 {
	rs := d.regions[rid]
	var out [][2]uint64
	for n := rs.head; n != nil; n = n.next {
		out = append(out, [2]uint64{n.offset, n.length})
	}
	return out
}

// S3: debug split — enqueue carves the middle out of the whole-region
// free range, and the matching dequeue merges it back.
func TestDebugSplitAndMerge(t *testing.T) {
	d, rid := newDebugOverLoopback()

	desc := cleanq.Descriptor{RegionID: rid, Offset: 2048, Length: 2048}
	require.NoError(t, d.Enqueue(desc))
	require.Equal(t, [][2]uint64{{0, 2048}, {4096, 4096}}, freeRanges(d, rid))

	got, err := d.Dequeue()
	require.NoError(t, err)
	require.Equal(t, desc, got)
	require.Equal(t, [][2]uint64{{0, 8192}}, freeRanges(d, rid))
}

// S4: debug double enqueue — re-enqueuing an already in-flight buffer
// must fail and must not mutate the free list.
func TestDebugDoubleEnqueueRejected(t *testing.T) {
	d, rid := newDebugOverLoopback()

	desc := cleanq.Descriptor{RegionID: rid, Offset: 2048, Length: 2048}
	require.NoError(t, d.Enqueue(desc))
	before := freeRanges(d, rid)

	err := d.Enqueue(desc)
	require.Error(t, err)
	require.True(t, cleanq.IsCode(err, cleanq.CodeInvalidBufferArgs))
	require.Equal(t, before, freeRanges(d, rid))
}

// S6: deregister with in-flight buffers is refused until the buffer
// comes back.
func TestDebugDeregisterWithInFlightBuffer(t *testing.T) {
	d, rid := newDebugOverLoopback()

	desc := cleanq.Descriptor{RegionID: rid, Offset: 2048, Length: 2048}
	require.NoError(t, d.Enqueue(desc))

	err := d.Deregister(rid)
	require.Error(t, err)
	require.True(t, cleanq.IsCode(err, cleanq.CodeRegionDestroy))

	_, err = d.Dequeue()
	require.NoError(t, err)
	require.NoError(t, d.Deregister(rid))
}

func TestDebugEnqueueUnknownRegion(t *testing.T) {
	d, _ := newDebugOverLoopback()
	err := d.Enqueue(cleanq.Descriptor{RegionID: 999, Offset: 0, Length: 1})
	require.True(t, cleanq.IsCode(err, cleanq.CodeInvalidRegionID))
}

func TestDebugEnqueueOutOfAnyFreeRange(t *testing.T) {
	d, rid := newDebugOverLoopback()
	// carve out [0,8192) entirely so there is nothing left to contain
	// a further enqueue
	require.NoError(t, d.Enqueue(cleanq.Descriptor{RegionID: rid, Offset: 0, Length: 8192}))

	err := d.Enqueue(cleanq.Descriptor{RegionID: rid, Offset: 0, Length: 1})
	require.True(t, cleanq.IsCode(err, cleanq.CodeInvalidBufferArgs))
}

// Boundary: merge at both edges simultaneously (triple-range coalesce).
func TestDebugTripleRangeCoalesce(t *testing.T) {
	d, rid := newDebugOverLoopback()

	// carve three adjacent in-flight buffers out of the whole region; the
	// middle one goes last so the loopback returns it last
	require.NoError(t, d.Enqueue(cleanq.Descriptor{RegionID: rid, Offset: 0, Length: 2048}))
	require.NoError(t, d.Enqueue(cleanq.Descriptor{RegionID: rid, Offset: 4096, Length: 4096}))
	require.NoError(t, d.Enqueue(cleanq.Descriptor{RegionID: rid, Offset: 2048, Length: 2048}))
	require.Empty(t, freeRanges(d, rid))

	_, err := d.Dequeue() // [0,2048)
	require.NoError(t, err)
	require.Equal(t, [][2]uint64{{0, 2048}}, freeRanges(d, rid))

	_, err = d.Dequeue() // [4096,8192) does not touch [0,2048): a separate range
	require.NoError(t, err)
	require.Equal(t, [][2]uint64{{0, 2048}, {4096, 4096}}, freeRanges(d, rid))

	_, err = d.Dequeue() // [2048,4096) touches both neighbours and fuses all three
	require.NoError(t, err)
	require.Equal(t, [][2]uint64{{0, 8192}}, freeRanges(d, rid))
}

// S5-equivalent: a dequeue for an rid never registered on this side
// synthesizes a not-consistent region of length off+len whose free list
// is the single range [0, off+len).
func TestDebugSynthesizesNotConsistentRegion(t *testing.T) {
	lb := cleanqtest.NewLoopback(0)
	d := New(lb, nil)

	require.NoError(t, lb.Enqueue(cleanq.Descriptor{RegionID: 42, Offset: 4096, Length: 2048}))
	got, err := d.Dequeue()
	require.NoError(t, err)
	require.Equal(t, uint32(42), got.RegionID)

	rs, ok := d.regions[42]
	require.True(t, ok)
	require.False(t, rs.consistent)
	require.Equal(t, uint64(6144), rs.length)
	require.Equal(t, [][2]uint64{{0, 6144}}, freeRanges(d, 42))
}

func TestDebugDestroyForwardsToInner(t *testing.T) {
	d, _ := newDebugOverLoopback()
	require.NoError(t, d.Destroy(context.Background()))
}
