// Package ffbackend implements the "fast-forward" SPSC backend: two
// cache-line-slot rings in a shared mapping, with no sequence numbers —
// each slot's word 0 doubles as its own empty/full sentinel.
package ffbackend

import (
	"context"

	"github.com/cleanq-go/cleanq"
	"github.com/cleanq-go/cleanq/internal/barrier"
	"github.com/cleanq-go/cleanq/internal/shm"
	"github.com/cleanq-go/cleanq/internal/wire"
	"github.com/cleanq-go/cleanq/region"
)

// FF is a two-ring SPSC shared-memory backend.
type FF struct {
	mapping *shm.Mapping
	txBuf   []byte
	rxBuf   []byte
	n       uint16
	txPos   uint16
	rxPos   uint16

	pool         *region.Pool
	onRegister   cleanq.RegisterCallback
	onDeregister cleanq.DeregisterCallback
}

// Option configures an FF backend at construction.
type Option func(*FF)

// WithOnRegister sets the callback invoked when a peer-initiated
// CMD_REGISTER arrives inline during Dequeue.
func WithOnRegister(cb cleanq.RegisterCallback) Option {
	return func(f *FF) { f.onRegister = cb }
}

// WithOnDeregister sets the callback invoked when a peer-initiated
// CMD_DEREGISTER arrives inline during Dequeue.
func WithOnDeregister(cb cleanq.DeregisterCallback) Option {
	return func(f *FF) { f.onDeregister = cb }
}

// New creates or joins the FF channel backed by the shared-memory file
// at path. The creator is determined by who wins the O_CREAT|O_EXCL
// race in shm.Open; only the creator initializes the slot sentinels.
func New(path string, pool *region.Pool, slots int, opts ...Option) (*FF, error) {
	if slots <= 0 {
		slots = wire.FFDefaultSlots
	}
	halfSize := slots * wire.CachelineSize
	mapping, err := shm.Open(path, 2*halfSize, false)
	if err != nil {
		return nil, cleanq.Wrap("FFCreate", cleanq.CodeInitQueue, err)
	}

	f := &FF{mapping: mapping, n: uint16(slots), pool: pool}
	for _, opt := range opts {
		opt(f)
	}

	if mapping.Role == shm.RoleCreator {
		// creator uses the first half for RX, second for TX
		f.rxBuf = mapping.Bytes[0:halfSize]
		f.txBuf = mapping.Bytes[halfSize : 2*halfSize]
		wire.FFInitSlots(f.rxBuf, slots)
		wire.FFInitSlots(f.txBuf, slots)
	} else {
		// joiner swaps: first half is creator-RX/joiner-TX
		f.txBuf = mapping.Bytes[0:halfSize]
		f.rxBuf = mapping.Bytes[halfSize : 2*halfSize]
	}

	return f, nil
}

func (f *FF) trySend(sentinel uint64, msg wire.FFMessage) error {
	pos := int(f.txPos)
	if wire.FFReadSentinel(f.txBuf, pos) != wire.FFSlotEmpty {
		return cleanq.New("Enqueue", cleanq.CodeQueueFull, "no free slot")
	}
	wire.FFWritePayload(f.txBuf, pos, msg)
	barrier.StoreStore()
	wire.FFPublish(f.txBuf, pos, sentinel)
	f.txPos = (f.txPos + 1) % f.n
	return nil
}

// Enqueue publishes a data descriptor. Word 0 carries the region id.
func (f *FF) Enqueue(d cleanq.Descriptor) error {
	return f.trySend(uint64(d.RegionID), wire.FFMessage{
		Offset:      d.Offset,
		Length:      d.Length,
		ValidData:   d.ValidData,
		ValidLength: d.ValidLength,
		Flags:       d.Flags,
		Cmd:         wire.FFCmdData,
	})
}

// Dequeue pulls the next visible slot, applying and retrying past any
// inline register/deregister commands before returning a data
// descriptor to the caller.
func (f *FF) Dequeue() (cleanq.Descriptor, error) {
	for {
		pos := int(f.rxPos)
		sentinel := wire.FFReadSentinel(f.rxBuf, pos)
		if sentinel == wire.FFSlotEmpty {
			return cleanq.Descriptor{}, cleanq.New("Dequeue", cleanq.CodeQueueEmpty, "no pending slot")
		}
		msg := wire.FFReadPayload(f.rxBuf, pos)
		barrier.LoadStore()
		wire.FFRelease(f.rxBuf, pos)
		f.rxPos = (f.rxPos + 1) % f.n

		rid := uint32(sentinel)
		switch msg.Cmd {
		case wire.FFCmdRegister:
			vaddr, paddr, length := uintptr(msg.Offset), uintptr(msg.ValidData), msg.Length
			f.pool.AddRegionWithID(rid, vaddr, paddr, length)
			if f.onRegister != nil {
				f.onRegister(rid, vaddr, paddr, length)
			}
			continue
		case wire.FFCmdDeregister:
			f.pool.RemoveRegion(rid)
			if f.onDeregister != nil {
				f.onDeregister(rid)
			}
			continue
		default:
			return cleanq.Descriptor{
				RegionID:    rid,
				Offset:      msg.Offset,
				Length:      msg.Length,
				ValidData:   msg.ValidData,
				ValidLength: msg.ValidLength,
				Flags:       msg.Flags,
			}, nil
		}
	}
}

// Register publishes a CMD_REGISTER so the peer mirrors this region
// into its own pool at the same id.
func (f *FF) Register(rid uint32, vaddr, paddr uintptr, length uint64) error {
	return f.trySend(uint64(rid), wire.FFMessage{
		Offset:    uint64(vaddr),
		Length:    length,
		ValidData: uint64(paddr),
		Cmd:       wire.FFCmdRegister,
	})
}

// Deregister publishes a CMD_DEREGISTER; only rid is meaningful.
func (f *FF) Deregister(rid uint32) error {
	return f.trySend(uint64(rid), wire.FFMessage{Cmd: wire.FFCmdDeregister})
}

// Notify is a no-op: the FF channel has no separate doorbell.
func (f *FF) Notify() error { return nil }

// Control has no FF-specific requests defined; it echoes val.
func (f *FF) Control(req, val uint64) (uint64, error) {
	return val, nil
}

// Destroy unmaps the shared region, removing the backing file if this
// side created it.
func (f *FF) Destroy(ctx context.Context) error {
	if err := f.mapping.Close(); err != nil {
		return cleanq.Wrap("Destroy", cleanq.CodeInitQueue, err)
	}
	return nil
}
