// Package region implements the region pool: the id-to-region table that
// every queue endpoint keeps for the memory it has registered.
package region

import (
	"math/rand"
	"time"

	"github.com/cleanq-go/cleanq/cqerr"
)

const initPoolSize = 16

// Region is an immutable description of a contiguous block of memory
// that has been registered with a queue.
type Region struct {
	ID     uint32
	Vaddr  uintptr
	Paddr  uintptr
	Length uint64
}

// Pool maps region ids to regions, growing as a power of two on demand.
// It is not safe for concurrent use: a pool belongs to exactly one queue
// endpoint, accessed only by that endpoint's API goroutine.
type Pool struct {
	size        uint16
	numRegions  uint16
	regionBase  uint32
	lastOffset  uint16
	slots       []*Region
}

// NewPool creates an empty region pool with a randomized id base, the
// way the reference allocator seeds region_offset from rand() so that
// ids from independent pools rarely collide.
func NewPool() *Pool {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Pool{
		size:       initPoolSize,
		regionBase: r.Uint32() >> 12,
		slots:      make([]*Region, initPoolSize),
	}
}

func (p *Pool) grow() {
	newSize := p.size * 2
	tmp := make([]*Region, newSize)
	for i := uint16(0); i < p.size; i++ {
		reg := p.slots[i]
		if reg == nil {
			continue
		}
		idx := uint16(reg.ID) & (newSize - 1)
		tmp[idx] = reg
	}
	p.slots = tmp
	p.size = newSize
	p.lastOffset = 0
}

// AddRegion assigns a fresh id to the region and inserts it, rejecting
// overlap or paddr duplication against every currently registered
// region.
func (p *Pool) AddRegion(vaddr, paddr uintptr, length uint64) (uint32, error) {
	for _, existing := range p.slots {
		if existing == nil {
			continue
		}
		if existing.Paddr == paddr {
			return 0, cqerr.New("AddRegion", cqerr.CodeInvalidRegionArgs, "duplicate paddr")
		}
		if !(paddr+uintptr(length) <= existing.Paddr || existing.Paddr+uintptr(existing.Length) <= paddr) {
			return 0, cqerr.New("AddRegion", cqerr.CodeInvalidRegionArgs, "overlapping region")
		}
	}

	if p.numRegions >= p.size {
		p.grow()
	}

	p.numRegions++
	offset := p.lastOffset
	var index uint16
	for {
		index = uint16(uint32(p.regionBase)+uint32(p.numRegions)+uint32(offset)) & (p.size - 1)
		if p.slots[index] == nil {
			break
		}
		offset++
	}
	p.lastOffset = offset

	id := p.regionBase + uint32(p.numRegions) + uint32(offset)
	reg := &Region{ID: id, Vaddr: vaddr, Paddr: paddr, Length: length}
	p.slots[uint16(id)&(p.size-1)] = reg
	return id, nil
}

// AddRegionWithID mirrors a peer-initiated registration at a specific
// id, used when a backend tunnels a CMD_REGISTER over the wire.
func (p *Pool) AddRegionWithID(id uint32, vaddr, paddr uintptr, length uint64) error {
	if p.numRegions >= p.size {
		p.grow()
	}
	idx := uint16(id) & (p.size - 1)
	if p.slots[idx] != nil {
		return cqerr.New("AddRegionWithID", cqerr.CodeInvalidRegionID, "slot occupied")
	}
	p.slots[idx] = &Region{ID: id, Vaddr: vaddr, Paddr: paddr, Length: length}
	p.numRegions++
	return nil
}

// RemoveRegion drops a region from the pool and returns it.
func (p *Pool) RemoveRegion(id uint32) (*Region, error) {
	idx := uint16(id) & (p.size - 1)
	reg := p.slots[idx]
	if reg == nil || reg.ID != id {
		return nil, cqerr.New("RemoveRegion", cqerr.CodeInvalidRegionID, "no such region")
	}
	p.slots[idx] = nil
	p.numRegions--
	return reg, nil
}

// Get looks up a region by id without removing it.
func (p *Pool) Get(id uint32) (*Region, bool) {
	reg := p.slots[uint16(id)&(p.size-1)]
	if reg == nil || reg.ID != id {
		return nil, false
	}
	return reg, true
}

// NumRegions reports the number of currently registered regions.
func (p *Pool) NumRegions() int {
	return int(p.numRegions)
}

// CheckBounds reports whether (offset, length, validData, validLength)
// describes a buffer that lies entirely inside the named region.
func (p *Pool) CheckBounds(id uint32, offset, length, validData, validLength uint64) bool {
	reg, ok := p.Get(id)
	if !ok {
		return false
	}
	if length+offset > reg.Length {
		return false
	}
	if validData+validLength > length {
		return false
	}
	return true
}
