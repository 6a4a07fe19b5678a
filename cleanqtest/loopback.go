// Package cleanqtest provides the loopback backend: a fixed-capacity
// circular buffer of descriptors used only to drive test suites (the
// debug wrapper's scenarios in particular never need real shared
// memory). Register and deregister are no-ops, matching the reference
// loopback backend.
package cleanqtest

import (
	"context"

	"github.com/cleanq-go/cleanq"
)

// DefaultCapacity matches the reference loopback queue's fixed size.
const DefaultCapacity = 64

// Loopback is a single-process, single-direction circular buffer of
// descriptors: what one side enqueues, the same side dequeues.
type Loopback struct {
	ring []cleanq.Descriptor
	head int
	tail int
	n    int
}

// NewLoopback creates an empty loopback backend with the given
// capacity (DefaultCapacity if cap <= 0).
func NewLoopback(capacity int) *Loopback {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Loopback{ring: make([]cleanq.Descriptor, capacity)}
}

func (l *Loopback) Enqueue(d cleanq.Descriptor) error {
	if l.n == len(l.ring) {
		return cleanq.New("Enqueue", cleanq.CodeQueueFull, "loopback ring full")
	}
	l.ring[l.head] = d
	l.head = (l.head + 1) % len(l.ring)
	l.n++
	return nil
}

func (l *Loopback) Dequeue() (cleanq.Descriptor, error) {
	if l.n == 0 {
		return cleanq.Descriptor{}, cleanq.New("Dequeue", cleanq.CodeQueueEmpty, "loopback ring empty")
	}
	d := l.ring[l.tail]
	l.tail = (l.tail + 1) % len(l.ring)
	l.n--
	return d, nil
}

func (l *Loopback) Register(rid uint32, vaddr, paddr uintptr, length uint64) error { return nil }
func (l *Loopback) Deregister(rid uint32) error                                    { return nil }
func (l *Loopback) Notify() error                                                  { return nil }
func (l *Loopback) Control(req, val uint64) (uint64, error)                        { return val, nil }
func (l *Loopback) Destroy(ctx context.Context) error                              { return nil }
