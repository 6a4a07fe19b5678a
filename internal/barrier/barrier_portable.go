//go:build !(linux && cgo)

package barrier

import "sync/atomic"

// dummy gives the portable build a real atomic operation to anchor to:
// Go's memory model guarantees that every sync/atomic operation acts as
// a full fence relative to other atomic operations on the same
// variable, which is what cross-process publish/observe needs here when
// cgo is unavailable (CGO_ENABLED=0 test runs, non-linux hosts).
var dummy uint32

// StoreStore issues a store-store barrier. On builds without cgo this
// is implemented as an atomic store, which the Go runtime lowers to a
// fenced store on every supported architecture.
func StoreStore() {
	atomic.StoreUint32(&dummy, atomic.LoadUint32(&dummy)+1)
}

// LoadStore issues a full fence between reading a slot and releasing
// it, implemented on this build as an atomic add to the same variable
// StoreStore uses.
func LoadStore() {
	atomic.AddUint32(&dummy, 1)
}
