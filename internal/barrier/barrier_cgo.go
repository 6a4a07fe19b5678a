//go:build linux && cgo

package barrier

/*
#include <stdint.h>

// x86-64 store fence: all prior stores are globally visible before any
// subsequent store. Used between writing a slot's payload and writing
// its readiness/sequence word.
static inline void sfence_impl(void) {
    __asm__ __volatile__("sfence" ::: "memory");
}

// x86-64 full memory fence: all prior loads and stores complete before
// any subsequent memory operation. Used between reading a slot's
// payload and writing back its release marker.
static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

// StoreStore issues a store-store barrier (x86 SFENCE). Call it after
// writing a slot's payload words and before publishing the readiness
// word, so a peer that observes the readiness word also observes the
// payload.
func StoreStore() {
	C.sfence_impl()
}

// LoadStore issues a full fence (x86 MFENCE) between reading a slot and
// clearing or advancing its readiness marker.
func LoadStore() {
	C.mfence_impl()
}
