// Package wire defines the exact byte layouts of the FF and IPC shared
// memory channels. Every accessor goes through explicit
// encoding/binary calls rather than an unsafe.Pointer struct overlay,
// so the two peers can never disagree about padding.
package wire

import "encoding/binary"

const (
	// CachelineSize is the alignment and size of one ring slot.
	CachelineSize = 64

	// FFSlotWords is the number of u64 words per FF slot.
	FFSlotWords = CachelineSize / 8

	// FFSlotEmpty is the sentinel value of an empty slot's word 0.
	FFSlotEmpty uint64 = 0xFFFFFFFFFFFFFFFF

	// FFDefaultSlots is the default slot count per direction.
	FFDefaultSlots = 64
)

// FFCommand tags what an FF slot carries.
type FFCommand uint64

const (
	FFCmdData       FFCommand = 0
	FFCmdRegister   FFCommand = 1
	FFCmdDeregister FFCommand = 2
)

// FFMessage is the decoded form of an FF slot's payload (words 1..5 and
// word 7; word 0 is the sentinel/readiness word, word 6 is unused).
type FFMessage struct {
	Offset      uint64
	Length      uint64
	ValidData   uint64
	ValidLength uint64
	Flags       uint64
	Cmd         FFCommand
}

func ffSlotOffset(slot int) int {
	return slot * CachelineSize
}

func ffWordOffset(slot, word int) int {
	return ffSlotOffset(slot) + word*8
}

// FFInitSlots writes the empty sentinel into word 0 of the first n
// slots of buf. Only the mapping's creator does this, matching the
// reference implementation's init-on-create-only rule.
func FFInitSlots(buf []byte, n int) {
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(buf[ffWordOffset(i, 0):], FFSlotEmpty)
	}
}

// FFReadSentinel reads word 0 of a slot without disturbing it.
func FFReadSentinel(buf []byte, slot int) uint64 {
	off := ffWordOffset(slot, 0)
	return binary.LittleEndian.Uint64(buf[off : off+8])
}

// FFWritePayload writes the five payload fields to words 1..5 of a slot
// and the command tag to the last word, word 7. It must be followed by a
// store-store barrier and then FFPublish.
func FFWritePayload(buf []byte, slot int, msg FFMessage) {
	binary.LittleEndian.PutUint64(buf[ffWordOffset(slot, 1):], msg.Offset)
	binary.LittleEndian.PutUint64(buf[ffWordOffset(slot, 2):], msg.Length)
	binary.LittleEndian.PutUint64(buf[ffWordOffset(slot, 3):], msg.ValidData)
	binary.LittleEndian.PutUint64(buf[ffWordOffset(slot, 4):], msg.ValidLength)
	binary.LittleEndian.PutUint64(buf[ffWordOffset(slot, 5):], msg.Flags)
	binary.LittleEndian.PutUint64(buf[ffWordOffset(slot, 7):], uint64(msg.Cmd))
}

// FFPublish writes word 0 (the sentinel/region-id word), making the
// slot visible to the consumer. sentinel must not equal FFSlotEmpty.
func FFPublish(buf []byte, slot int, sentinel uint64) {
	binary.LittleEndian.PutUint64(buf[ffWordOffset(slot, 0):], sentinel)
}

// FFReadPayload reads words 1..5 and word 7 of a slot.
func FFReadPayload(buf []byte, slot int) FFMessage {
	return FFMessage{
		Offset:      binary.LittleEndian.Uint64(buf[ffWordOffset(slot, 1):]),
		Length:      binary.LittleEndian.Uint64(buf[ffWordOffset(slot, 2):]),
		ValidData:   binary.LittleEndian.Uint64(buf[ffWordOffset(slot, 3):]),
		ValidLength: binary.LittleEndian.Uint64(buf[ffWordOffset(slot, 4):]),
		Flags:       binary.LittleEndian.Uint64(buf[ffWordOffset(slot, 5):]),
		Cmd:         FFCommand(binary.LittleEndian.Uint64(buf[ffWordOffset(slot, 7):])),
	}
}

// FFRelease writes the empty sentinel back into word 0, freeing the
// slot for the producer.
func FFRelease(buf []byte, slot int) {
	binary.LittleEndian.PutUint64(buf[ffWordOffset(slot, 0):], FFSlotEmpty)
}
