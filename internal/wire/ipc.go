package wire

import "encoding/binary"

const (
	// IPCDefaultSlots is the number of descriptor slots per half,
	// including the ack slot at index 0.
	IPCDefaultSlots = 64

	// IPCUsableSlots is the number of descriptor slots actually
	// usable for data: slot 0 of each half is reserved for the ack
	// word, leaving N-1.
	IPCUsableSlots = IPCDefaultSlots - 1

	// ipcDescBytes is the on-wire size of one descriptor, matching
	// one cache line.
	ipcDescBytes = CachelineSize

	// IPCInitialSeq is the sequence value both tx_seq and rx_seq start
	// at. The ack word a half publishes tracks that same counter, so
	// it must start there too: an ack of 0 would read as "one behind
	// where it really is" for as long as nothing has been consumed
	// yet, stealing a slot of flow-control headroom from every fresh
	// channel.
	IPCInitialSeq = 1
)

// IPCCommand tags what an IPC descriptor carries.
type IPCCommand uint64

const (
	IPCCmdData       IPCCommand = 0
	IPCCmdRegister   IPCCommand = 1
	IPCCmdDeregister IPCCommand = 2
)

// IPCDescriptor is the decoded form of one descriptor slot.
type IPCDescriptor struct {
	Seq         uint64
	RegionID    uint32
	Offset      uint64
	Length      uint64
	ValidData   uint64
	ValidLength uint64
	Flags       uint64
	Cmd         IPCCommand
}

// IPCDescOffset returns the byte offset of descriptor slot i (0-indexed
// over the IPCUsableSlots descriptors) within a half that starts at
// halfOffset. Slot 0 of the half is the ack word, so descriptors start
// at the second cache line.
func IPCDescOffset(halfOffset int, i int) int {
	return halfOffset + CachelineSize*(1+i)
}

// IPCReadAck reads the ack word at the start of a half.
func IPCReadAck(buf []byte, halfOffset int) uint64 {
	return binary.LittleEndian.Uint64(buf[halfOffset : halfOffset+8])
}

// IPCWriteAck writes the ack word at the start of a half.
func IPCWriteAck(buf []byte, halfOffset int, v uint64) {
	binary.LittleEndian.PutUint64(buf[halfOffset:halfOffset+8], v)
}

// IPCInitAcks seeds both halves' ack words to IPCInitialSeq. Only the
// mapping's creator calls this, the same way only the creator calls
// FFInitSlots: the freshly mmap'd file already reads as all zero, and
// without this the ack words would start one behind tx_seq/rx_seq.
func IPCInitAcks(buf []byte, halfSize int) {
	IPCWriteAck(buf, 0, IPCInitialSeq)
	IPCWriteAck(buf, halfSize, IPCInitialSeq)
}

// IPCWriteDescBody writes every descriptor field except Seq. It must be
// followed by a store-store barrier and then IPCWriteSeq, so a
// consumer that observes the new seq also observes the body.
func IPCWriteDescBody(buf []byte, off int, d IPCDescriptor) {
	binary.LittleEndian.PutUint32(buf[off+8:off+12], d.RegionID)
	binary.LittleEndian.PutUint32(buf[off+12:off+16], 0) // pad
	binary.LittleEndian.PutUint64(buf[off+16:off+24], d.Offset)
	binary.LittleEndian.PutUint64(buf[off+24:off+32], d.Length)
	binary.LittleEndian.PutUint64(buf[off+32:off+40], d.ValidData)
	binary.LittleEndian.PutUint64(buf[off+40:off+48], d.ValidLength)
	binary.LittleEndian.PutUint64(buf[off+48:off+56], d.Flags)
	binary.LittleEndian.PutUint64(buf[off+56:off+64], uint64(d.Cmd))
}

// IPCWriteSeq publishes the descriptor's sequence number, the word that
// makes the whole descriptor visible to the consumer.
func IPCWriteSeq(buf []byte, off int, seq uint64) {
	binary.LittleEndian.PutUint64(buf[off:off+8], seq)
}

// IPCReadSeq reads a descriptor's sequence number without reading the
// rest of the body.
func IPCReadSeq(buf []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(buf[off : off+8])
}

// IPCReadDesc reads an entire descriptor, including Seq.
func IPCReadDesc(buf []byte, off int) IPCDescriptor {
	return IPCDescriptor{
		Seq:         binary.LittleEndian.Uint64(buf[off : off+8]),
		RegionID:    binary.LittleEndian.Uint32(buf[off+8 : off+12]),
		Offset:      binary.LittleEndian.Uint64(buf[off+16 : off+24]),
		Length:      binary.LittleEndian.Uint64(buf[off+24 : off+32]),
		ValidData:   binary.LittleEndian.Uint64(buf[off+32 : off+40]),
		ValidLength: binary.LittleEndian.Uint64(buf[off+40 : off+48]),
		Flags:       binary.LittleEndian.Uint64(buf[off+48 : off+56]),
		Cmd:         IPCCommand(binary.LittleEndian.Uint64(buf[off+56 : off+64])),
	}
}
