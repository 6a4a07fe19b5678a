package wire

import "testing"

func TestIPCDescOffsetSkipsAckSlot(t *testing.T) {
	if got := IPCDescOffset(0, 0); got != CachelineSize {
		t.Fatalf("IPCDescOffset(0,0) = %d, want %d", got, CachelineSize)
	}
	if got := IPCDescOffset(0, 1); got != 2*CachelineSize {
		t.Fatalf("IPCDescOffset(0,1) = %d, want %d", got, 2*CachelineSize)
	}
}

func TestIPCAckWordRoundTrip(t *testing.T) {
	buf := make([]byte, 2*IPCDefaultSlots*CachelineSize)
	IPCWriteAck(buf, 0, 42)
	if got := IPCReadAck(buf, 0); got != 42 {
		t.Fatalf("IPCReadAck = %d, want 42", got)
	}
}

func TestIPCDescriptorRoundTrip(t *testing.T) {
	buf := make([]byte, 2*IPCDefaultSlots*CachelineSize)
	d := IPCDescriptor{
		RegionID:    9,
		Offset:      4096,
		Length:      2048,
		ValidData:   0,
		ValidLength: 2048,
		Flags:       1 << 30,
		Cmd:         IPCCmdData,
	}
	off := IPCDescOffset(0, 3)
	IPCWriteDescBody(buf, off, d)
	IPCWriteSeq(buf, off, 7)

	if got := IPCReadSeq(buf, off); got != 7 {
		t.Fatalf("IPCReadSeq = %d, want 7", got)
	}
	got := IPCReadDesc(buf, off)
	d.Seq = 7
	if got != d {
		t.Fatalf("IPCReadDesc = %+v, want %+v", got, d)
	}
}

func TestIPCUsableSlotsRatio(t *testing.T) {
	if IPCUsableSlots != IPCDefaultSlots-1 {
		t.Fatalf("IPCUsableSlots = %d, want %d", IPCUsableSlots, IPCDefaultSlots-1)
	}
}
