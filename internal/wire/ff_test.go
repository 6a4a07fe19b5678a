package wire

import "testing"

func TestFFInitSlotsAllEmpty(t *testing.T) {
	buf := make([]byte, 4*CachelineSize)
	FFInitSlots(buf, 4)
	for i := 0; i < 4; i++ {
		if got := FFReadSentinel(buf, i); got != FFSlotEmpty {
			t.Fatalf("slot %d sentinel = %#x, want FFSlotEmpty", i, got)
		}
	}
}

func TestFFWriteReadPayloadRoundTrip(t *testing.T) {
	buf := make([]byte, CachelineSize)
	msg := FFMessage{
		Offset:      1024,
		Length:      2048,
		ValidData:   0,
		ValidLength: 2048,
		Flags:       1 << 30,
		Cmd:         FFCmdData,
	}
	FFWritePayload(buf, 0, msg)
	FFPublish(buf, 0, 7)

	if got := FFReadSentinel(buf, 0); got != 7 {
		t.Fatalf("sentinel = %d, want 7", got)
	}
	got := FFReadPayload(buf, 0)
	if got != msg {
		t.Fatalf("FFReadPayload = %+v, want %+v", got, msg)
	}

	FFRelease(buf, 0)
	if got := FFReadSentinel(buf, 0); got != FFSlotEmpty {
		t.Fatalf("sentinel after release = %#x, want FFSlotEmpty", got)
	}
}

func TestFFSlotsAreCachelineDisjoint(t *testing.T) {
	buf := make([]byte, 2*CachelineSize)
	FFInitSlots(buf, 2)
	FFWritePayload(buf, 0, FFMessage{Offset: 1})
	FFPublish(buf, 0, 1)
	if got := FFReadSentinel(buf, 1); got != FFSlotEmpty {
		t.Fatalf("writing slot 0 disturbed slot 1: sentinel = %#x", got)
	}
}
