package wlrgamma

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/sunsetr/sunsetr/internal/colormath"
)

func TestWriteRampLittleEndian(t *testing.T) {
	dst := make([]byte, 4)
	writeRamp(dst, []uint16{0x1234, 0xabcd})
	want := []byte{0x34, 0x12, 0xcd, 0xab}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("writeRamp = % x, want % x", dst, want)
		}
	}
}

func TestEncodeDecodeUint32RoundTrip(t *testing.T) {
	got, ok := decodeUint32(encodeUint32(0x01020304))
	if !ok || got != 0x01020304 {
		t.Errorf("round trip = (%x, %v), want (01020304, true)", got, ok)
	}
}

func TestDecodeUint32TooShort(t *testing.T) {
	if _, ok := decodeUint32([]byte{0}); ok {
		t.Error("decodeUint32 should fail on a 1-byte slice")
	}
}

func TestRampFDProducesSealedSegment(t *testing.T) {
	state := colormath.State{TempK: 5000, GammaPct: 80}
	fd, err := rampFD(state, 16)
	if err != nil {
		t.Fatalf("rampFD: %v", err)
	}
	defer unix.Close(fd)
	if fd < 0 {
		t.Fatalf("rampFD returned fd = %d", fd)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		t.Fatalf("fstat on ramp fd: %v", err)
	}
	if st.Size != 16*3*2 {
		t.Errorf("ramp fd size = %d, want %d", st.Size, 16*3*2)
	}
}
