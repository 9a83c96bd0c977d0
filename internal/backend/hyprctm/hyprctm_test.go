package hyprctm

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/sunsetr/sunsetr/internal/colormath"
)

func TestEncodeUint32(t *testing.T) {
	b := encodeUint32(0x11223344)
	if binary.LittleEndian.Uint32(b) != 0x11223344 {
		t.Errorf("encodeUint32 = % x, want little-endian 0x11223344", b)
	}
}

func TestEncodeCTMLength(t *testing.T) {
	var m colormath.CTM
	b := encodeCTM(m)
	if len(b) != 9*4 {
		t.Fatalf("encodeCTM length = %d, want %d", len(b), 9*4)
	}
}

func TestEncodeCTMValues(t *testing.T) {
	m := colormath.CTM{1, 0, 0, 0, 0.5, 0, 0, 0, 2}
	b := encodeCTM(m)
	for i, want := range m {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		got := float64(int32(bits)) / fixedScale
		if math.Abs(got-want) > 1.0/fixedScale {
			t.Errorf("encodeCTM[%d] = %v, want %v", i, got, want)
		}
	}
}
