package colormath

import "testing"

func TestEaseEndpoints(t *testing.T) {
	if Ease(0) != 0 {
		t.Errorf("Ease(0) = %v, want 0", Ease(0))
	}
	if Ease(1) != 1 {
		t.Errorf("Ease(1) = %v, want 1", Ease(1))
	}
}

func TestEaseMonotonic(t *testing.T) {
	prev := -1.0
	for i := 0; i <= 20; i++ {
		p := float64(i) / 20
		w := Ease(p)
		if w < prev {
			t.Fatalf("Ease not monotonic at progress=%v: %v < %v", p, w, prev)
		}
		prev = w
	}
}

func TestEaseClampsOutOfRange(t *testing.T) {
	if Ease(-0.5) != 0 {
		t.Errorf("Ease(-0.5) should clamp to 0")
	}
	if Ease(1.5) != 1 {
		t.Errorf("Ease(1.5) should clamp to 1")
	}
}

func TestBlendEndpoints(t *testing.T) {
	a := State{TempK: 3300, GammaPct: 90}
	b := State{TempK: 6500, GammaPct: 100}

	got := Blend(a, b, 0)
	if !got.Equal(a) {
		t.Errorf("Blend(w=0) = %+v, want %+v", got, a)
	}

	got = Blend(a, b, 1)
	if !got.Equal(b) {
		t.Errorf("Blend(w=1) = %+v, want %+v", got, b)
	}
}

func TestTempToRGBNormalizedAtReference(t *testing.T) {
	rgb := TempToRGB(6500)
	if rgb.R != 1.0 || rgb.G != 1.0 || rgb.B != 1.0 {
		t.Errorf("TempToRGB(6500) = %+v, want (1,1,1)", rgb)
	}
}

func TestTempToRGBClampsDomain(t *testing.T) {
	low := TempToRGB(500)
	lowest := TempToRGB(1000)
	if low != lowest {
		t.Errorf("TempToRGB below domain should clamp to the lowest row")
	}
	high := TempToRGB(50000)
	highest := TempToRGB(20000)
	if high != highest {
		t.Errorf("TempToRGB above domain should clamp to the highest row")
	}
}

func TestRampEndpointsAndRange(t *testing.T) {
	ramp := Ramp(256, 65535, 1.0, 100)
	if ramp[0] != 0 {
		t.Errorf("ramp[0] = %v, want 0", ramp[0])
	}
	if ramp[255] != 65535 {
		t.Errorf("ramp[255] = %v, want 65535", ramp[255])
	}
	for i := 1; i < len(ramp); i++ {
		if ramp[i] < ramp[i-1] {
			t.Fatalf("ramp not monotonic at index %d", i)
		}
	}
}

func TestRampSingleSample(t *testing.T) {
	ramp := Ramp(1, 65535, 0.5, 100)
	if len(ramp) != 1 {
		t.Fatalf("expected single-sample ramp")
	}
}

func TestDiagCTMOffDiagonalZero(t *testing.T) {
	ctm := DiagCTM(State{TempK: 4000, GammaPct: 80})
	offDiag := []int{1, 2, 3, 5, 6, 7}
	for _, i := range offDiag {
		if ctm[i] != 0 {
			t.Errorf("CTM[%d] = %v, want 0", i, ctm[i])
		}
	}
}
