// Package colormath implements sunsetr's color pipeline: easing,
// temperature/gamma interpolation, temperature-to-RGB white point, and
// the two on-wire representations (gamma ramps and CTM matrices) spec
// §4.D requires.
package colormath

import "math"

// State is a ColorState: a Kelvin temperature and a gamma percentage.
// Equality is defined to the nearest integer Kelvin and 0.01% gamma,
// per spec §3, rather than exact float equality.
type State struct {
	TempK    int
	GammaPct float64
}

// Equal implements spec §3's ColorState equality rule.
func (s State) Equal(other State) bool {
	if s.TempK != other.TempK {
		return false
	}
	return math.Abs(s.GammaPct-other.GammaPct) < 0.005
}

// bezierX1, bezierY1, bezierX2, bezierY2 are the fixed control points
// of the cubic Bézier easing curve spec §4.D calls for. These match a
// standard "ease-in-out" shape.
const (
	bezierX1, bezierY1 = 0.42, 0.0
	bezierX2, bezierY2 = 0.58, 1.0
)

// Ease maps a linear progress value in [0, 1] to an eased weight in
// [0, 1] along the fixed cubic Bézier curve. It solves for the curve
// parameter t such that bezierX(t) == progress (via bisection, since
// the curve is not analytically invertible), then evaluates bezierY(t).
func Ease(progress float64) float64 {
	if progress <= 0 {
		return 0
	}
	if progress >= 1 {
		return 1
	}

	lo, hi := 0.0, 1.0
	var t float64
	for i := 0; i < 40; i++ {
		t = (lo + hi) / 2
		x := bezierComponent(t, bezierX1, bezierX2)
		if x < progress {
			lo = t
		} else {
			hi = t
		}
	}
	return bezierComponent(t, bezierY1, bezierY2)
}

// bezierComponent evaluates one axis of a cubic Bézier with endpoints
// fixed at 0 and 1 and control points p1, p2 at parameter t.
func bezierComponent(t, p1, p2 float64) float64 {
	u := 1 - t
	return 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t
}

// Blend computes the ColorState at weight w (already eased, in [0,1])
// between a and b: temp rounds to the nearest integer Kelvin, gamma
// stays real, per spec §4.D.
func Blend(a, b State, w float64) State {
	temp := float64(a.TempK) + (float64(b.TempK-a.TempK))*w
	gamma := a.GammaPct + (b.GammaPct-a.GammaPct)*w
	return State{
		TempK:    int(math.Round(temp)),
		GammaPct: gamma,
	}
}

// RGB is a white-point weight triple in [0, 1], one component per
// channel, normalized so that 6500 K maps to (1, 1, 1).
type RGB struct {
	R, G, B float64
}

// whitePointTable is a piecewise linear fit to black-body chromaticity,
// sampled from 1000 K to 20000 K (the full range ColorState.TempK
// allows): every 1000 K up to 8000 K plus 6500 K, then 10000, 12000,
// 15000 and 20000 K. TempToRGB divides by the 6500 K row so
// TempToRGB(6500) == RGB{1,1,1}.
var whitePointTable = []struct {
	k       int
	r, g, b float64
}{
	{1000, 1.000, 0.373, 0.064},
	{2000, 1.000, 0.565, 0.199},
	{3000, 1.000, 0.710, 0.396},
	{4000, 1.000, 0.809, 0.603},
	{5000, 1.000, 0.879, 0.780},
	{6000, 1.000, 0.930, 0.920},
	{6500, 1.000, 0.953, 0.977},
	{7000, 0.968, 0.960, 1.000},
	{8000, 0.894, 0.935, 1.000},
	{10000, 0.782, 0.875, 1.000},
	{12000, 0.704, 0.823, 1.000},
	{15000, 0.625, 0.763, 1.000},
	{20000, 0.547, 0.704, 1.000},
}

// TempToRGB converts a Kelvin temperature to a normalized white-point
// weight via linear interpolation over whitePointTable, clamped to the
// table's domain, then divided by the 6500 K row with each channel
// capped at 1. Rows below 6500 K scale down blue; rows above scale
// down red, the conventional candle-to-daylight black-body curve.
func TempToRGB(tempK int) RGB {
	ref := whitePointTable[6] // the 6500 K row
	norm := func(r, g, b float64) RGB {
		return RGB{R: math.Min(r/ref.r, 1), G: math.Min(g/ref.g, 1), B: math.Min(b/ref.b, 1)}
	}
	t := float64(tempK)
	if t <= float64(whitePointTable[0].k) {
		row := whitePointTable[0]
		return norm(row.r, row.g, row.b)
	}
	last := whitePointTable[len(whitePointTable)-1]
	if t >= float64(last.k) {
		return norm(last.r, last.g, last.b)
	}

	for i := 1; i < len(whitePointTable); i++ {
		hi := whitePointTable[i]
		if t <= float64(hi.k) {
			lo := whitePointTable[i-1]
			frac := (t - float64(lo.k)) / float64(hi.k-lo.k)
			return norm(
				lerp(lo.r, hi.r, frac),
				lerp(lo.g, hi.g, frac),
				lerp(lo.b, hi.b, frac),
			)
		}
	}
	return norm(last.r, last.g, last.b)
}

func lerp(a, b, frac float64) float64 { return a + (b-a)*frac }

// Ramp generates a single-channel gamma ramp of size n for a backend
// with per-sample scale m (e.g. 65535 for 16-bit), given the channel's
// white-point weight and the gamma percentage to apply as a per-channel
// multiplier, per spec §4.D.
func Ramp(n, m int, weight float64, gammaPct float64) []uint16 {
	ramp := make([]uint16, n)
	if n == 1 {
		ramp[0] = clampRamp(weight*(gammaPct/100)*float64(m), m)
		return ramp
	}
	scale := weight * (gammaPct / 100)
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n-1)
		ramp[i] = clampRamp(frac*scale*float64(m), m)
	}
	return ramp
}

func clampRamp(v float64, m int) uint16 {
	rounded := math.Round(v)
	if rounded < 0 {
		return 0
	}
	if rounded > float64(m) {
		return uint16(m)
	}
	return uint16(rounded)
}

// Ramps generates the three-channel (R, G, B) ramp set for a ColorState
// against a backend of ramp size n and per-sample scale m.
func Ramps(state State, n, m int) (r, g, b []uint16) {
	wp := TempToRGB(state.TempK)
	return Ramp(n, m, wp.R, state.GammaPct),
		Ramp(n, m, wp.G, state.GammaPct),
		Ramp(n, m, wp.B, state.GammaPct)
}

// CTM is a 3x3 color transform matrix, row-major, as the
// hyprland-ctm-control-v1 protocol expects it.
type CTM [9]float64

// DiagCTM builds the diagonal CTM spec §4.D describes for CTM-backed
// outputs: off-diagonal entries are zero, diagonal is the white-point
// weight scaled by the gamma percentage.
func DiagCTM(state State) CTM {
	wp := TempToRGB(state.TempK)
	g := state.GammaPct / 100
	return CTM{
		wp.R * g, 0, 0,
		0, wp.G * g, 0,
		0, 0, wp.B * g,
	}
}
