package iq

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Modulus returns |z|.
func Modulus(z Sample) float64 {
	return math.Hypot(real(z), imag(z))
}

// Argument returns the principal argument of z, in (-pi, pi].
func Argument(z Sample) float64 {
	return math.Atan2(imag(z), real(z))
}

// Moduli fills dst with the modulus of each sample in src. dst and src
// may overlap only if dst == nil, in which case a new slice is
// allocated. Returns dst.
func Moduli(dst []float64, src []Sample) []float64 {
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, z := range src {
		dst[i] = Modulus(z)
	}
	return dst
}

// Median returns the median of values. It sorts a copy allocated on
// every call, leaving values unchanged. For an even count it returns
// the lower of the two middle values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	scratch := append([]float64(nil), values...)
	sort.Float64s(scratch)
	return stat.Quantile(0.5, stat.Empirical, scratch, nil)
}

// WrapPhase normalizes an angle into (-pi, pi].
func WrapPhase(phase float64) float64 {
	wrapped := math.Mod(phase+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// MedianPhaseDelta computes the median of (refPhase[k] - chPhase[k])
// for k in [0, min(len(refPhase), len(chPhase))), wrapped into
// (-pi, pi]. Used to estimate a channel's phase offset from the
// reference.
func MedianPhaseDelta(refPhase, chPhase []float64) float64 {
	n := len(refPhase)
	if len(chPhase) < n {
		n = len(chPhase)
	}
	if n == 0 {
		return 0
	}
	diffs := make([]float64, n)
	for i := 0; i < n; i++ {
		diffs[i] = refPhase[i] - chPhase[i]
	}
	return WrapPhase(Median(diffs))
}

// Compensate applies amplitude leveling and phase rotation to z:
// g*z*e^(j*phi), computed in the polar domain so the result is
// bit-equivalent to the vectorized (modulus, argument) form used on
// the combiner's hot path.
func Compensate(z Sample, level, phase float64) Sample {
	r := Modulus(z) * level
	p := Argument(z) + phase
	return complex(r*math.Cos(p), r*math.Sin(p))
}

// CompensateInto applies Compensate elementwise to src and
// accumulates the result into dst (dst[i] += compensate(src[i], ...)).
// len(dst) must be >= len(src). Allocation-free.
func CompensateInto(dst []Sample, src []Sample, level, phase float64) {
	for i, z := range src {
		dst[i] += Compensate(z, level, phase)
	}
}
