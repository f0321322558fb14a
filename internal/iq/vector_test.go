package iq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModulusArgument(t *testing.T) {
	z := complex(3.0, 4.0)
	assert.InDelta(t, 5.0, Modulus(z), 1e-9)
	assert.InDelta(t, math.Atan2(4, 3), Argument(z), 1e-9)
}

func TestMedian_Odd(t *testing.T) {
	assert.InDelta(t, 3.0, Median([]float64{5, 1, 3, 2, 4}), 1e-9)
}

func TestMedian_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
}

func TestWrapPhase_StaysInRange(t *testing.T) {
	for _, p := range []float64{0, math.Pi, -math.Pi, 3 * math.Pi, -3 * math.Pi, 2 * math.Pi} {
		w := WrapPhase(p)
		assert.True(t, w > -math.Pi-1e-9 && w <= math.Pi+1e-9, "wrapped phase %v out of range", w)
	}
}

func TestMedianPhaseDelta_ConstantOffset(t *testing.T) {
	ref := []float64{0.1, 0.2, 0.3, 0.4}
	ch := []float64{0.1 - 0.5, 0.2 - 0.5, 0.3 - 0.5, 0.4 - 0.5}
	delta := MedianPhaseDelta(ref, ch)
	assert.InDelta(t, 0.5, delta, 1e-9)
}

func TestMedianPhaseDelta_UnequalLengthsUsesShorter(t *testing.T) {
	ref := []float64{0.1, 0.2, 0.3}
	ch := []float64{0.1, 0.2}
	delta := MedianPhaseDelta(ref, ch)
	assert.InDelta(t, 0.0, delta, 1e-9)
}

func TestCompensate_AmplitudeAndPhase(t *testing.T) {
	z := complex(1.0, 0.0)
	out := Compensate(z, 2.0, math.Pi/2)
	assert.InDelta(t, 0.0, real(out), 1e-9)
	assert.InDelta(t, 2.0, imag(out), 1e-9)
}

func TestCompensateInto_Accumulates(t *testing.T) {
	dst := make([]Sample, 2)
	src := []Sample{complex(1, 0), complex(0, 1)}
	CompensateInto(dst, src, 1, 0)
	CompensateInto(dst, src, 1, 0)
	assert.InDelta(t, 2.0, real(dst[0]), 1e-9)
	assert.InDelta(t, 2.0, imag(dst[1]), 1e-9)
}
