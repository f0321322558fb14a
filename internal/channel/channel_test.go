package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/ilserver/internal/iq"
)

const threshold = 1000.0

func flat(n int, amp float64) []iq.Sample {
	out := make([]iq.Sample, n)
	for i := range out {
		out[i] = complex(amp, 0)
	}
	return out
}

func TestNew_ReferenceIsPreSynchronised(t *testing.T) {
	ref := New(0)
	assert.Equal(t, Reference, ref.Kind)
	assert.True(t, ref.Synchronised)
	assert.Equal(t, 1.0, ref.Level)
	assert.Equal(t, 0.0, ref.PhaseDelta)
}

func TestNew_AuxiliaryStartsUnsynchronised(t *testing.T) {
	aux := New(1)
	assert.Equal(t, Auxiliary, aux.Kind)
	assert.False(t, aux.Synchronised)
}

func TestFindStart_LocatesMaxAboveThreshold(t *testing.T) {
	ch := New(1)
	samples := append(flat(5, 10), complex(2000, 0))
	samples = append(samples, flat(3, 10)...)
	ch.Put(samples)

	ch.FindStart(threshold)

	require.True(t, ch.StartFound)
	assert.Equal(t, 5, ch.StartAt)
}

func TestFindStart_IsIdempotent(t *testing.T) {
	ch := New(1)
	ch.Put(append(flat(2, 10), complex(2000, 0)))
	ch.FindStart(threshold)
	require.True(t, ch.StartFound)
	at := ch.StartAt

	ch.Put([]iq.Sample{complex(5000, 0)})
	ch.FindStart(threshold)

	assert.Equal(t, at, ch.StartAt, "second FindStart call must not move the onset once found")
}

func TestFindStart_NoneAboveThresholdLeavesUnfound(t *testing.T) {
	ch := New(1)
	ch.Put(flat(10, 10))
	ch.FindStart(threshold)
	assert.False(t, ch.StartFound)
}

func TestDropPrefix(t *testing.T) {
	ch := New(1)
	ch.Put([]iq.Sample{1, 2, 3, 4, 5})
	ch.DropPrefix(2)
	assert.Equal(t, []iq.Sample{3, 4, 5}, ch.Buffer)
}

func TestProcessReferenceBatch_ClearsStartOnCarrierLoss(t *testing.T) {
	ref := New(0)
	ref.Kind = Reference

	onset := append(flat(2, 10), complex(2000, 0))
	ProcessReferenceBatch(ref, onset, threshold)
	require.True(t, ref.StartFound)

	ProcessReferenceBatch(ref, flat(10, 10), threshold)
	assert.False(t, ref.StartFound, "mean modulus well below threshold/2 must clear the onset")
}

func TestProcessAuxiliaryBatch_LocksOnceBothCarriersPresent(t *testing.T) {
	ref := New(0)
	aux := New(1)

	refOnset := append(flat(3, 10), complex(2000, 0))
	ProcessReferenceBatch(ref, refOnset, threshold)
	require.True(t, ref.StartFound)

	auxOnset := append(flat(3, 10), complex(2000, 0))
	ProcessAuxiliaryBatch(aux, ref, auxOnset, threshold)

	require.True(t, aux.Synchronised)
	assert.InDelta(t, 1.0, aux.Level, 1e-9)
	assert.InDelta(t, 0.0, aux.PhaseDelta, 1e-9)
	assert.Equal(t, 0, aux.Offset)
}

func TestProcessAuxiliaryBatch_PositiveOffsetDropsFromNextBatch(t *testing.T) {
	aux := New(1)
	aux.Synchronised = true
	aux.Offset = 2

	ProcessAuxiliaryBatch(aux, nil, []iq.Sample{1, 2, 3, 4}, threshold)

	assert.Equal(t, []iq.Sample{3, 4}, aux.Buffer)
	assert.Equal(t, 0, aux.Offset, "offset must be consumed exactly once")
}

func TestProcessAuxiliaryBatch_NegativeOffsetPrependsZeros(t *testing.T) {
	aux := New(1)
	aux.Synchronised = true
	aux.Offset = -2

	ProcessAuxiliaryBatch(aux, nil, []iq.Sample{1, 2}, threshold)

	assert.Equal(t, []iq.Sample{0, 0, 1, 2}, aux.Buffer)
}

func TestProcessAuxiliaryBatch_PositiveOffsetClampedToBatchLength(t *testing.T) {
	aux := New(1)
	aux.Synchronised = true
	aux.Offset = 10

	ProcessAuxiliaryBatch(aux, nil, []iq.Sample{1, 2}, threshold)

	assert.Empty(t, aux.Buffer)
}
