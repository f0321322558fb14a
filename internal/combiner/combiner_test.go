package combiner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/ilserver/internal/channel"
	"github.com/cwsl/ilserver/internal/iq"
)

func lockedChannel(id int, n int) *channel.Channel {
	ch := channel.New(id)
	ch.Synchronised = true
	ch.Level = 1
	ch.PhaseDelta = 0
	buf := make([]iq.Sample, n)
	for i := range buf {
		buf[i] = complex(float64(i+1), 0)
	}
	ch.Buffer = buf
	return ch
}

func TestTick_WaitsForEveryChannelToLock(t *testing.T) {
	c := New(2, 4)
	ref := lockedChannel(0, 4)
	aux := channel.New(1) // unsynchronised

	packets := c.Tick([]*channel.Channel{ref, aux}, nil)

	assert.Empty(t, packets, "no packet until every channel is synchronised")
}

func TestTick_EmitsOncePacketSizeReached(t *testing.T) {
	c := New(2, 4)
	ref := lockedChannel(0, 4)
	aux := lockedChannel(1, 4)

	packets := c.Tick([]*channel.Channel{ref, aux}, nil)

	require.Len(t, packets, 1)
	assert.Len(t, packets[0].Samples, 4)
	assert.Equal(t, 1, packets[0].BeamCount)
	assert.Empty(t, ref.Buffer)
	assert.Empty(t, aux.Buffer)
}

func TestTick_SumsCompensatedChannels(t *testing.T) {
	c := New(2, 1)
	ref := lockedChannel(0, 1)
	aux := lockedChannel(1, 1)
	aux.Level = 2

	packets := c.Tick([]*channel.Channel{ref, aux}, nil)

	require.Len(t, packets, 1)
	// ref sample is 1+0j (level 1), aux sample is 1+0j scaled by level 2.
	assert.InDelta(t, 3.0, real(packets[0].Samples[0]), 1e-9)
}

func TestTick_EmptyShiftDefaultsToZero(t *testing.T) {
	c := New(2, 1)
	ref := lockedChannel(0, 1)
	aux := lockedChannel(1, 1)

	assert.NotPanics(t, func() {
		c.Tick([]*channel.Channel{ref, aux}, nil)
	})
}

func TestTick_ReportsShiftChangedOnFirstNonZeroShift(t *testing.T) {
	c := New(2, 1)
	ref := lockedChannel(0, 1)
	aux := lockedChannel(1, 1)

	first := c.Tick([]*channel.Channel{ref, aux}, []float64{0, 0})
	require.Len(t, first, 1)
	assert.False(t, first[0].ShiftChanged, "initial all-zero shift matches the zero baseline")

	ref.Put([]iq.Sample{1})
	aux.Put([]iq.Sample{1})
	second := c.Tick([]*channel.Channel{ref, aux}, []float64{0.1, 0.2})
	require.Len(t, second, 1)
	assert.True(t, second[0].ShiftChanged)
}

func TestTick_MultipleBeamsFromShiftVector(t *testing.T) {
	c := New(2, 1)
	ref := lockedChannel(0, 1)
	aux := lockedChannel(1, 1)

	// Two beams: M=2, channelAmount=2 -> 4 entries.
	packets := c.Tick([]*channel.Channel{ref, aux}, []float64{0, 0, 0, 0})

	require.Len(t, packets, 1)
	assert.Equal(t, 2, packets[0].BeamCount)
	assert.Len(t, packets[0].Samples, 2)
}
