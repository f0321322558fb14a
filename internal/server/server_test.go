package server

import (
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/ilserver/internal/config"
	"github.com/cwsl/ilserver/internal/iq"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	cfg := &config.Config{
		Server: config.Server{
			ChannelAmount:    2,
			PacketSize:       2,
			CarrierThreshold: 1000,
			MaxRecv:          4096,
			WorkerQueueSize:  8,
		},
	}
	return New(cfg, log.New(logDiscard{}, "", 0))
}

type logDiscard struct{}

func (logDiscard) Write(p []byte) (int, error) { return len(p), nil }

func flatBatch(n int, amp float64) []iq.Sample {
	out := make([]iq.Sample, n)
	for i := range out {
		out[i] = complex(amp, 0)
	}
	return out
}

func TestProcessBatch_LocksAuxiliaryAndProducesPacket(t *testing.T) {
	s := testContext(t)

	ref, ok := s.Registry.Acquire(0)
	require.True(t, ok)
	aux, ok := s.Registry.Acquire(1)
	require.True(t, ok)

	onset := append(flatBatch(2, 10), complex(2000, 0))
	s.processBatch(ref, onset)
	s.processBatch(aux, onset)

	assert.True(t, aux.Synchronised)
	// One packet of PacketSize 2 was emitted from the 3 buffered samples.
	assert.Equal(t, 1, ref.Len())
	assert.Equal(t, 1, aux.Len())
}

func TestDenseChannels_IndexedByID(t *testing.T) {
	s := testContext(t)
	s.Registry.Acquire(0)
	s.Registry.Acquire(1)

	chs := s.denseChannels()

	require.Len(t, chs, 2)
	assert.Equal(t, 0, chs[0].ID)
	assert.Equal(t, 1, chs[1].ID)
}

func TestBroadcastPacket_NoControllersIsNoop(t *testing.T) {
	s := testContext(t)
	assert.NotPanics(t, func() {
		s.broadcastPacket([]iq.Sample{complex(1, 0)}, false)
	})
}

func TestStatusSnapshot_OmitsUnregisteredChannels(t *testing.T) {
	s := testContext(t)
	s.Registry.Acquire(0)
	s.publishState()

	snap := s.statusSnapshot()

	require.Len(t, snap, 1)
	assert.Equal(t, 0, snap[0].ID)
}

func TestStatusSnapshot_EmptyBeforeFirstPublish(t *testing.T) {
	s := testContext(t)
	s.Registry.Acquire(0)

	assert.Empty(t, s.statusSnapshot())
}

func TestProcessBatch_PublishesStateForStatusSnapshot(t *testing.T) {
	s := testContext(t)
	ref, ok := s.Registry.Acquire(0)
	require.True(t, ok)

	s.processBatch(ref, flatBatch(2, 10))

	snap := s.statusSnapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 0, snap[0].ID)
}
