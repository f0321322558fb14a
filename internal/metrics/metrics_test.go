package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveChannel_SetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveChannel(ChannelSnapshot{
		ID:           1,
		Synchronised: true,
		Level:        2.5,
		PhaseDelta:   0.3,
		StartAt:      10,
		BufferLen:    20,
	})

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.channelSynchronised.WithLabelValues("1")), 1e-9)
	assert.InDelta(t, 2.5, testutil.ToFloat64(m.channelLevel.WithLabelValues("1")), 1e-9)
}

func TestRecordSaturation_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordSaturation(2)
	m.RecordSaturation(2)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.saturationWarnings.WithLabelValues("2")), 1e-9)
}

func TestRecordPacket_TracksShiftChanges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordPacket(false)
	m.RecordPacket(true)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.packetsEmitted), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.shiftChanges), 1e-9)
}
