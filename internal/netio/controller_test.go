package netio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/ilserver/internal/iq"
)

func TestWriteChannelAmount(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChannelAmount(&buf, 3))
	assert.Equal(t, []byte{3}, buf.Bytes())
}

func TestReadPhaseVector_RoundTrip(t *testing.T) {
	vec := []float64{0.1, 0.2, 0.3, 0.4} // M=2, channelAmount=2
	wire := EncodePhaseVector(2, vec)

	r := NewControllerFrameReader(bytes.NewReader(wire), 2, 0)
	got, err := r.ReadPhaseVector()

	require.NoError(t, err)
	assert.InDeltaSlice(t, vec, got, 1e-12)
}

func TestReadPhaseVector_ZeroBeamCountIsProtocolError(t *testing.T) {
	wire := EncodePhaseVector(2, nil)

	r := NewControllerFrameReader(bytes.NewReader(wire), 2, 0)
	_, err := r.ReadPhaseVector()

	assert.Error(t, err)
}

func TestEncodePacket_HeaderAndLayout(t *testing.T) {
	samples := []iq.Sample{complex(1, 2), complex(3, 4)}
	buf := EncodePacket(samples, true)

	require.Len(t, buf, 4+1+2*16)
	assert.Equal(t, byte(1), buf[4], "shift_changed flag")
}
