package netio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/ilserver/internal/ilerr"
)

func TestReadFrame_RoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	wire := EncodeChannelFrame(payload, true)

	r := NewChannelFrameReader(bytes.NewReader(wire), 0)
	frame, err := r.ReadFrame()

	require.NoError(t, err)
	assert.True(t, frame.Saturation)
	assert.Equal(t, payload, frame.Payload)
}

func TestReadFrame_RejectsLengthNotMultipleOfFour(t *testing.T) {
	wire := EncodeChannelFrame([]byte{1, 2, 3}, false)
	// EncodeChannelFrame doesn't validate; craft a bad header directly.
	wire[0] = 3 // length = 3, not a multiple of 4

	r := NewChannelFrameReader(bytes.NewReader(wire), 0)
	_, err := r.ReadFrame()

	assert.ErrorIs(t, err, ilerr.BadFrame)
}

func TestReadFrame_CleanEOFBeforeHeaderIsPeerClosed(t *testing.T) {
	r := NewChannelFrameReader(bytes.NewReader(nil), 0)
	_, err := r.ReadFrame()

	assert.True(t, errors.Is(err, ilerr.PeerClosed))
}

func TestReadFrame_MultipleFramesInSequence(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(EncodeChannelFrame([]byte{1, 2, 3, 4}, false))
	buf.Write(EncodeChannelFrame([]byte{5, 6, 7, 8}, true))

	r := NewChannelFrameReader(&buf, 0)

	first, err := r.ReadFrame()
	require.NoError(t, err)
	assert.False(t, first.Saturation)

	second, err := r.ReadFrame()
	require.NoError(t, err)
	assert.True(t, second.Saturation)
}
