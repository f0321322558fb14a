package netio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/cwsl/ilserver/internal/ilerr"
	"github.com/cwsl/ilserver/internal/iq"
)

// WriteChannelAmount writes the one-byte channel-count handshake the
// controller expects immediately on connect.
func WriteChannelAmount(w io.Writer, channelAmount int) error {
	_, err := w.Write([]byte{byte(channelAmount)})
	return err
}

// ControllerFrameReader reads the controller's repeated
// (uint32 M, M*channelAmount float64) phase-shift vectors.
type ControllerFrameReader struct {
	r             *bufio.Reader
	channelAmount int
}

// NewControllerFrameReader wraps r, buffering in maxRecv-sized chunks.
func NewControllerFrameReader(r io.Reader, channelAmount, maxRecv int) *ControllerFrameReader {
	if maxRecv < 1 {
		maxRecv = 4096
	}
	return &ControllerFrameReader{
		r:             bufio.NewReaderSize(r, maxRecv),
		channelAmount: channelAmount,
	}
}

// ReadPhaseVector reads one phase-shift vector. A clean EOF returns
// ilerr.PeerClosed. A zero beam count or a short read returns
// ilerr.ControllerProtocolError.
func (c *ControllerFrameReader) ReadPhaseVector() ([]float64, error) {
	var mBuf [4]byte
	if _, err := io.ReadFull(c.r, mBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ilerr.PeerClosed
		}
		return nil, err
	}

	m := binary.LittleEndian.Uint32(mBuf[:])
	if m == 0 {
		return nil, ilerr.ControllerProtocolError
	}

	n := int(m) * c.channelAmount
	raw := make([]byte, n*8)
	if _, err := io.ReadFull(c.r, raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ilerr.ControllerProtocolError
		}
		return nil, err
	}

	vec := make([]float64, n)
	for i := range vec {
		bits := binary.LittleEndian.Uint64(raw[i*8:])
		vec[i] = math.Float64frombits(bits)
	}
	return vec, nil
}

// EncodePacket frames a combiner output packet as
// <uint32 count><uint8 shift_changed><interleaved float64 I,Q>.
func EncodePacket(samples []iq.Sample, shiftChanged bool) []byte {
	count := len(samples)
	buf := make([]byte, 4+1+count*16)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(count))
	if shiftChanged {
		buf[4] = 1
	}

	off := 5
	for _, z := range samples {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(real(z)))
		binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(imag(z)))
		off += 16
	}
	return buf
}

// EncodePhaseVector builds the wire bytes a controller client would
// send for send_phase_shifts: <uint32 M><M*channelAmount float64_le>.
// Used by tests exercising the controller protocol end-to-end.
func EncodePhaseVector(channelAmount int, vec []float64) []byte {
	m := 0
	if channelAmount > 0 {
		m = len(vec) / channelAmount
	}
	buf := make([]byte, 4+len(vec)*8)
	binary.LittleEndian.PutUint32(buf[:4], uint32(m))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[4+i*8:], math.Float64bits(v))
	}
	return buf
}
