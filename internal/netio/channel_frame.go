// Package netio implements the two wire protocols from spec.md §6: the
// per-channel frame reader and the controller's phase-shift/packet
// protocol.
package netio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/cwsl/ilserver/internal/ilerr"
)

// ChannelFrame is one decoded (length, saturation_flag, payload)
// record read from a channel connection.
type ChannelFrame struct {
	Saturation bool
	Payload    []byte
}

// ChannelFrameReader reads framed channel records off a stream,
// buffering reads in chunks no larger than maxRecv (spec.md §6's
// MAX_RECV knob).
type ChannelFrameReader struct {
	r *bufio.Reader
}

// NewChannelFrameReader wraps r with a maxRecv-sized buffer.
func NewChannelFrameReader(r io.Reader, maxRecv int) *ChannelFrameReader {
	if maxRecv < 1 {
		maxRecv = 4096
	}
	return &ChannelFrameReader{r: bufio.NewReaderSize(r, maxRecv)}
}

// ReadFrame reads exactly one frame. An EOF before the full header or
// the full payload has been read returns ilerr.PeerClosed. A length that is not a
// positive multiple of 4 returns ilerr.BadFrame.
func (f *ChannelFrameReader) ReadFrame() (ChannelFrame, error) {
	var header [9]byte
	if _, err := io.ReadFull(f.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ChannelFrame{}, ilerr.PeerClosed
		}
		return ChannelFrame{}, err
	}

	length := binary.LittleEndian.Uint64(header[:8])
	saturation := header[8] != 0

	if length == 0 || length%4 != 0 {
		return ChannelFrame{}, ilerr.BadFrame
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ChannelFrame{}, ilerr.PeerClosed
		}
		return ChannelFrame{}, err
	}

	return ChannelFrame{Saturation: saturation, Payload: payload}, nil
}

// EncodeChannelFrame builds the wire bytes for one channel frame.
// Used by tests to construct fixtures and by any client-side tooling
// that needs to emit this protocol.
func EncodeChannelFrame(payload []byte, saturation bool) []byte {
	buf := make([]byte, 9+len(payload))
	binary.LittleEndian.PutUint64(buf[:8], uint64(len(payload)))
	if saturation {
		buf[8] = 1
	}
	copy(buf[9:], payload)
	return buf
}
