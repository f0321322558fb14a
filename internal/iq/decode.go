// Package iq decodes raw little-endian int16 IQ frames into complex
// samples and provides the vector math the synchronizer and combiner
// need on the hot path: modulus, argument, median and phase
// compensation.
package iq

import (
	"encoding/binary"

	"github.com/cwsl/ilserver/internal/ilerr"
)

// Sample is a single baseband IQ sample, real = I, imag = Q.
type Sample = complex128

// Decode converts a tightly packed little-endian sequence of signed
// 16-bit I,Q,I,Q,... values into complex samples. len(raw) must be a
// positive multiple of 4.
func Decode(raw []byte) ([]Sample, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, ilerr.BadFrame
	}

	out := make([]Sample, len(raw)/4)
	for i := range out {
		off := i * 4
		iVal := int16(binary.LittleEndian.Uint16(raw[off:]))
		qVal := int16(binary.LittleEndian.Uint16(raw[off+2:]))
		out[i] = complex(float64(iVal), float64(qVal))
	}
	return out, nil
}
