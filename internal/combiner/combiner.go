// Package combiner implements spec.md §4.5: once every channel has
// produced enough aligned samples, sum the compensated channels
// (optionally under externally commanded extra phase shifts) into
// fixed-size output packets.
package combiner

import (
	"github.com/cwsl/ilserver/internal/channel"
	"github.com/cwsl/ilserver/internal/iq"
)

// Packet is one coherently-summed output batch, ready to be framed by
// the controller egress driver.
type Packet struct {
	Samples      []iq.Sample
	BeamCount    int
	ShiftChanged bool
}

// Combiner tracks the phase-shift snapshot used by the previous
// emitted packet, so it can compute the shift_changed flag.
type Combiner struct {
	channelAmount int
	packetSize    int
	prevShift     []float64
	sumScratch    []iq.Sample
}

// New constructs a Combiner for a fixed channel count and packet
// size. The initial "previous shift" is the all-zero vector of length
// channelAmount, per spec.md §8 property 6.
func New(channelAmount, packetSize int) *Combiner {
	return &Combiner{
		channelAmount: channelAmount,
		packetSize:    packetSize,
		prevShift:     make([]float64, channelAmount),
	}
}

// Tick is invoked on every reference batch, after the reference
// channel has already been updated. chs must be indexed by channel
// id (chs[0] is the reference); a nil or unsynchronised entry forces
// N (and therefore K) to 0, so no packet is produced until every
// channel has locked. shift is the controller's current phase-shift
// vector snapshot (length channelAmount*M); the combiner does not
// retain a reference to it beyond this call.
func (c *Combiner) Tick(chs []*channel.Channel, shift []float64) []Packet {
	if len(shift) == 0 {
		shift = make([]float64, c.channelAmount)
	}

	n := c.minSyncedLen(chs)
	k := n / c.packetSize
	if k == 0 {
		return nil
	}

	beams := c.beamCount(shift)
	packets := make([]Packet, 0, k)

	for i := 0; i < k; i++ {
		snapshot := append([]float64(nil), shift...)

		out := make([]iq.Sample, beams*c.packetSize)
		for b := 0; b < beams; b++ {
			sumB := out[b*c.packetSize : (b+1)*c.packetSize]
			for j, ch := range chs {
				if ch == nil {
					continue
				}
				first := ch.Buffer[:c.packetSize]
				phase := ch.PhaseDelta + snapshot[b*c.channelAmount+j]
				iq.CompensateInto(sumB, first, ch.Level, phase)
			}
		}

		for _, ch := range chs {
			if ch != nil {
				ch.DropPrefix(c.packetSize)
			}
		}

		changed := !equalShift(snapshot, c.prevShift)
		c.prevShift = snapshot

		packets = append(packets, Packet{
			Samples:      out,
			BeamCount:    beams,
			ShiftChanged: changed,
		})
	}

	return packets
}

func (c *Combiner) minSyncedLen(chs []*channel.Channel) int {
	n := -1
	for _, ch := range chs {
		l := 0
		if ch != nil && ch.Synchronised {
			l = ch.Len()
		}
		if n == -1 || l < n {
			n = l
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

func (c *Combiner) beamCount(shift []float64) int {
	if c.channelAmount == 0 || len(shift)%c.channelAmount != 0 {
		return 1
	}
	m := len(shift) / c.channelAmount
	if m < 1 {
		return 1
	}
	return m
}

func equalShift(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
