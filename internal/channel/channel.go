// Package channel implements the per-channel synchronization state
// machine: carrier onset detection, amplitude/phase estimation
// relative to a reference channel, and the offset bookkeeping that
// keeps an auxiliary channel's stream time-aligned with it.
//
// Every method here is documented as safe to call only from the
// server's single worker goroutine (see internal/worker) — there is
// no internal locking, by design: ordering and mutual exclusion are
// guaranteed by construction, not by a mutex.
package channel

import (
	"github.com/cwsl/ilserver/internal/iq"
)

// Kind discriminates the Reference channel (id 0) from every
// Auxiliary channel.
type Kind int

const (
	Auxiliary Kind = iota
	Reference
)

// Channel holds one channel's accumulation buffer and synchronization
// parameters. The zero value is not useful; construct with New.
type Channel struct {
	ID   int
	Kind Kind

	Buffer []iq.Sample

	StartFound bool
	StartAt    int
	Median     float64

	Synchronised bool
	Level        float64
	PhaseDelta   float64
	Offset       int

	scratch []float64 // reusable modulus scratch, never shared across channels
}

// New constructs a Channel for the given id. id 0 is always the
// Reference channel; every other id is Auxiliary.
func New(id int) *Channel {
	c := &Channel{ID: id}
	if id == 0 {
		c.Kind = Reference
		c.Synchronised = true
		c.Level = 1
		c.PhaseDelta = 0
		c.Offset = 0
	} else {
		c.Kind = Auxiliary
	}
	return c
}

// Len reports the number of complex samples currently buffered.
func (c *Channel) Len() int { return len(c.Buffer) }

// Put appends samples to the buffer.
func (c *Channel) Put(samples []iq.Sample) {
	c.Buffer = append(c.Buffer, samples...)
}

// LastModulus returns |buffer[last]|. Callers must not call this on an
// empty buffer.
func (c *Channel) LastModulus() float64 {
	return iq.Modulus(c.Buffer[len(c.Buffer)-1])
}

// DropPrefix removes the first n samples from the buffer, preserving
// the remaining order. Used by the combiner after emitting a packet.
func (c *Channel) DropPrefix(n int) {
	copy(c.Buffer, c.Buffer[n:])
	c.Buffer = c.Buffer[:len(c.Buffer)-n]
}

// FindStart scans the buffer for the sample with maximum modulus that
// also exceeds threshold, and if one exists, records it as the
// carrier onset (start_found/start_at/median). It is idempotent: once
// start_found is true, calling it again is a no-op. Ties are broken by
// earliest index.
func (c *Channel) FindStart(threshold float64) {
	if c.StartFound {
		return
	}

	found := false
	at := 0
	best := 0.0
	for i, z := range c.Buffer {
		m := iq.Modulus(z)
		if m > threshold && m > best {
			found = true
			at = i
			best = m
		}
	}

	if !found {
		return
	}

	c.StartFound = true
	c.StartAt = at
	c.updateMedian()
}

// ClearStart resets onset detection so the next FindStart call can
// re-evaluate the buffer. Used only on the reference channel when the
// carrier is judged to have dropped (see ProcessReferenceBatch).
func (c *Channel) ClearStart() {
	c.StartFound = false
}

// GetIndexToSync returns the current Offset and resets it to 0. It
// must be consumed exactly once by the first post-lock ingress.
func (c *Channel) GetIndexToSync() int {
	offset := c.Offset
	c.Offset = 0
	return offset
}

func (c *Channel) updateMedian() {
	c.scratch = iq.Moduli(c.scratch, c.Buffer[c.StartAt:])
	c.Median = iq.Median(c.scratch)
}

// TailArguments returns the principal arguments of buffer[StartAt:].
func (c *Channel) TailArguments() []float64 {
	tail := c.Buffer[c.StartAt:]
	out := make([]float64, len(tail))
	for i, z := range tail {
		out[i] = iq.Argument(z)
	}
	return out
}

// ProcessAuxiliaryBatch implements spec.md §4.3/§4.6 for an Auxiliary
// channel: accumulate and attempt to lock while unsynchronised;
// once locked, apply the pending offset exactly once and stream
// straight through.
func ProcessAuxiliaryBatch(aux, ref *Channel, samples []iq.Sample, threshold float64) {
	if aux.Kind != Auxiliary {
		panic("channel: ProcessAuxiliaryBatch called on non-auxiliary channel")
	}

	if !aux.Synchronised {
		aux.Put(samples)

		if ref != nil && ref.Len() > 0 && ref.StartFound {
			tryLock(aux, ref, threshold)
		}
		return
	}

	offset := aux.GetIndexToSync()
	switch {
	case offset > 0:
		if offset > len(samples) {
			offset = len(samples)
		}
		aux.Put(samples[offset:])
	case offset < 0:
		aux.Buffer = append(aux.Buffer, make([]iq.Sample, -offset)...)
		aux.Put(samples)
	default:
		aux.Put(samples)
	}
}

// tryLock implements spec.md §4.3 steps 1-6.
func tryLock(aux, ref *Channel, threshold float64) {
	if aux.LastModulus() <= threshold || ref.LastModulus() <= threshold {
		return
	}

	aux.FindStart(threshold)
	if !aux.StartFound {
		return
	}

	refArgs := ref.TailArguments()
	auxArgs := aux.TailArguments()

	aux.PhaseDelta = iq.MedianPhaseDelta(refArgs, auxArgs)
	aux.Level = ref.Median / aux.Median
	aux.Offset = ref.StartAt - aux.StartAt
	aux.Synchronised = true
}

// ProcessReferenceBatch implements spec.md §4.4: append, then either
// run onset detection (if not yet found) or re-check carrier liveness
// (if already found) using the mean modulus of the incoming batch.
func ProcessReferenceBatch(ref *Channel, samples []iq.Sample, threshold float64) {
	if ref.Kind != Reference {
		panic("channel: ProcessReferenceBatch called on non-reference channel")
	}

	ref.Put(samples)

	if !ref.StartFound {
		ref.FindStart(threshold)
		return
	}

	if meanModulus(samples) < threshold/2 {
		ref.ClearStart()
	}
}

func meanModulus(samples []iq.Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, z := range samples {
		sum += iq.Modulus(z)
	}
	return sum / float64(len(samples))
}
