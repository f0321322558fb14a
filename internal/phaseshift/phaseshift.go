// Package phaseshift implements the atomic immutable-vector cell
// described in spec.md §5 for the controller's phase-shift vector:
// written only by the controller-ingress task, read only by the
// worker, published via atomic pointer swap so the writer never
// mutates a vector the worker might be reading.
package phaseshift

import "sync/atomic"

// Cell holds the current phase-shift vector.
type Cell struct {
	ptr atomic.Pointer[[]float64]
}

// NewCell constructs a Cell initialized to the all-zero vector of
// length channelAmount.
func NewCell(channelAmount int) *Cell {
	c := &Cell{}
	c.Reset(channelAmount)
	return c
}

// Store atomically publishes v as the current vector. v must not be
// mutated by the caller afterward.
func (c *Cell) Store(v []float64) {
	c.ptr.Store(&v)
}

// Load returns the currently published vector. Callers must treat it
// as read-only.
func (c *Cell) Load() []float64 {
	p := c.ptr.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Reset publishes the all-zero vector of length channelAmount, per
// spec.md §4.7's controller-disconnect behavior.
func (c *Cell) Reset(channelAmount int) {
	c.Store(make([]float64, channelAmount))
}
