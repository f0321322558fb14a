package phaseshift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCell_StartsAtZero(t *testing.T) {
	c := NewCell(3)
	assert.Equal(t, []float64{0, 0, 0}, c.Load())
}

func TestStoreLoad_RoundTrip(t *testing.T) {
	c := NewCell(2)
	c.Store([]float64{1.5, -2.5})
	assert.Equal(t, []float64{1.5, -2.5}, c.Load())
}

func TestReset_RestoresZeroVector(t *testing.T) {
	c := NewCell(2)
	c.Store([]float64{1, 2})
	c.Reset(2)
	assert.Equal(t, []float64{0, 0}, c.Load())
}
