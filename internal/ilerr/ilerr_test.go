package ilerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels_AreDistinguishableViaErrorsIs(t *testing.T) {
	wrapped := fmt.Errorf("decoding channel 3: %w", BadFrame)
	assert.ErrorIs(t, wrapped, BadFrame)
	assert.False(t, errors.Is(wrapped, PeerClosed))
}
