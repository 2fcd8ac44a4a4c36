package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	assert.Equal(t, 2500.0, Round(2500))
	assert.Equal(t, 0.13, Round(0.125))
	assert.Equal(t, 12.35, Round(12.349999999))
	assert.Equal(t, -0.13, Round(-0.125))
	assert.Equal(t, 0.0, Round(math.NaN()))
	assert.Equal(t, 0.0, Round(math.Inf(1)))
}

func TestWholeAndRound4(t *testing.T) {
	assert.Equal(t, 45000.0, Whole(44999.6))
	assert.Equal(t, 0.0136, Round4(3000.0/220000.0))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(8000, 8000.004))
	assert.False(t, Equal(8000, 8000.01))
}
