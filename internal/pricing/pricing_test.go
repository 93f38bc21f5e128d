package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalPayout(t *testing.T) {
	c := New(1000) // 10%
	payout, fee := c.NormalPayout(10000)
	assert.Equal(t, int64(9000), payout)
	assert.Equal(t, int64(1000), fee)
}

func TestLateCancellationSplitIsFiftyFifty(t *testing.T) {
	c := New(1000)
	payout, retained := c.LateCancellationSplit(10000)
	assert.Equal(t, int64(5000), payout)
	assert.Equal(t, int64(5000), retained)
	assert.Equal(t, int64(10000), payout+retained)
}

func TestLateCancellationSplitOddCents(t *testing.T) {
	c := New(1000)
	payout, retained := c.LateCancellationSplit(10001)
	assert.Equal(t, payout+retained, int64(10001))
}
