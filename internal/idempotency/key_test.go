package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthKeyIsDeterministic(t *testing.T) {
	a := AuthKey("booking-1", 2)
	b := AuthKey("booking-1", 2)
	assert.Equal(t, a, b)
}

func TestAuthKeyDiffersByAttempt(t *testing.T) {
	a := AuthKey("booking-1", 1)
	b := AuthKey("booking-1", 2)
	assert.NotEqual(t, a, b)
}

func TestAuthKeyDiffersByBooking(t *testing.T) {
	a := AuthKey("booking-1", 1)
	b := AuthKey("booking-2", 1)
	assert.NotEqual(t, a, b)
}

func TestCaptureKeyStableAcrossCalls(t *testing.T) {
	assert.Equal(t, CaptureKey("b1"), CaptureKey("b1"))
}
