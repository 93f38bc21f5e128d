package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
	"github.com/msaedi/instructly-booking-engine/internal/platform/logger"
)

func TestClassifyCardDeclined(t *testing.T) {
	a := NewStripeAdapter("sk_test_x", logger.NewNop())
	err := &stripe.Error{Code: stripe.ErrorCodeCardDeclined}
	assert.Equal(t, domain.PSPCardDeclined, a.Classify(err))
}

func TestClassifyNonStripeErrorIsSystemError(t *testing.T) {
	a := NewStripeAdapter("sk_test_x", logger.NewNop())
	assert.Equal(t, domain.PSPSystemError, a.Classify(errors.New("boom")))
}

func TestClassifyAPIConnectionIsSystemError(t *testing.T) {
	a := NewStripeAdapter("sk_test_x", logger.NewNop())
	err := &stripe.Error{Type: stripe.ErrorTypeAPIConnection}
	assert.Equal(t, domain.PSPSystemError, a.Classify(err))
}
