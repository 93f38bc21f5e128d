// Package pricing centralizes the charge/payout math the booking
// lifecycle needs, grounded on the fee/amount handling observed in
// stripe_gateway.go's cents conversion (int64(req.Amount * 100)) and
// generalized into one calculator rather than scattering the split
// logic across the service and worker layers.
package pricing

// Calculator computes the money movement for each settlement outcome.
// All amounts are in cents to avoid floating point drift.
type Calculator struct {
	// PlatformFeeBps is the platform's cut in basis points, taken out of
	// the instructor's payout on a normal settlement.
	PlatformFeeBps int64
}

func New(platformFeeBps int64) *Calculator {
	return &Calculator{PlatformFeeBps: platformFeeBps}
}

// NormalPayout splits a fully captured totalPrice into the instructor's
// payout (after the platform fee) and the platform's retained fee.
func (c *Calculator) NormalPayout(totalPriceCents int64) (payoutCents, feeCents int64) {
	feeCents = (totalPriceCents * c.PlatformFeeBps) / 10000
	payoutCents = totalPriceCents - feeCents
	return payoutCents, feeCents
}

// LateCancellationSplit resolves Open Question 1: a late cancellation
// (inside the no-refund window) already captured the full totalPrice
// from the student. The instructor is paid 50% of totalPrice as their
// payout; the remaining 50% is retained by the platform instead of
// being transferred out. The student's charge is unaffected because the
// capture already happened before the cancellation was processed.
func (c *Calculator) LateCancellationSplit(totalPriceCents int64) (instructorPayoutCents, platformRetainedCents int64) {
	instructorPayoutCents = totalPriceCents / 2
	platformRetainedCents = totalPriceCents - instructorPayoutCents
	return instructorPayoutCents, platformRetainedCents
}

// AppliedCredit clamps a student's requested credit cents to what the
// booking can actually absorb: never negative, never more than the
// total price. The remainder (totalPriceCents - applied) is the
// student-pay amount the PSP authorization is placed for.
func (c *Calculator) AppliedCredit(totalPriceCents, requestedCreditCents int64) int64 {
	switch {
	case requestedCreditCents <= 0:
		return 0
	case requestedCreditCents > totalPriceCents:
		return totalPriceCents
	default:
		return requestedCreditCents
	}
}

// CreditAmount returns the amount (in cents) that should be issued as
// student credit rather than refunded to card, used by cancellation
// flows that forfeit the PSP refund path in favor of a credit reserve
// release.
func (c *Calculator) CreditAmount(totalPriceCents int64) int64 {
	return totalPriceCents
}
