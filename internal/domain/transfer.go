package domain

import "time"

// Transfer holds PSP transfer/payout/refund bookkeeping for a Booking,
// created lazily the first time a transfer-shaped PSP call is made
// against it.
type Transfer struct {
	BookingID string

	StripeTransferID string

	PayoutTransferID        string
	PayoutTransferFailedAt  *time.Time
	PayoutTransferError     string
	PayoutTransferRetryCount int

	RefundID        string
	RefundRetryCount int

	PayoutScheduleCheckedAt *time.Time
}
