// Package idempotency derives deterministic PSP idempotency keys and
// tracks in-flight/completed PSP calls transactionally with the Phase 3
// booking write, adapted from the teacher's Redis-based HTTP idempotency
// middleware (pkg/middleware/idempotency.go) onto Postgres so the record
// commits in the same transaction as the booking row it guards.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key derivation functions below are pure functions of stable booking
// fields, never of a timestamp, so a retried call after a crash
// reproduces the exact same key the original attempt used.

func AuthKey(bookingID string, attempt int) string {
	return hashKey("auth", bookingID, fmt.Sprintf("%d", attempt))
}

func CaptureKey(bookingID string) string {
	return hashKey("capture", bookingID)
}

func RefundKey(bookingID string, attempt int) string {
	return hashKey("refund", bookingID, fmt.Sprintf("%d", attempt))
}

func ManualTransferKey(bookingID string) string {
	return hashKey("manual_transfer", bookingID)
}

func PayoutScheduleKey(bookingID string, scheduleDate string) string {
	return hashKey("payout_schedule", bookingID, scheduleDate)
}

// LateCancelCaptureKey derives the key for captureLateCancellation
// (SPEC_FULL §4.4.5).
func LateCancelCaptureKey(bookingID string) string {
	return hashKey("capture_late_cancel", bookingID)
}

// ReauthKey derives the key for the fresh authorization
// createNewAuthorizationAndCapture places once the original hold has
// expired (SPEC_FULL §4.4.3, S7).
func ReauthKey(bookingID string) string {
	return hashKey("reauth", bookingID)
}

// ReauthCaptureKey derives the key for the capture that immediately
// follows a ReauthKey authorization.
func ReauthCaptureKey(bookingID string) string {
	return hashKey("reauth_capture", bookingID)
}

// CaptureFailurePayoutKey derives the key for the manual transfer issued
// when a capture failure escalates to MANUAL_REVIEW (SPEC_FULL §4.4.4).
func CaptureFailurePayoutKey(bookingID string) string {
	return hashKey("capture_failure_payout", bookingID)
}

func hashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "bpe_" + hex.EncodeToString(h.Sum(nil))[:32]
}
