package order

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrUnknownStage  = errors.New("unknown stage")
	ErrUnknownStatus = errors.New("unknown status")

	// ErrCaptureNotEligible rejects a capture attempt before any storage
	// write: no payment method on file, already paid or processing, or the
	// progress threshold not reached without a DONE override.
	ErrCaptureNotEligible = errors.New("order not eligible for payment capture")

	// ErrCommissionNotEligible rejects payout on orders that are not DONE or
	// whose commission is already settled.
	ErrCommissionNotEligible = errors.New("order not eligible for commission payout")
)
