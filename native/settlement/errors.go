package settlement

import "errors"

var (
	// ErrBuyerMismatch is returned when the settling buyer is not the
	// escrow's buyer.
	ErrBuyerMismatch = errors.New("settlement: buyer does not match escrow")
	// ErrAmountMismatch is returned when the settlement amount differs
	// from the escrow price.
	ErrAmountMismatch = errors.New("settlement: amount does not match escrow price")
	// ErrNotSettleable is returned for escrows that already terminated.
	ErrNotSettleable = errors.New("settlement: escrow is not settleable")

	errNilEngine = errors.New("settlement: engines not configured")
)
