package escrow

import "errors"

var (
	// ErrNotFound is returned when no escrow exists at the derived address.
	ErrNotFound = errors.New("escrow: not found")
	// ErrAlreadyOpen rejects a second open against a live escrow.
	ErrAlreadyOpen = errors.New("escrow: already open")
	// ErrStaleSeed rejects reuse of a seed whose escrow already terminated.
	ErrStaleSeed = errors.New("escrow: stale seed, open with a new sequence seed")
	// ErrAlreadyCompleted rejects transitions out of the Completed state.
	ErrAlreadyCompleted = errors.New("escrow: already completed")
	// ErrAlreadyCancelled rejects transitions out of the Cancelled state.
	ErrAlreadyCancelled = errors.New("escrow: already cancelled")
	// ErrUnauthorized rejects a cancel from anyone but the buyer or creator.
	ErrUnauthorized = errors.New("escrow: unauthorized caller")
	// ErrInvalidPrice rejects a non-positive listing price.
	ErrInvalidPrice = errors.New("escrow: price must be positive")
	// ErrUnknownAsset rejects a payment asset missing from the registry.
	ErrUnknownAsset = errors.New("escrow: unknown payment asset")
	// ErrInsufficientFunds rejects an open the buyer cannot cover.
	ErrInsufficientFunds = errors.New("escrow: insufficient buyer balance")
	// ErrPaymentMismatch rejects a settlement amount that differs from the
	// stored price.
	ErrPaymentMismatch = errors.New("escrow: payment amount does not match price")
	// ErrAuthorityGranted guards against wiring two settlement callers.
	ErrAuthorityGranted = errors.New("escrow: settlement authority already granted")

	errNilState = errors.New("escrow engine: state not configured")
)
