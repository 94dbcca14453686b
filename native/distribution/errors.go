package distribution

import "errors"

var (
	// ErrInvalidSplit marks a configuration whose shares do not fit the
	// basis-point scale or include a zero collaborator share.
	ErrInvalidSplit = errors.New("distribution: invalid split")
	// ErrAlreadyConfigured is returned when a split already exists for the
	// creator, content, and seed tuple.
	ErrAlreadyConfigured = errors.New("distribution: split already configured")
	// ErrNotConfigured is returned when a distribution references an
	// address with no stored split.
	ErrNotConfigured = errors.New("distribution: split not configured")
	// ErrInvalidAmount rejects nil or negative distribution totals.
	ErrInvalidAmount = errors.New("distribution: invalid amount")
	// ErrConservation reports a cut set that does not sum back to the
	// distributed total.
	ErrConservation = errors.New("distribution: cuts do not conserve total")

	errNilState = errors.New("distribution: state not configured")
)
