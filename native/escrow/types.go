package escrow

import (
	"fmt"
	"math/big"

	"mintgate/core/address"
)

// Status represents the lifecycle states of a purchase escrow. Both
// Completed and Cancelled are terminal; no transition leaves them.
type Status uint8

const (
	StatusInitialized Status = iota + 1
	StatusCompleted
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusInitialized, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String renders the status for events and RPC responses.
func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "initialized"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Escrow holds a single pending payment for one purchase attempt of a
// content instance. The record lives at the address derived from
// (buyer, content, seed); the held funds live in the vault derived from the
// record address.
type Escrow struct {
	Buyer       [20]byte
	Creator     [20]byte
	ContentID   [32]byte
	Seed        uint64
	Price       *big.Int
	PayAsset    string
	HeldBalance *big.Int
	CreatedAt   uint64
	Status      Status
}

// Address returns the derived record address for this escrow.
func (e *Escrow) Address() address.Address {
	return address.EscrowAddress(e.Buyer, e.ContentID, e.Seed)
}

// Vault returns the derived vault address holding this escrow's funds.
func (e *Escrow) Vault() address.Address {
	return address.VaultAddress(e.Address())
}

// Clone returns a deep copy so callers can mutate safely.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Price != nil {
		clone.Price = new(big.Int).Set(e.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	if e.HeldBalance != nil {
		clone.HeldBalance = new(big.Int).Set(e.HeldBalance)
	} else {
		clone.HeldBalance = big.NewInt(0)
	}
	return &clone
}

// Sanitize validates a stored escrow and returns a normalised clone with
// non-nil amount fields. The original value is not mutated.
func Sanitize(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow")
	}
	clone := e.Clone()
	if clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("escrow price must be positive")
	}
	if clone.HeldBalance.Sign() < 0 {
		return nil, fmt.Errorf("escrow held balance must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid escrow status: %d", clone.Status)
	}
	if clone.Status == StatusInitialized {
		if clone.HeldBalance.Cmp(clone.Price) != 0 {
			return nil, fmt.Errorf("initialized escrow must hold exactly its price")
		}
	} else if clone.HeldBalance.Sign() != 0 {
		return nil, fmt.Errorf("terminal escrow must hold zero balance")
	}
	return clone, nil
}
