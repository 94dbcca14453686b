package distribution

import (
	"fmt"
	"math/big"

	"mintgate/core/address"
)

// feeDenominator is the basis-point scale every split is expressed in.
const feeDenominator = 10_000

// Collaborator is one secondary recipient of a content instance's proceeds.
type Collaborator struct {
	Account [20]byte
	Bps     uint32
}

// SplitConfig fixes the economics of a content instance at listing time:
// platform fee, treasury, and the ordered collaborator shares. The creator
// receives the implicit remainder. Immutable once stored; changing economics
// means re-listing under a new sequence seed.
type SplitConfig struct {
	Creator          [20]byte
	ContentID        [32]byte
	Seed             uint64
	PlatformFeeBps   uint32
	PlatformTreasury [20]byte
	Collaborators    []Collaborator
	CreatedAt        uint64
}

// Address returns the derived split record address.
func (c *SplitConfig) Address() address.Address {
	return address.SplitAddress(c.Creator, c.ContentID, c.Seed)
}

// CreatorBps returns the creator's implicit share in basis points.
func (c *SplitConfig) CreatorBps() uint32 {
	total := c.PlatformFeeBps
	for _, collab := range c.Collaborators {
		total += collab.Bps
	}
	if total > feeDenominator {
		return 0
	}
	return feeDenominator - total
}

// Clone returns a deep copy so callers can mutate safely.
func (c *SplitConfig) Clone() *SplitConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Collaborators = append([]Collaborator(nil), c.Collaborators...)
	return &clone
}

// Validate checks the basis-point arithmetic that makes a split legal.
func (c *SplitConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("nil split config")
	}
	total := uint64(c.PlatformFeeBps)
	for _, collab := range c.Collaborators {
		if collab.Bps == 0 {
			return fmt.Errorf("collaborator share must be positive")
		}
		total += uint64(collab.Bps)
	}
	if total > feeDenominator {
		return fmt.Errorf("shares exceed %d bps", feeDenominator)
	}
	return nil
}

// Outcome reports the exact cuts of one distribution. The cuts always sum to
// the distributed total.
type Outcome struct {
	Total            *big.Int
	PlatformCut      *big.Int
	CollaboratorCuts []*big.Int
	CreatorCut       *big.Int
}

// split computes the truncating integer cuts for a total. Truncation
// remainders accrue to the creator so no value is lost to rounding.
func (c *SplitConfig) split(total *big.Int) *Outcome {
	denom := big.NewInt(feeDenominator)
	platform := new(big.Int).Mul(total, big.NewInt(int64(c.PlatformFeeBps)))
	platform.Div(platform, denom)

	remaining := new(big.Int).Sub(total, platform)
	cuts := make([]*big.Int, len(c.Collaborators))
	for i, collab := range c.Collaborators {
		cut := new(big.Int).Mul(total, big.NewInt(int64(collab.Bps)))
		cut.Div(cut, denom)
		cuts[i] = cut
		remaining.Sub(remaining, cut)
	}
	return &Outcome{
		Total:            new(big.Int).Set(total),
		PlatformCut:      platform,
		CollaboratorCuts: cuts,
		CreatorCut:       remaining,
	}
}
