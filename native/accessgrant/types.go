package accessgrant

import (
	"fmt"

	"mintgate/core/address"
)

// credentialNamespace derives the credential identifier from the mint
// authority, so the credential is bound to its content instance the same way
// every other record is.
const credentialNamespace = "credential"

// holdingNamespace derives the per-buyer holding slot for a credential.
const holdingNamespace = "credential_holding"

// Grant tracks the access credential for one content instance: who may mint
// it, its identifier, and how many credentials have been issued. The record
// lives at the access-state address derived from (creator, content, seed).
type Grant struct {
	Creator    [20]byte
	ContentID  [32]byte
	Seed       uint64
	Authority  address.Address
	Credential address.Address
	Issued     uint64
	CreatedAt  uint64
}

// Address returns the derived access-state address for this grant.
func (g *Grant) Address() address.Address {
	return address.AccessStateAddress(g.Creator, g.ContentID, g.Seed)
}

// Clone returns a copy so callers can mutate safely.
func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	clone := *g
	return &clone
}

// Sanitize validates a stored grant.
func Sanitize(g *Grant) (*Grant, error) {
	if g == nil {
		return nil, fmt.Errorf("nil grant")
	}
	clone := g.Clone()
	if clone.Authority == (address.Address{}) {
		return nil, fmt.Errorf("grant missing mint authority")
	}
	if clone.Credential == (address.Address{}) {
		return nil, fmt.Errorf("grant missing credential identifier")
	}
	return clone, nil
}

// CredentialID derives the credential identifier for a mint authority.
func CredentialID(authority address.Address) address.Address {
	return address.Derive(credentialNamespace, authority[:])
}

// HoldingAddress derives the slot recording a buyer's credential balance.
// Possession is checked against this slot alone, independent of escrow or
// distribution state.
func HoldingAddress(credential address.Address, holder [20]byte) address.Address {
	return address.Derive(holdingNamespace, credential[:], holder[:])
}
