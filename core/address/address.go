package address

import (
	"encoding/binary"
	"encoding/hex"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Record namespaces. Every stateful record lives at an address derived from
// its namespace and identifying fields, so records belonging to the same
// content instance are tied together by construction.
const (
	NamespaceEscrow          = "escrow"
	NamespaceVault           = "vault"
	NamespaceAccessState     = "access_state"
	NamespaceAccessAuthority = "access_authority"
	NamespaceSplit           = "split"
	NamespaceDistVault       = "dist_vault"
)

// Address identifies a stored record. Addresses are derived, never assigned.
type Address [32]byte

// Hex returns the lowercase hex encoding of the address.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}

// ParseHex decodes a 64-character hex string into an Address.
func ParseHex(s string) (Address, bool) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return Address{}, false
	}
	var a Address
	copy(a[:], raw)
	return a, true
}

// Derive computes the deterministic address for a record. The digest is
// keccak256 over the namespace and each component, every part preceded by its
// big-endian length so that component boundaries never collide across inputs.
func Derive(namespace string, components ...[]byte) Address {
	var lenBuf [4]byte
	buf := make([]byte, 0, 4+len(namespace)+len(components)*36)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(namespace)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, namespace...)
	for _, component := range components {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(component)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, component...)
	}
	var addr Address
	copy(addr[:], ethcrypto.Keccak256(buf))
	return addr
}

// SeedBytes renders a sequence seed in the fixed-width form used for
// derivation, keeping addresses stable across callers.
func SeedBytes(seed uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	return buf[:]
}

// EscrowAddress derives the escrow record address for one purchase attempt.
func EscrowAddress(buyer [20]byte, contentID [32]byte, seed uint64) Address {
	return Derive(NamespaceEscrow, buyer[:], contentID[:], SeedBytes(seed))
}

// VaultAddress derives the vault holding an escrow's pending payment.
func VaultAddress(escrow Address) Address {
	return Derive(NamespaceVault, escrow[:])
}

// AccessStateAddress derives the access grant record for a content instance.
func AccessStateAddress(creator [20]byte, contentID [32]byte, seed uint64) Address {
	return Derive(NamespaceAccessState, creator[:], contentID[:], SeedBytes(seed))
}

// AccessAuthorityAddress derives the mint authority for a content instance's
// access credential.
func AccessAuthorityAddress(creator [20]byte, contentID [32]byte, seed uint64) Address {
	return Derive(NamespaceAccessAuthority, creator[:], contentID[:], SeedBytes(seed))
}

// SplitAddress derives the split configuration record for a content instance.
func SplitAddress(creator [20]byte, contentID [32]byte, seed uint64) Address {
	return Derive(NamespaceSplit, creator[:], contentID[:], SeedBytes(seed))
}

// DistVaultAddress derives the staging vault used while a settlement fans out.
func DistVaultAddress(split Address) Address {
	return Derive(NamespaceDistVault, split[:])
}
