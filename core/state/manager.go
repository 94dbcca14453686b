package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// KV is the narrow key-value surface the manager operates on. The second
// return value reports whether the key existed.
type KV interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key, value []byte) error
}

// Manager provides typed read/write access to ledger state: the asset
// registry, per-(account, asset) balances, and RLP-encoded records stored at
// derived addresses. Keys are hashed with keccak256 before hitting storage so
// the layout stays uniform regardless of prefix length.
type Manager struct {
	kv KV
}

// NewManager creates a state manager operating on the provided KV backend.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

// AssetMetadata describes a registered payment asset. The native unit and any
// fungible token a listing accepts are both plain registry entries.
type AssetMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

var (
	assetPrefix   = []byte("asset:")
	assetListKey  = ethcrypto.Keccak256([]byte("asset-list"))
	balancePrefix = []byte("balance:")
	recordPrefix  = []byte("record:")
)

// ErrInsufficientBalance is returned by Debit when the account cannot cover
// the requested amount.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

func assetMetadataKey(symbol string) []byte {
	buf := make([]byte, len(assetPrefix)+len(symbol))
	copy(buf, assetPrefix)
	copy(buf[len(assetPrefix):], symbol)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr []byte, symbol string) []byte {
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], addr)
	return ethcrypto.Keccak256(buf)
}

func recordKey(addr []byte) []byte {
	buf := make([]byte, len(recordPrefix)+len(addr))
	copy(buf, recordPrefix)
	copy(buf[len(recordPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

// NormalizeAsset canonicalises an asset symbol for registry and balance keys.
func NormalizeAsset(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (m *Manager) loadAssetList() ([]string, error) {
	data, ok, err := m.kv.Get(assetListKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	var list []string
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// RegisterAsset stores the metadata for a payment asset and records it in the
// asset index. Registering the same symbol twice fails.
func (m *Manager) RegisterAsset(symbol, name string, decimals uint8) error {
	normalized := NormalizeAsset(symbol)
	if normalized == "" {
		return fmt.Errorf("asset symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("asset %s: name must not be empty", normalized)
	}
	if existing, err := m.Asset(normalized); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("asset %s already registered", normalized)
	}

	list, err := m.loadAssetList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	encodedList, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	if err := m.kv.Put(assetListKey, encodedList); err != nil {
		return err
	}

	meta := &AssetMetadata{Symbol: normalized, Name: name, Decimals: decimals}
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	return m.kv.Put(assetMetadataKey(normalized), encoded)
}

// Asset retrieves metadata for a registered asset, or nil when unknown.
func (m *Manager) Asset(symbol string) (*AssetMetadata, error) {
	data, ok, err := m.kv.Get(assetMetadataKey(NormalizeAsset(symbol)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	meta := new(AssetMetadata)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// AssetExists reports whether the provided asset symbol is registered.
func (m *Manager) AssetExists(symbol string) bool {
	meta, err := m.Asset(symbol)
	return err == nil && meta != nil
}

// AssetList returns all registered asset symbols in sorted order.
func (m *Manager) AssetList() ([]string, error) {
	return m.loadAssetList()
}

// Balance retrieves an asset balance for the provided account. Unknown
// accounts hold zero.
func (m *Manager) Balance(addr []byte, symbol string) (*big.Int, error) {
	data, ok, err := m.kv.Get(balanceKey(addr, NormalizeAsset(symbol)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// SetBalance stores an account balance for the provided asset.
func (m *Manager) SetBalance(addr []byte, symbol string, amount *big.Int) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	normalized := NormalizeAsset(symbol)
	if normalized == "" {
		return fmt.Errorf("asset symbol must not be empty")
	}
	if !m.AssetExists(normalized) {
		return fmt.Errorf("asset %s not registered", normalized)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.kv.Put(balanceKey(addr, normalized), encoded)
}

// Credit adds the amount to the account's balance for the asset.
func (m *Manager) Credit(addr []byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("credit amount must be non-negative")
	}
	current, err := m.Balance(addr, symbol)
	if err != nil {
		return err
	}
	return m.SetBalance(addr, symbol, new(big.Int).Add(current, amount))
}

// Debit removes the amount from the account's balance for the asset, failing
// with ErrInsufficientBalance when the account cannot cover it.
func (m *Manager) Debit(addr []byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("debit amount must be non-negative")
	}
	current, err := m.Balance(addr, symbol)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return m.SetBalance(addr, symbol, new(big.Int).Sub(current, amount))
}

// Transfer moves the amount between two accounts in one step.
func (m *Manager) Transfer(from, to []byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := m.Debit(from, symbol, amount); err != nil {
		return err
	}
	return m.Credit(to, symbol, amount)
}

// RecordPut stores the provided value at a derived record address using RLP
// encoding.
func (m *Manager) RecordPut(addr []byte, value interface{}) error {
	if len(addr) == 0 {
		return fmt.Errorf("record: address must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.kv.Put(recordKey(addr), encoded)
}

// RecordGet retrieves the record stored at a derived address and decodes it
// into the provided destination. The boolean reports whether the record
// existed.
func (m *Manager) RecordGet(addr []byte, out interface{}) (bool, error) {
	if len(addr) == 0 {
		return false, fmt.Errorf("record: address must not be empty")
	}
	data, ok, err := m.kv.Get(recordKey(addr))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// RecordExists reports whether anything is stored at the derived address.
func (m *Manager) RecordExists(addr []byte) (bool, error) {
	return m.RecordGet(addr, nil)
}
