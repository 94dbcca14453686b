package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
)

// Spec seeds a fresh ledger: the registered assets and the initial account
// balances. Addresses are bech32 account strings.
type Spec struct {
	Assets []AssetSpec                  `json:"assets"`
	Alloc  map[string]map[string]string `json:"alloc"`
}

type AssetSpec struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// Default returns the spec used when no genesis file is configured: the
// native settlement asset and no allocations.
func Default() *Spec {
	return &Spec{
		Assets: []AssetSpec{{Symbol: "GATE", Name: "Gate", Decimals: 9}},
		Alloc:  map[string]map[string]string{},
	}
}

// Load reads and validates a genesis spec from disk.
func Load(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse genesis spec %q: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// Validate checks the spec for internal consistency before it touches state.
func (s *Spec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if len(s.Assets) == 0 {
		return fmt.Errorf("at least one asset must be declared")
	}
	seen := make(map[string]bool, len(s.Assets))
	for _, asset := range s.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(asset.Symbol))
		if symbol == "" {
			return fmt.Errorf("asset symbol must not be empty")
		}
		if seen[symbol] {
			return fmt.Errorf("asset %q declared twice", symbol)
		}
		seen[symbol] = true
	}
	for account, byAsset := range s.Alloc {
		for symbol, amount := range byAsset {
			normalized := strings.ToUpper(strings.TrimSpace(symbol))
			if !seen[normalized] {
				return fmt.Errorf("alloc for %q references undeclared asset %q", account, symbol)
			}
			if _, err := parseAmount(amount); err != nil {
				return fmt.Errorf("alloc for %q asset %q: %w", account, symbol, err)
			}
		}
	}
	return nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", raw)
	}
	return amount, nil
}
