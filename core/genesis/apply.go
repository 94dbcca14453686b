package genesis

import (
	"fmt"
	"sort"
	"strings"

	"mintgate/core/address"
	"mintgate/core/state"
	"mintgate/crypto"
)

// marker is the record that proves a ledger was already seeded. Applying
// genesis to a seeded ledger is a no-op.
type marker struct {
	AppliedAt uint64
}

func markerAddress() address.Address {
	return address.Derive("genesis", []byte("applied"))
}

// Applied reports whether the ledger behind the committer was seeded.
func Applied(base state.Committer) (bool, error) {
	mgr := state.NewManager(base)
	return mgr.RecordExists(markerAddress().Bytes())
}

// Apply seeds the ledger from the spec in one atomic batch. It registers
// every declared asset and credits every allocation, in sorted order so the
// resulting state is identical for identical specs. A second call against
// the same ledger does nothing and reports applied=false.
func Apply(spec *Spec, base state.Committer, now uint64) (bool, error) {
	if err := spec.Validate(); err != nil {
		return false, err
	}
	staged := state.Stage(base)
	if ok, err := staged.RecordExists(markerAddress().Bytes()); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}

	assets := append([]AssetSpec(nil), spec.Assets...)
	sort.Slice(assets, func(i, j int) bool {
		return strings.ToUpper(assets[i].Symbol) < strings.ToUpper(assets[j].Symbol)
	})
	for _, asset := range assets {
		if err := staged.RegisterAsset(asset.Symbol, asset.Name, asset.Decimals); err != nil {
			return false, fmt.Errorf("register asset %q: %w", asset.Symbol, err)
		}
	}

	accounts := make([]string, 0, len(spec.Alloc))
	for account := range spec.Alloc {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		addr, err := crypto.DecodeAddress(account)
		if err != nil {
			return false, fmt.Errorf("alloc account %q: %w", account, err)
		}
		byAsset := spec.Alloc[account]
		symbols := make([]string, 0, len(byAsset))
		for symbol := range byAsset {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			amount, err := parseAmount(byAsset[symbol])
			if err != nil {
				return false, fmt.Errorf("alloc account %q asset %q: %w", account, symbol, err)
			}
			if amount.Sign() == 0 {
				continue
			}
			if err := staged.Credit(addr.Bytes(), state.NormalizeAsset(symbol), amount); err != nil {
				return false, fmt.Errorf("credit %q: %w", account, err)
			}
		}
	}

	if err := staged.RecordPut(markerAddress().Bytes(), &marker{AppliedAt: now}); err != nil {
		return false, err
	}
	if err := staged.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
