package rpc

import (
	"encoding/json"
	"net/http"
	"strings"

	"mintgate/core/address"
)

type balanceGetParams struct {
	// Account is a bech32 account address; Address is a derived ledger
	// address in hex. Exactly one must be set.
	Account string `json:"account,omitempty"`
	Address string `json:"address,omitempty"`
	Asset   string `json:"asset"`
}

type balanceJSON struct {
	Holder  string `json:"holder"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

func (s *Server) handleBalanceGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params balanceGetParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	hasAccount := strings.TrimSpace(params.Account) != ""
	hasAddress := strings.TrimSpace(params.Address) != ""
	if hasAccount == hasAddress {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one of account or address required")
		return
	}

	var holder string
	var key []byte
	if hasAccount {
		account, err := parseBech32Address(params.Account)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		holder = account.String()
		key = account.Bytes()
	} else {
		derived, err := parseDerivedAddress(params.Address)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		holder = derived.Hex()
		key = derived.Bytes()
	}

	balance, err := s.node.Balance(key, params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	writeResult(w, req.ID, balanceJSON{
		Holder:  holder,
		Asset:   strings.ToUpper(strings.TrimSpace(params.Asset)),
		Balance: balance.String(),
	})
}

func (s *Server) handleAssetList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	assets, err := s.node.Assets()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, map[string][]string{"assets": assets})
}

// derivedAddresses is shared by the addressing handler so callers can
// persist every address a content instance will ever use.
type derivedAddresses struct {
	Escrow          string `json:"escrow,omitempty"`
	Vault           string `json:"vault,omitempty"`
	AccessState     string `json:"accessState,omitempty"`
	AccessAuthority string `json:"accessAuthority,omitempty"`
	Split           string `json:"split,omitempty"`
	DistVault       string `json:"distVault,omitempty"`
}

func deriveForInstance(creator [20]byte, contentID [32]byte, seed uint64) derivedAddresses {
	accessState := address.AccessStateAddress(creator, contentID, seed)
	accessAuthority := address.AccessAuthorityAddress(creator, contentID, seed)
	split := address.SplitAddress(creator, contentID, seed)
	distVault := address.DistVaultAddress(split)
	return derivedAddresses{
		AccessState:     accessState.Hex(),
		AccessAuthority: accessAuthority.Hex(),
		Split:           split.Hex(),
		DistVault:       distVault.Hex(),
	}
}
