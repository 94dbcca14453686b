package rpc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"mintgate/core/address"
	"mintgate/crypto"
	"mintgate/native/accessgrant"
	"mintgate/native/distribution"
	"mintgate/native/escrow"
	"mintgate/native/settlement"
)

func parseBech32Address(raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid account address: %w", err)
	}
	return addr, nil
}

func parseContentID(raw string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return out, fmt.Errorf("invalid contentId: %w", err)
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("contentId must be %d bytes, got %d", len(out), len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func parseDerivedAddress(raw string) (address.Address, error) {
	addr, ok := address.ParseHex(strings.TrimSpace(raw))
	if !ok {
		return address.Address{}, fmt.Errorf("invalid derived address %q", raw)
	}
	return addr, nil
}

func parsePositiveBigInt(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

// writeLedgerError translates engine sentinel errors into stable RPC codes
// so clients can branch without matching message strings.
func writeLedgerError(w http.ResponseWriter, id interface{}, err error) {
	status := http.StatusInternalServerError
	code := codeServerError
	message := "internal_error"
	switch {
	case errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, accessgrant.ErrNotInitialized),
		errors.Is(err, distribution.ErrNotConfigured):
		status = http.StatusNotFound
		code = codeNotFound
		message = "not_found"
	case errors.Is(err, escrow.ErrAlreadyOpen),
		errors.Is(err, escrow.ErrStaleSeed),
		errors.Is(err, escrow.ErrAlreadyCompleted),
		errors.Is(err, escrow.ErrAlreadyCancelled),
		errors.Is(err, escrow.ErrPaymentMismatch),
		errors.Is(err, accessgrant.ErrAlreadyInitialized),
		errors.Is(err, distribution.ErrAlreadyConfigured),
		errors.Is(err, settlement.ErrNotSettleable),
		errors.Is(err, settlement.ErrAmountMismatch):
		status = http.StatusConflict
		code = codeConflict
		message = "conflict"
	case errors.Is(err, escrow.ErrInsufficientFunds):
		status = http.StatusConflict
		code = codeFunds
		message = "insufficient_funds"
	case errors.Is(err, escrow.ErrUnauthorized),
		errors.Is(err, settlement.ErrBuyerMismatch):
		status = http.StatusForbidden
		code = codeForbidden
		message = "forbidden"
	case errors.Is(err, escrow.ErrInvalidPrice),
		errors.Is(err, escrow.ErrUnknownAsset),
		errors.Is(err, distribution.ErrInvalidSplit),
		errors.Is(err, distribution.ErrInvalidAmount):
		status = http.StatusBadRequest
		code = codeInvalidParams
		message = "invalid_params"
	}
	writeError(w, status, id, code, message, err.Error())
}
