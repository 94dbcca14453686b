package rpc

import (
	"encoding/json"
	"net/http"
	"strings"

	"mintgate/core/address"
)

type addressingDeriveParams struct {
	Buyer     string `json:"buyer,omitempty"`
	Creator   string `json:"creator"`
	ContentID string `json:"contentId"`
	Seed      uint64 `json:"seed"`
}

// handleAddressingDerive computes every address a content instance (and,
// when a buyer is supplied, a purchase attempt) will use, so the catalog
// layer can persist them without re-implementing derivation.
func (s *Server) handleAddressingDerive(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params addressingDeriveParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	creator, err := parseBech32Address(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	contentID, err := parseContentID(params.ContentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}

	out := deriveForInstance(creator.Array(), contentID, params.Seed)
	if strings.TrimSpace(params.Buyer) != "" {
		buyer, parseErr := parseBech32Address(params.Buyer)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", parseErr.Error())
			return
		}
		escrowAddr := address.EscrowAddress(buyer.Array(), contentID, params.Seed)
		vault := address.VaultAddress(escrowAddr)
		out.Escrow = escrowAddr.Hex()
		out.Vault = vault.Hex()
	}
	writeResult(w, req.ID, out)
}
