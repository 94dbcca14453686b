package rpc

import (
	"encoding/json"
	"net/http"

	"mintgate/native/settlement"
)

type buyAndMintParams struct {
	Escrow string `json:"escrow"`
	Buyer  string `json:"buyer"`
	Amount string `json:"amount"`
}

type outcomeJSON struct {
	Total            string   `json:"total"`
	PlatformCut      string   `json:"platformCut"`
	CollaboratorCuts []string `json:"collaboratorCuts,omitempty"`
	CreatorCut       string   `json:"creatorCut"`
}

type receiptJSON struct {
	TxID       string      `json:"txId"`
	Escrow     escrowJSON  `json:"escrow"`
	Credential string      `json:"credential"`
	Minted     bool        `json:"minted"`
	Outcome    outcomeJSON `json:"outcome"`
	SettledAt  uint64      `json:"settledAt"`
}

func formatReceiptJSON(receipt *settlement.Receipt) receiptJSON {
	out := receiptJSON{
		TxID:       receipt.TxID,
		Escrow:     formatEscrowJSON(receipt.Escrow),
		Credential: receipt.Credential.Hex(),
		Minted:     receipt.Minted,
		SettledAt:  receipt.SettledAt,
	}
	if receipt.Outcome != nil {
		out.Outcome = outcomeJSON{
			Total:       receipt.Outcome.Total.String(),
			PlatformCut: receipt.Outcome.PlatformCut.String(),
			CreatorCut:  receipt.Outcome.CreatorCut.String(),
		}
		for _, cut := range receipt.Outcome.CollaboratorCuts {
			out.Outcome.CollaboratorCuts = append(out.Outcome.CollaboratorCuts, cut.String())
		}
	}
	return out
}

func (s *Server) handleBuyAndMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params buyAndMintParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	escrowAddr, err := parseDerivedAddress(params.Escrow)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseBech32Address(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	receipt, err := s.node.BuyAndMint(escrowAddr, buyer, amount)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatReceiptJSON(receipt))
}
