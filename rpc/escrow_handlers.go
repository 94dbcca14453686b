package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"mintgate/crypto"
	"mintgate/native/escrow"
)

type escrowOpenParams struct {
	Buyer     string `json:"buyer"`
	Creator   string `json:"creator"`
	ContentID string `json:"contentId"`
	Seed      uint64 `json:"seed"`
	Price     string `json:"price"`
	Asset     string `json:"asset"`
}

type escrowCancelParams struct {
	Escrow string `json:"escrow"`
	Caller string `json:"caller"`
}

type escrowGetParams struct {
	Escrow string `json:"escrow"`
}

type escrowJSON struct {
	Address     string `json:"address"`
	Vault       string `json:"vault"`
	Buyer       string `json:"buyer"`
	Creator     string `json:"creator"`
	ContentID   string `json:"contentId"`
	Seed        uint64 `json:"seed"`
	Price       string `json:"price"`
	Asset       string `json:"asset"`
	HeldBalance string `json:"heldBalance"`
	Status      string `json:"status"`
	CreatedAt   uint64 `json:"createdAt"`
}

func formatEscrowJSON(esc *escrow.Escrow) escrowJSON {
	addr := esc.Address()
	vault := esc.Vault()
	return escrowJSON{
		Address:     addr.Hex(),
		Vault:       vault.Hex(),
		Buyer:       crypto.NewAddress(esc.Buyer[:]).String(),
		Creator:     crypto.NewAddress(esc.Creator[:]).String(),
		ContentID:   hex.EncodeToString(esc.ContentID[:]),
		Seed:        esc.Seed,
		Price:       esc.Price.String(),
		Asset:       esc.PayAsset,
		HeldBalance: esc.HeldBalance.String(),
		Status:      esc.Status.String(),
		CreatedAt:   esc.CreatedAt,
	}
}

func (s *Server) handleEscrowOpen(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params escrowOpenParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseBech32Address(params.Buyer)
	if err != nil {
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
	price, err := parsePositiveBigInt(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, err := s.node.OpenEscrow(buyer, creator, contentID, params.Seed, price, params.Asset)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatEscrowJSON(esc))
}

func (s *Server) handleEscrowCancel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params escrowCancelParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	escrowAddr, err := parseDerivedAddress(params.Escrow)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, err := s.node.CancelEscrow(escrowAddr, caller)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatEscrowJSON(esc))
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params escrowGetParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	escrowAddr, err := parseDerivedAddress(params.Escrow)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, err := s.node.Escrow(escrowAddr)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatEscrowJSON(esc))
}
