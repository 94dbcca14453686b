package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"mintgate/crypto"
	"mintgate/native/accessgrant"
)

type accessInstanceParams struct {
	Creator   string `json:"creator"`
	ContentID string `json:"contentId"`
	Seed      uint64 `json:"seed"`
}

type accessHasCredentialParams struct {
	Buyer     string `json:"buyer"`
	Creator   string `json:"creator"`
	ContentID string `json:"contentId"`
	Seed      uint64 `json:"seed"`
}

type grantJSON struct {
	Address    string `json:"address"`
	Creator    string `json:"creator"`
	ContentID  string `json:"contentId"`
	Seed       uint64 `json:"seed"`
	Authority  string `json:"authority"`
	Credential string `json:"credential"`
	Issued     uint64 `json:"issued"`
	CreatedAt  uint64 `json:"createdAt"`
}

func formatGrantJSON(grant *accessgrant.Grant) grantJSON {
	addr := grant.Address()
	return grantJSON{
		Address:    addr.Hex(),
		Creator:    crypto.NewAddress(grant.Creator[:]).String(),
		ContentID:  hex.EncodeToString(grant.ContentID[:]),
		Seed:       grant.Seed,
		Authority:  grant.Authority.Hex(),
		Credential: grant.Credential.Hex(),
		Issued:     grant.Issued,
		CreatedAt:  grant.CreatedAt,
	}
}

func (s *Server) decodeInstanceParams(w http.ResponseWriter, req *RPCRequest) (crypto.Address, [32]byte, uint64, bool) {
	var zeroAddr crypto.Address
	var zeroContent [32]byte
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return zeroAddr, zeroContent, 0, false
	}
	var params accessInstanceParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return zeroAddr, zeroContent, 0, false
	}
	creator, err := parseBech32Address(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return zeroAddr, zeroContent, 0, false
	}
	contentID, err := parseContentID(params.ContentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return zeroAddr, zeroContent, 0, false
	}
	return creator, contentID, params.Seed, true
}

func (s *Server) handleAccessInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	creator, contentID, seed, ok := s.decodeInstanceParams(w, req)
	if !ok {
		return
	}
	grant, err := s.node.InitializeAccessGrant(creator, contentID, seed)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatGrantJSON(grant))
}

func (s *Server) handleAccessGetGrant(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	creator, contentID, seed, ok := s.decodeInstanceParams(w, req)
	if !ok {
		return
	}
	grant, err := s.node.AccessGrant(creator, contentID, seed)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatGrantJSON(grant))
}

func (s *Server) handleAccessHasCredential(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params accessHasCredentialParams
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
	held, err := s.node.HasCredential(buyer, creator, contentID, params.Seed)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"hasCredential": held})
}
