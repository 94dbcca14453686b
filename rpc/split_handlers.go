package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"mintgate/crypto"
	"mintgate/native/distribution"
)

type collaboratorParam struct {
	Account string `json:"account"`
	Bps     uint32 `json:"bps"`
}

type splitConfigureParams struct {
	Creator          string              `json:"creator"`
	ContentID        string              `json:"contentId"`
	Seed             uint64              `json:"seed"`
	PlatformFeeBps   uint32              `json:"platformFeeBps"`
	PlatformTreasury string              `json:"platformTreasury"`
	Collaborators    []collaboratorParam `json:"collaborators,omitempty"`
}

type splitGetParams struct {
	Split string `json:"split"`
}

type collaboratorJSON struct {
	Account string `json:"account"`
	Bps     uint32 `json:"bps"`
}

type splitJSON struct {
	Address          string             `json:"address"`
	Creator          string             `json:"creator"`
	ContentID        string             `json:"contentId"`
	Seed             uint64             `json:"seed"`
	PlatformFeeBps   uint32             `json:"platformFeeBps"`
	PlatformTreasury string             `json:"platformTreasury"`
	CreatorBps       uint32             `json:"creatorBps"`
	Collaborators    []collaboratorJSON `json:"collaborators,omitempty"`
	CreatedAt        uint64             `json:"createdAt"`
}

func formatSplitJSON(cfg *distribution.SplitConfig) splitJSON {
	addr := cfg.Address()
	out := splitJSON{
		Address:          addr.Hex(),
		Creator:          crypto.NewAddress(cfg.Creator[:]).String(),
		ContentID:        hex.EncodeToString(cfg.ContentID[:]),
		Seed:             cfg.Seed,
		PlatformFeeBps:   cfg.PlatformFeeBps,
		PlatformTreasury: crypto.NewAddress(cfg.PlatformTreasury[:]).String(),
		CreatorBps:       cfg.CreatorBps(),
		CreatedAt:        cfg.CreatedAt,
	}
	for _, collab := range cfg.Collaborators {
		out.Collaborators = append(out.Collaborators, collaboratorJSON{
			Account: crypto.NewAddress(collab.Account[:]).String(),
			Bps:     collab.Bps,
		})
	}
	return out
}

func (s *Server) handleSplitConfigure(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params splitConfigureParams
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
	treasury, err := parseBech32Address(params.PlatformTreasury)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	collaborators := make([]distribution.Collaborator, 0, len(params.Collaborators))
	for _, collab := range params.Collaborators {
		account, parseErr := parseBech32Address(collab.Account)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", parseErr.Error())
			return
		}
		collaborators = append(collaborators, distribution.Collaborator{
			Account: account.Array(),
			Bps:     collab.Bps,
		})
	}
	cfg, err := s.node.ConfigureSplit(creator, contentID, params.Seed, params.PlatformFeeBps, treasury, collaborators)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSplitJSON(cfg))
}

func (s *Server) handleSplitGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params splitGetParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	splitAddr, err := parseDerivedAddress(params.Split)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	cfg, err := s.node.Split(splitAddr)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSplitJSON(cfg))
}
