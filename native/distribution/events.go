package distribution

import (
	"encoding/hex"
	"strconv"

	"mintgate/core/types"
	"mintgate/crypto"
)

const (
	EventTypeSplitConfigured  = "split.configured"
	EventTypeSplitDistributed = "split.distributed"
)

// NewConfiguredEvent returns the canonical event payload for a newly stored
// split configuration.
func NewConfiguredEvent(cfg *SplitConfig) *types.Event {
	attrs := make(map[string]string)
	if cfg == nil {
		return &types.Event{Type: EventTypeSplitConfigured, Attributes: attrs}
	}
	addr := cfg.Address()
	attrs["address"] = addr.Hex()
	attrs["creator"] = crypto.NewAddress(cfg.Creator[:]).String()
	attrs["contentId"] = hex.EncodeToString(cfg.ContentID[:])
	attrs["seed"] = strconv.FormatUint(cfg.Seed, 10)
	attrs["platformFeeBps"] = strconv.FormatUint(uint64(cfg.PlatformFeeBps), 10)
	attrs["platformTreasury"] = crypto.NewAddress(cfg.PlatformTreasury[:]).String()
	attrs["creatorBps"] = strconv.FormatUint(uint64(cfg.CreatorBps()), 10)
	attrs["collaborators"] = strconv.Itoa(len(cfg.Collaborators))
	for i, collab := range cfg.Collaborators {
		idx := strconv.Itoa(i)
		attrs["collaborator."+idx+".account"] = crypto.NewAddress(collab.Account[:]).String()
		attrs["collaborator."+idx+".bps"] = strconv.FormatUint(uint64(collab.Bps), 10)
	}
	attrs["createdAt"] = strconv.FormatUint(cfg.CreatedAt, 10)
	return &types.Event{Type: EventTypeSplitConfigured, Attributes: attrs}
}

// NewDistributedEvent returns the canonical event payload for one executed
// distribution, including every cut.
func NewDistributedEvent(cfg *SplitConfig, symbol string, outcome *Outcome) *types.Event {
	attrs := make(map[string]string)
	if cfg == nil || outcome == nil {
		return &types.Event{Type: EventTypeSplitDistributed, Attributes: attrs}
	}
	addr := cfg.Address()
	attrs["address"] = addr.Hex()
	attrs["creator"] = crypto.NewAddress(cfg.Creator[:]).String()
	attrs["contentId"] = hex.EncodeToString(cfg.ContentID[:])
	attrs["seed"] = strconv.FormatUint(cfg.Seed, 10)
	attrs["asset"] = symbol
	attrs["total"] = outcome.Total.String()
	attrs["platformCut"] = outcome.PlatformCut.String()
	attrs["creatorCut"] = outcome.CreatorCut.String()
	for i, cut := range outcome.CollaboratorCuts {
		attrs["collaboratorCut."+strconv.Itoa(i)] = cut.String()
	}
	return &types.Event{Type: EventTypeSplitDistributed, Attributes: attrs}
}
