package settlement

import (
	"strconv"

	"mintgate/core/types"
	"mintgate/crypto"
)

// EventTypeCompleted marks a fully settled purchase.
const EventTypeCompleted = "settlement.completed"

// NewCompletedEvent returns the canonical event payload for one settlement
// receipt.
func NewCompletedEvent(r *Receipt) *types.Event {
	attrs := make(map[string]string)
	if r == nil || r.Escrow == nil {
		return &types.Event{Type: EventTypeCompleted, Attributes: attrs}
	}
	escrowAddr := r.Escrow.Address()
	attrs["txId"] = r.TxID
	attrs["escrow"] = escrowAddr.Hex()
	attrs["buyer"] = crypto.NewAddress(r.Escrow.Buyer[:]).String()
	attrs["creator"] = crypto.NewAddress(r.Escrow.Creator[:]).String()
	attrs["credential"] = r.Credential.Hex()
	attrs["minted"] = strconv.FormatBool(r.Minted)
	attrs["asset"] = r.Escrow.PayAsset
	if r.Outcome != nil {
		attrs["total"] = r.Outcome.Total.String()
		attrs["platformCut"] = r.Outcome.PlatformCut.String()
		attrs["creatorCut"] = r.Outcome.CreatorCut.String()
	}
	attrs["settledAt"] = strconv.FormatUint(r.SettledAt, 10)
	return &types.Event{Type: EventTypeCompleted, Attributes: attrs}
}
