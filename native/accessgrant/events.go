package accessgrant

import (
	"encoding/hex"
	"strconv"

	"mintgate/core/types"
	"mintgate/crypto"
)

const (
	EventTypeAccessInitialized = "access.initialized"
	EventTypeAccessIssued      = "access.issued"
)

// NewInitializedEvent returns the canonical payload for a freshly created
// grant.
func NewInitializedEvent(g *Grant) *types.Event {
	attrs := grantAttributes(g)
	return &types.Event{Type: EventTypeAccessInitialized, Attributes: attrs}
}

// NewIssuedEvent returns the canonical payload emitted when a credential is
// minted to a buyer.
func NewIssuedEvent(g *Grant, buyer [20]byte) *types.Event {
	attrs := grantAttributes(g)
	attrs["buyer"] = crypto.NewAddress(buyer[:]).String()
	return &types.Event{Type: EventTypeAccessIssued, Attributes: attrs}
}

func grantAttributes(g *Grant) map[string]string {
	attrs := make(map[string]string)
	sanitized, err := Sanitize(g)
	if err != nil {
		return attrs
	}
	addr := sanitized.Address()
	attrs["address"] = addr.Hex()
	attrs["creator"] = crypto.NewAddress(sanitized.Creator[:]).String()
	attrs["contentId"] = hex.EncodeToString(sanitized.ContentID[:])
	attrs["seed"] = strconv.FormatUint(sanitized.Seed, 10)
	attrs["authority"] = sanitized.Authority.Hex()
	attrs["credential"] = sanitized.Credential.Hex()
	attrs["issued"] = strconv.FormatUint(sanitized.Issued, 10)
	return attrs
}
