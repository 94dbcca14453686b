package escrow

import (
	"encoding/hex"
	"strconv"

	"mintgate/core/types"
	"mintgate/crypto"
)

const (
	EventTypeEscrowOpened    = "escrow.opened"
	EventTypeEscrowCancelled = "escrow.cancelled"
	EventTypeEscrowSettled   = "escrow.settled"
)

// NewOpenedEvent returns the canonical event payload for a newly opened
// escrow.
func NewOpenedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowOpened, e) }

// NewCancelledEvent returns the canonical event payload emitted when an
// escrow is cancelled and refunded.
func NewCancelledEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCancelled, e) }

// NewSettledEvent returns the canonical event payload emitted when the
// orchestrator completes an escrow.
func NewSettledEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowSettled, e) }

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := Sanitize(e)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	addr := sanitized.Address()
	attrs["address"] = addr.Hex()
	attrs["buyer"] = crypto.NewAddress(sanitized.Buyer[:]).String()
	attrs["creator"] = crypto.NewAddress(sanitized.Creator[:]).String()
	attrs["contentId"] = hex.EncodeToString(sanitized.ContentID[:])
	attrs["seed"] = strconv.FormatUint(sanitized.Seed, 10)
	attrs["price"] = sanitized.Price.String()
	attrs["asset"] = sanitized.PayAsset
	attrs["heldBalance"] = sanitized.HeldBalance.String()
	attrs["status"] = sanitized.Status.String()
	attrs["createdAt"] = strconv.FormatUint(sanitized.CreatedAt, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
