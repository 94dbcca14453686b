package settlement

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"mintgate/core/address"
	"mintgate/core/events"
	"mintgate/core/types"
	"mintgate/native/accessgrant"
	"mintgate/native/distribution"
	"mintgate/native/escrow"
)

type settlementEvent struct {
	evt *types.Event
}

func (e settlementEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e settlementEvent) Event() *types.Event { return e.evt }

// Receipt summarizes one completed purchase: the terminal escrow, the
// credential the buyer now holds, and the exact fan-out of the proceeds.
type Receipt struct {
	TxID       string
	Escrow     *escrow.Escrow
	Credential address.Address
	Minted     bool
	Outcome    *distribution.Outcome
	SettledAt  uint64
}

// Orchestrator executes the purchase path across the escrow, access grant,
// and distribution engines. It is the sole holder of the escrow settlement
// authority, so an escrow can only complete as part of a full settlement.
type Orchestrator struct {
	escrow    *escrow.Engine
	authority *escrow.Authority
	access    *accessgrant.Engine
	dist      *distribution.Engine
	emitter   events.Emitter
	nowFn     func() uint64
	newTxID   func() string
}

// New wires the orchestrator over the three engines and claims the escrow
// engine's settlement authority. It fails if the authority was already
// granted elsewhere.
func New(escrowEngine *escrow.Engine, accessEngine *accessgrant.Engine, distEngine *distribution.Engine) (*Orchestrator, error) {
	if escrowEngine == nil || accessEngine == nil || distEngine == nil {
		return nil, errNilEngine
	}
	authority, err := escrowEngine.GrantAuthority()
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		escrow:    escrowEngine,
		authority: authority,
		access:    accessEngine,
		dist:      distEngine,
		emitter:   events.NoopEmitter{},
		nowFn:     func() uint64 { return uint64(time.Now().Unix()) },
		newTxID:   uuid.NewString,
	}, nil
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (o *Orchestrator) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		o.emitter = events.NoopEmitter{}
		return
	}
	o.emitter = emitter
}

// SetNowFunc overrides the time source, for deterministic tests.
func (o *Orchestrator) SetNowFunc(now func() uint64) {
	if now != nil {
		o.nowFn = now
	}
}

// SetTxIDFunc overrides receipt ID generation, for deterministic tests.
func (o *Orchestrator) SetTxIDFunc(fn func() string) {
	if fn != nil {
		o.newTxID = fn
	}
}

// BuyAndMint settles an open escrow in one pass: it validates the caller and
// amount, issues the content credential to the buyer, fans the held payment
// out of the vault through the configured split, and completes the escrow.
// The steps run in that fixed order; any failure aborts the settlement and
// the caller discards the staged state unchanged.
func (o *Orchestrator) BuyAndMint(escrowAddr address.Address, buyer [20]byte, amount *big.Int) (*Receipt, error) {
	if o == nil || o.escrow == nil {
		return nil, errNilEngine
	}
	esc, err := o.escrow.Get(escrowAddr)
	if err != nil {
		return nil, err
	}
	if esc.Buyer != buyer {
		return nil, ErrBuyerMismatch
	}
	if esc.Status != escrow.StatusInitialized {
		return nil, ErrNotSettleable
	}
	if amount == nil || amount.Cmp(esc.Price) != 0 {
		return nil, ErrAmountMismatch
	}

	credential, minted, err := o.access.Issue(buyer, esc.Creator, esc.ContentID, esc.Seed)
	if err != nil {
		return nil, err
	}

	splitAddr := address.SplitAddress(esc.Creator, esc.ContentID, esc.Seed)
	outcome, err := o.dist.Distribute(splitAddr, esc.Vault(), esc.PayAsset, amount)
	if err != nil {
		return nil, err
	}

	settled, err := o.authority.Settle(escrowAddr, amount)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		TxID:       o.newTxID(),
		Escrow:     settled,
		Credential: credential,
		Minted:     minted,
		Outcome:    outcome,
		SettledAt:  o.nowFn(),
	}
	o.emit(NewCompletedEvent(receipt))
	return receipt, nil
}

func (o *Orchestrator) emit(event *types.Event) {
	if o == nil || o.emitter == nil || event == nil {
		return
	}
	o.emitter.Emit(settlementEvent{evt: event})
}
