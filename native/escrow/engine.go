package escrow

import (
	"errors"
	"math/big"
	"time"

	"mintgate/core/address"
	"mintgate/core/events"
	"mintgate/core/state"
	"mintgate/core/types"
)

type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(addr address.Address) (*Escrow, bool, error)
	AssetExists(symbol string) bool
	Transfer(from, to []byte, symbol string, amount *big.Int) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine owns the escrow ledger: one pending payment per
// (buyer, content, seed) tuple, advanced through a strict state machine.
// Settlement is reachable only through the Authority handed to the
// orchestrator.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	nowFn     func() uint64
	authority bool
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) loadEscrow(addr address.Address) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok, err := e.state.EscrowGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return esc, nil
}

// Open creates a new escrow for one purchase attempt and moves the price
// from the buyer into the escrow vault. Reusing the seed of a live escrow or
// of a terminated one is rejected; a buyer re-transacts under a fresh seed.
func (e *Engine) Open(buyer, creator [20]byte, contentID [32]byte, seed uint64, price *big.Int, payAsset string) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	normalized := state.NormalizeAsset(payAsset)
	if !e.state.AssetExists(normalized) {
		return nil, ErrUnknownAsset
	}
	addr := address.EscrowAddress(buyer, contentID, seed)
	if existing, ok, err := e.state.EscrowGet(addr); err != nil {
		return nil, err
	} else if ok {
		if existing.Status == StatusInitialized {
			return nil, ErrAlreadyOpen
		}
		return nil, ErrStaleSeed
	}
	esc := &Escrow{
		Buyer:       buyer,
		Creator:     creator,
		ContentID:   contentID,
		Seed:        seed,
		Price:       new(big.Int).Set(price),
		PayAsset:    normalized,
		HeldBalance: new(big.Int).Set(price),
		CreatedAt:   e.now(),
		Status:      StatusInitialized,
	}
	vault := esc.Vault()
	if err := e.state.Transfer(buyer[:], vault[:], normalized, price); err != nil {
		if errors.Is(err, state.ErrInsufficientBalance) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	e.emit(NewOpenedEvent(esc))
	return esc.Clone(), nil
}

// Get returns the escrow stored at the derived address.
func (e *Engine) Get(addr address.Address) (*Escrow, error) {
	esc, err := e.loadEscrow(addr)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// Cancel refunds the held balance to the buyer in full and terminates the
// escrow. Only the buyer or the creator may cancel, and only while the
// escrow is still Initialized.
func (e *Engine) Cancel(addr address.Address, caller [20]byte) (*Escrow, error) {
	esc, err := e.loadEscrow(addr)
	if err != nil {
		return nil, err
	}
	switch esc.Status {
	case StatusCompleted:
		return nil, ErrAlreadyCompleted
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	}
	if caller != esc.Buyer && caller != esc.Creator {
		return nil, ErrUnauthorized
	}
	vault := esc.Vault()
	if esc.HeldBalance.Sign() > 0 {
		if err := e.state.Transfer(vault[:], esc.Buyer[:], esc.PayAsset, esc.HeldBalance); err != nil {
			return nil, err
		}
	}
	esc.HeldBalance = big.NewInt(0)
	esc.Status = StatusCancelled
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	e.emit(NewCancelledEvent(esc))
	return esc.Clone(), nil
}

// settle marks the escrow Completed after the settlement orchestrator has
// drained the vault through distribution. It never moves funds itself.
func (e *Engine) settle(addr address.Address, amount *big.Int) (*Escrow, error) {
	esc, err := e.loadEscrow(addr)
	if err != nil {
		return nil, err
	}
	switch esc.Status {
	case StatusCompleted:
		return nil, ErrAlreadyCompleted
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	}
	if amount == nil || amount.Cmp(esc.Price) != 0 {
		return nil, ErrPaymentMismatch
	}
	esc.HeldBalance = big.NewInt(0)
	esc.Status = StatusCompleted
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	e.emit(NewSettledEvent(esc))
	return esc.Clone(), nil
}

// Authority is the settlement engine's capability to complete escrows. The
// engine hands it out exactly once, keeping "only the orchestrator may
// settle" a wiring-time property instead of a runtime caller check.
type Authority struct {
	engine *Engine
}

// GrantAuthority returns the settlement capability. A second call fails.
func (e *Engine) GrantAuthority() (*Authority, error) {
	if e == nil {
		return nil, errNilState
	}
	if e.authority {
		return nil, ErrAuthorityGranted
	}
	e.authority = true
	return &Authority{engine: e}, nil
}

// Settle completes the escrow through the granted authority.
func (a *Authority) Settle(addr address.Address, amount *big.Int) (*Escrow, error) {
	if a == nil || a.engine == nil {
		return nil, errNilState
	}
	return a.engine.settle(addr, amount)
}
