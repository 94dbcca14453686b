package distribution

import (
	"fmt"
	"math/big"
	"time"

	"mintgate/core/address"
	"mintgate/core/events"
	"mintgate/core/types"
)

type splitEvent struct {
	evt *types.Event
}

func (e splitEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e splitEvent) Event() *types.Event { return e.evt }

type engineState interface {
	SplitPut(cfg *SplitConfig) error
	SplitGet(addr address.Address) (*SplitConfig, bool, error)
	Transfer(from, to []byte, symbol string, amount *big.Int) error
}

// Engine owns the distribution ledger: immutable split configurations and
// the proceeds fan-out executed against them.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() uint64
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetNowFunc(now func() uint64) {
	if now != nil {
		e.nowFn = now
	}
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(splitEvent{evt: event})
}

// Configure stores the split for a content instance. The platform fee and
// collaborator shares must leave a non-negative creator remainder on the
// 10000 basis-point scale. A split, once written, never changes.
func (e *Engine) Configure(creator [20]byte, contentID [32]byte, seed uint64, platformFeeBps uint32, treasury [20]byte, collaborators []Collaborator) (*SplitConfig, error) {
	if e.state == nil {
		return nil, errNilState
	}
	cfg := &SplitConfig{
		Creator:          creator,
		ContentID:        contentID,
		Seed:             seed,
		PlatformFeeBps:   platformFeeBps,
		PlatformTreasury: treasury,
		Collaborators:    append([]Collaborator(nil), collaborators...),
		CreatedAt:        e.nowFn(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSplit, err)
	}
	addr := cfg.Address()
	if _, ok, err := e.state.SplitGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyConfigured
	}
	if err := e.state.SplitPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewConfiguredEvent(cfg))
	return cfg.Clone(), nil
}

// Get loads the split stored at addr.
func (e *Engine) Get(addr address.Address) (*SplitConfig, error) {
	if e.state == nil {
		return nil, errNilState
	}
	cfg, ok, err := e.state.SplitGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConfigured
	}
	return cfg.Clone(), nil
}

// Distribute fans total out of the source vault according to the split at
// splitAddr: a truncating platform cut, truncating collaborator cuts, and
// the exact remainder to the creator. The transfers drain the vault by
// precisely total.
func (e *Engine) Distribute(splitAddr address.Address, sourceVault address.Address, symbol string, total *big.Int) (*Outcome, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if total == nil || total.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	cfg, ok, err := e.state.SplitGet(splitAddr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConfigured
	}
	outcome := cfg.split(total)
	if err := outcome.checkConservation(); err != nil {
		return nil, err
	}
	if outcome.PlatformCut.Sign() > 0 {
		if err := e.state.Transfer(sourceVault.Bytes(), cfg.PlatformTreasury[:], symbol, outcome.PlatformCut); err != nil {
			return nil, fmt.Errorf("platform cut: %w", err)
		}
	}
	for i, collab := range cfg.Collaborators {
		cut := outcome.CollaboratorCuts[i]
		if cut.Sign() == 0 {
			continue
		}
		if err := e.state.Transfer(sourceVault.Bytes(), collab.Account[:], symbol, cut); err != nil {
			return nil, fmt.Errorf("collaborator cut %d: %w", i, err)
		}
	}
	if outcome.CreatorCut.Sign() > 0 {
		if err := e.state.Transfer(sourceVault.Bytes(), cfg.Creator[:], symbol, outcome.CreatorCut); err != nil {
			return nil, fmt.Errorf("creator cut: %w", err)
		}
	}
	e.emit(NewDistributedEvent(cfg, symbol, outcome))
	return outcome, nil
}

func (o *Outcome) checkConservation() error {
	sum := new(big.Int).Add(o.PlatformCut, o.CreatorCut)
	for _, cut := range o.CollaboratorCuts {
		sum.Add(sum, cut)
	}
	if sum.Cmp(o.Total) != 0 {
		return ErrConservation
	}
	return nil
}
