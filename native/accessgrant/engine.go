package accessgrant

import (
	"errors"
	"time"

	"mintgate/core/address"
	"mintgate/core/events"
	"mintgate/core/types"
)

var (
	// ErrAlreadyInitialized rejects a second initialization of a content
	// instance's grant.
	ErrAlreadyInitialized = errors.New("accessgrant: already initialized")
	// ErrNotInitialized is returned when issuing against a content instance
	// that was never initialized.
	ErrNotInitialized = errors.New("accessgrant: not initialized")

	errNilState = errors.New("accessgrant engine: state not configured")
)

type engineState interface {
	GrantPut(*Grant) error
	GrantGet(addr address.Address) (*Grant, bool, error)
	CredentialBalance(credential address.Address, holder [20]byte) (uint64, error)
	CredentialMint(credential address.Address, holder [20]byte) error
}

type grantEvent struct {
	evt *types.Event
}

func (e grantEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e grantEvent) Event() *types.Event { return e.evt }

// Engine owns the access grant registry. Issuance is get-or-create per
// (content instance, buyer): retried settlements observe the credential they
// already minted instead of minting twice.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() uint64
}

// NewEngine creates an access grant engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily used in tests.
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
	e.emitter.Emit(grantEvent{evt: event})
}

// Initialize creates the grant record for a content instance. It runs once
// per (creator, content, seed); the derived address doubles as the
// idempotency check.
func (e *Engine) Initialize(creator [20]byte, contentID [32]byte, seed uint64) (*Grant, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	addr := address.AccessStateAddress(creator, contentID, seed)
	if _, ok, err := e.state.GrantGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	authority := address.AccessAuthorityAddress(creator, contentID, seed)
	grant := &Grant{
		Creator:    creator,
		ContentID:  contentID,
		Seed:       seed,
		Authority:  authority,
		Credential: CredentialID(authority),
		CreatedAt:  e.nowFn(),
	}
	if err := e.state.GrantPut(grant); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(grant))
	return grant.Clone(), nil
}

// Get returns the grant for a content instance.
func (e *Engine) Get(creator [20]byte, contentID [32]byte, seed uint64) (*Grant, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	grant, ok, err := e.state.GrantGet(address.AccessStateAddress(creator, contentID, seed))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return grant.Clone(), nil
}

// Issue mints the content instance's credential to the buyer, or returns the
// existing credential reference when the buyer already holds one. The minted
// return reports whether a new credential was created.
func (e *Engine) Issue(buyer [20]byte, creator [20]byte, contentID [32]byte, seed uint64) (credential address.Address, minted bool, err error) {
	if e == nil || e.state == nil {
		return address.Address{}, false, errNilState
	}
	stateAddr := address.AccessStateAddress(creator, contentID, seed)
	grant, ok, err := e.state.GrantGet(stateAddr)
	if err != nil {
		return address.Address{}, false, err
	}
	if !ok {
		return address.Address{}, false, ErrNotInitialized
	}
	held, err := e.state.CredentialBalance(grant.Credential, buyer)
	if err != nil {
		return address.Address{}, false, err
	}
	if held > 0 {
		return grant.Credential, false, nil
	}
	if err := e.state.CredentialMint(grant.Credential, buyer); err != nil {
		return address.Address{}, false, err
	}
	grant.Issued++
	if err := e.state.GrantPut(grant); err != nil {
		return address.Address{}, false, err
	}
	e.emit(NewIssuedEvent(grant, buyer))
	return grant.Credential, true, nil
}

// HasCredential reports whether the buyer holds the content instance's
// credential. This is the sole proof of purchase; it reads nothing but the
// holding slot.
func (e *Engine) HasCredential(buyer [20]byte, creator [20]byte, contentID [32]byte, seed uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	grant, ok, err := e.state.GrantGet(address.AccessStateAddress(creator, contentID, seed))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	held, err := e.state.CredentialBalance(grant.Credential, buyer)
	if err != nil {
		return false, err
	}
	return held > 0, nil
}
