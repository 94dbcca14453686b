package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"mintgate/core/address"
	"mintgate/core/events"
	"mintgate/core/state"
	"mintgate/crypto"
	"mintgate/native/accessgrant"
	"mintgate/native/distribution"
	"mintgate/native/escrow"
	"mintgate/native/settlement"
	"mintgate/observability"
	"mintgate/storage"
)

// Node coordinates the settlement ledgers over a single storage backend.
// Every mutation runs on a staged overlay and reaches disk through one
// atomic batch, so a failed operation leaves no trace. Mutations on the
// same derived address serialize on a per-address lock; unrelated
// addresses never contend.
type Node struct {
	db      storage.Database
	store   *state.Store
	hub     *events.Hub
	logger  *slog.Logger
	metrics *observability.Metrics

	mu    sync.Mutex
	locks map[address.Address]*sync.Mutex
}

// NewNode wires a node over the given database. Logger and metrics may be
// nil.
func NewNode(db storage.Database, logger *slog.Logger, metrics *observability.Metrics) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{
		db:      db,
		store:   state.NewStore(db),
		hub:     events.NewHub(),
		logger:  logger,
		metrics: metrics,
		locks:   make(map[address.Address]*sync.Mutex),
	}
}

// Events exposes the node's event hub for RPC subscribers.
func (n *Node) Events() *events.Hub { return n.hub }

// lockFor serializes mutations that target the same derived address.
func (n *Node) lockFor(addr address.Address) func() {
	n.mu.Lock()
	lock, ok := n.locks[addr]
	if !ok {
		lock = &sync.Mutex{}
		n.locks[addr] = lock
	}
	n.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// eventCollector buffers engine events during a staged mutation. The node
// publishes them to the hub only after the batch commits.
type eventCollector struct {
	pending []events.Event
}

func (c *eventCollector) Emit(evt events.Event) {
	c.pending = append(c.pending, evt)
}

func (n *Node) publish(c *eventCollector) {
	for _, evt := range c.pending {
		n.hub.Emit(evt)
	}
}

// maxCommitRetries bounds re-runs of an operation whose read set was
// invalidated by a concurrent commit.
const maxCommitRetries = 16

// commitStaged runs an operation against a fresh staged view and commits
// it. A commit conflict means another operation touched an overlapping
// record, so the whole operation re-runs against the new state; any other
// failure aborts with the staged writes discarded. Events publish only
// after a successful commit.
func (n *Node) commitStaged(run func(staged *state.Staged, collector *eventCollector) error) error {
	for attempt := 0; ; attempt++ {
		staged := state.Stage(n.store)
		collector := &eventCollector{}
		if err := run(staged, collector); err != nil {
			return err
		}
		err := staged.Commit()
		if err == nil {
			n.publish(collector)
			return nil
		}
		if !errors.Is(err, state.ErrCommitConflict) || attempt >= maxCommitRetries {
			return err
		}
	}
}

func (n *Node) observe(op string, start time.Time, err error) {
	if n.metrics != nil {
		n.metrics.ObserveOperation(op, time.Since(start), err)
	}
	if err != nil {
		n.logger.Warn("operation failed", "op", op, "err", err)
	}
}

// credentialHolding is the stored per-holder credential slot.
type credentialHolding struct {
	Count uint64
}

// ledgerState adapts the state manager to the engines' narrow interfaces.
// Records live at their derived addresses; balances live in the manager's
// balance keyspace.
type ledgerState struct {
	mgr *state.Manager
}

func (l *ledgerState) EscrowPut(e *escrow.Escrow) error {
	addr := e.Address()
	return l.mgr.RecordPut(addr.Bytes(), e)
}

func (l *ledgerState) EscrowGet(addr address.Address) (*escrow.Escrow, bool, error) {
	var esc escrow.Escrow
	ok, err := l.mgr.RecordGet(addr.Bytes(), &esc)
	if err != nil || !ok {
		return nil, false, err
	}
	return &esc, true, nil
}

func (l *ledgerState) GrantPut(g *accessgrant.Grant) error {
	addr := g.Address()
	return l.mgr.RecordPut(addr.Bytes(), g)
}

func (l *ledgerState) GrantGet(addr address.Address) (*accessgrant.Grant, bool, error) {
	var grant accessgrant.Grant
	ok, err := l.mgr.RecordGet(addr.Bytes(), &grant)
	if err != nil || !ok {
		return nil, false, err
	}
	return &grant, true, nil
}

func (l *ledgerState) CredentialBalance(credential address.Address, holder [20]byte) (uint64, error) {
	slot := accessgrant.HoldingAddress(credential, holder)
	var holding credentialHolding
	ok, err := l.mgr.RecordGet(slot.Bytes(), &holding)
	if err != nil || !ok {
		return 0, err
	}
	return holding.Count, nil
}

func (l *ledgerState) CredentialMint(credential address.Address, holder [20]byte) error {
	slot := accessgrant.HoldingAddress(credential, holder)
	var holding credentialHolding
	if _, err := l.mgr.RecordGet(slot.Bytes(), &holding); err != nil {
		return err
	}
	holding.Count++
	return l.mgr.RecordPut(slot.Bytes(), &holding)
}

func (l *ledgerState) SplitPut(cfg *distribution.SplitConfig) error {
	addr := cfg.Address()
	return l.mgr.RecordPut(addr.Bytes(), cfg)
}

func (l *ledgerState) SplitGet(addr address.Address) (*distribution.SplitConfig, bool, error) {
	var cfg distribution.SplitConfig
	ok, err := l.mgr.RecordGet(addr.Bytes(), &cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (l *ledgerState) AssetExists(symbol string) bool { return l.mgr.AssetExists(symbol) }

func (l *ledgerState) Transfer(from, to []byte, symbol string, amount *big.Int) error {
	return l.mgr.Transfer(from, to, symbol, amount)
}

// OpenEscrow creates and funds an escrow for one purchase attempt.
func (n *Node) OpenEscrow(buyer, creator crypto.Address, contentID [32]byte, seed uint64, price *big.Int, payAsset string) (*escrow.Escrow, error) {
	start := time.Now()
	addr := address.EscrowAddress(buyer.Array(), contentID, seed)
	unlock := n.lockFor(addr)
	defer unlock()

	var esc *escrow.Escrow
	err := n.commitStaged(func(staged *state.Staged, collector *eventCollector) error {
		engine := escrow.NewEngine()
		engine.SetState(&ledgerState{mgr: staged.Manager})
		engine.SetEmitter(collector)
		var runErr error
		esc, runErr = engine.Open(buyer.Array(), creator.Array(), contentID, seed, price, payAsset)
		return runErr
	})
	n.observe("escrow_open", start, err)
	if err != nil {
		return nil, err
	}
	n.logger.Info("escrow opened", "address", addr.Hex(), "buyer", buyer.String(), "price", price.String())
	return esc, nil
}

// CancelEscrow refunds and terminates an open escrow. The caller must be
// the escrow's buyer or creator.
func (n *Node) CancelEscrow(escrowAddr address.Address, caller crypto.Address) (*escrow.Escrow, error) {
	start := time.Now()
	unlock := n.lockFor(escrowAddr)
	defer unlock()

	var esc *escrow.Escrow
	err := n.commitStaged(func(staged *state.Staged, collector *eventCollector) error {
		engine := escrow.NewEngine()
		engine.SetState(&ledgerState{mgr: staged.Manager})
		engine.SetEmitter(collector)
		var runErr error
		esc, runErr = engine.Cancel(escrowAddr, caller.Array())
		return runErr
	})
	n.observe("escrow_cancel", start, err)
	if err != nil {
		return nil, err
	}
	n.logger.Info("escrow cancelled", "address", escrowAddr.Hex(), "caller", caller.String())
	return esc, nil
}

// InitializeAccessGrant provisions the credential machinery for a content
// instance. Listing runs once per (creator, content, seed).
func (n *Node) InitializeAccessGrant(creator crypto.Address, contentID [32]byte, seed uint64) (*accessgrant.Grant, error) {
	start := time.Now()
	addr := address.AccessStateAddress(creator.Array(), contentID, seed)
	unlock := n.lockFor(addr)
	defer unlock()

	var grant *accessgrant.Grant
	err := n.commitStaged(func(staged *state.Staged, collector *eventCollector) error {
		engine := accessgrant.NewEngine()
		engine.SetState(&ledgerState{mgr: staged.Manager})
		engine.SetEmitter(collector)
		var runErr error
		grant, runErr = engine.Initialize(creator.Array(), contentID, seed)
		return runErr
	})
	n.observe("access_initialize", start, err)
	if err != nil {
		return nil, err
	}
	n.logger.Info("access grant initialized", "address", addr.Hex(), "creator", creator.String())
	return grant, nil
}

// ConfigureSplit stores the immutable revenue split for a content instance.
func (n *Node) ConfigureSplit(creator crypto.Address, contentID [32]byte, seed uint64, platformFeeBps uint32, treasury crypto.Address, collaborators []distribution.Collaborator) (*distribution.SplitConfig, error) {
	start := time.Now()
	addr := address.SplitAddress(creator.Array(), contentID, seed)
	unlock := n.lockFor(addr)
	defer unlock()

	var cfg *distribution.SplitConfig
	err := n.commitStaged(func(staged *state.Staged, collector *eventCollector) error {
		engine := distribution.NewEngine()
		engine.SetState(&ledgerState{mgr: staged.Manager})
		engine.SetEmitter(collector)
		var runErr error
		cfg, runErr = engine.Configure(creator.Array(), contentID, seed, platformFeeBps, treasury.Array(), collaborators)
		return runErr
	})
	n.observe("split_configure", start, err)
	if err != nil {
		return nil, err
	}
	n.logger.Info("split configured", "address", addr.Hex(), "platformFeeBps", platformFeeBps)
	return cfg, nil
}

// BuyAndMint settles an open escrow atomically: credential issuance, payout
// distribution, and escrow completion land in one batch or not at all.
func (n *Node) BuyAndMint(escrowAddr address.Address, buyer crypto.Address, amount *big.Int) (*settlement.Receipt, error) {
	start := time.Now()
	unlock := n.lockFor(escrowAddr)
	defer unlock()

	var receipt *settlement.Receipt
	err := n.commitStaged(func(staged *state.Staged, collector *eventCollector) error {
		ledger := &ledgerState{mgr: staged.Manager}
		escrowEngine := escrow.NewEngine()
		escrowEngine.SetState(ledger)
		escrowEngine.SetEmitter(collector)
		accessEngine := accessgrant.NewEngine()
		accessEngine.SetState(ledger)
		accessEngine.SetEmitter(collector)
		distEngine := distribution.NewEngine()
		distEngine.SetState(ledger)
		distEngine.SetEmitter(collector)

		orch, runErr := settlement.New(escrowEngine, accessEngine, distEngine)
		if runErr != nil {
			return runErr
		}
		orch.SetEmitter(collector)
		receipt, runErr = orch.BuyAndMint(escrowAddr, buyer.Array(), amount)
		return runErr
	})
	n.observe("settlement_buy_and_mint", start, err)
	if err != nil {
		return nil, err
	}
	if n.metrics != nil {
		n.metrics.ObserveSettlement(receipt.Outcome.Total)
	}
	n.logger.Info("settlement completed",
		"txId", receipt.TxID,
		"escrow", escrowAddr.Hex(),
		"buyer", buyer.String(),
		"total", receipt.Outcome.Total.String(),
	)
	return receipt, nil
}

// Escrow returns the escrow stored at the derived address.
func (n *Node) Escrow(addr address.Address) (*escrow.Escrow, error) {
	engine := escrow.NewEngine()
	engine.SetState(&ledgerState{mgr: state.NewManager(n.store)})
	return engine.Get(addr)
}

// Split returns the split configuration stored at the derived address.
func (n *Node) Split(addr address.Address) (*distribution.SplitConfig, error) {
	engine := distribution.NewEngine()
	engine.SetState(&ledgerState{mgr: state.NewManager(n.store)})
	return engine.Get(addr)
}

// AccessGrant returns the grant record for a content instance.
func (n *Node) AccessGrant(creator crypto.Address, contentID [32]byte, seed uint64) (*accessgrant.Grant, error) {
	engine := accessgrant.NewEngine()
	engine.SetState(&ledgerState{mgr: state.NewManager(n.store)})
	return engine.Get(creator.Array(), contentID, seed)
}

// HasCredential reports whether the buyer holds the content instance's
// credential. This is the node's proof-of-purchase check.
func (n *Node) HasCredential(buyer, creator crypto.Address, contentID [32]byte, seed uint64) (bool, error) {
	engine := accessgrant.NewEngine()
	engine.SetState(&ledgerState{mgr: state.NewManager(n.store)})
	return engine.HasCredential(buyer.Array(), creator.Array(), contentID, seed)
}

// Balance returns the asset balance held by an account or derived address.
func (n *Node) Balance(addr []byte, symbol string) (*big.Int, error) {
	mgr := state.NewManager(n.store)
	normalized := state.NormalizeAsset(symbol)
	if !mgr.AssetExists(normalized) {
		return nil, fmt.Errorf("unknown asset %q", symbol)
	}
	return mgr.Balance(addr, normalized)
}

// Assets lists the registered asset symbols.
func (n *Node) Assets() ([]string, error) {
	return state.NewManager(n.store).AssetList()
}
