package settlement

import (
	"errors"
	"math/big"
	"testing"

	"mintgate/core/address"
	"mintgate/core/state"
	"mintgate/native/accessgrant"
	"mintgate/native/distribution"
	"mintgate/native/escrow"
)

// ledgerMock backs all three engines so a settlement exercises the same
// ordering the node runs against its staged manager.
type ledgerMock struct {
	escrows  map[address.Address]*escrow.Escrow
	grants   map[address.Address]*accessgrant.Grant
	splits   map[address.Address]*distribution.SplitConfig
	holdings map[address.Address]map[[20]byte]uint64
	balances map[string]map[string]*big.Int
	assets   map[string]bool

	mintErr     error
	transferErr error
}

func newLedgerMock() *ledgerMock {
	return &ledgerMock{
		escrows:  make(map[address.Address]*escrow.Escrow),
		grants:   make(map[address.Address]*accessgrant.Grant),
		splits:   make(map[address.Address]*distribution.SplitConfig),
		holdings: make(map[address.Address]map[[20]byte]uint64),
		balances: make(map[string]map[string]*big.Int),
		assets:   map[string]bool{"GATE": true},
	}
}

func (m *ledgerMock) EscrowPut(e *escrow.Escrow) error {
	m.escrows[e.Address()] = e.Clone()
	return nil
}

func (m *ledgerMock) EscrowGet(addr address.Address) (*escrow.Escrow, bool, error) {
	esc, ok := m.escrows[addr]
	if !ok {
		return nil, false, nil
	}
	return esc.Clone(), true, nil
}

func (m *ledgerMock) AssetExists(symbol string) bool { return m.assets[symbol] }

func (m *ledgerMock) GrantPut(g *accessgrant.Grant) error {
	m.grants[g.Address()] = g.Clone()
	return nil
}

func (m *ledgerMock) GrantGet(addr address.Address) (*accessgrant.Grant, bool, error) {
	grant, ok := m.grants[addr]
	if !ok {
		return nil, false, nil
	}
	return grant.Clone(), true, nil
}

func (m *ledgerMock) CredentialBalance(credential address.Address, holder [20]byte) (uint64, error) {
	return m.holdings[credential][holder], nil
}

func (m *ledgerMock) CredentialMint(credential address.Address, holder [20]byte) error {
	if m.mintErr != nil {
		return m.mintErr
	}
	byHolder, ok := m.holdings[credential]
	if !ok {
		byHolder = make(map[[20]byte]uint64)
		m.holdings[credential] = byHolder
	}
	byHolder[holder]++
	return nil
}

func (m *ledgerMock) SplitPut(cfg *distribution.SplitConfig) error {
	m.splits[cfg.Address()] = cfg.Clone()
	return nil
}

func (m *ledgerMock) SplitGet(addr address.Address) (*distribution.SplitConfig, bool, error) {
	cfg, ok := m.splits[addr]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *ledgerMock) balance(addr []byte, symbol string) *big.Int {
	byAsset, ok := m.balances[string(addr)]
	if !ok {
		return big.NewInt(0)
	}
	amount, ok := byAsset[symbol]
	if !ok {
		return big.NewInt(0)
	}
	return amount
}

func (m *ledgerMock) setBalance(addr []byte, symbol string, amount *big.Int) {
	byAsset, ok := m.balances[string(addr)]
	if !ok {
		byAsset = make(map[string]*big.Int)
		m.balances[string(addr)] = byAsset
	}
	byAsset[symbol] = new(big.Int).Set(amount)
}

func (m *ledgerMock) Transfer(from, to []byte, symbol string, amount *big.Int) error {
	if m.transferErr != nil {
		return m.transferErr
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	current := m.balance(from, symbol)
	if current.Cmp(amount) < 0 {
		return state.ErrInsufficientBalance
	}
	m.setBalance(from, symbol, new(big.Int).Sub(current, amount))
	m.setBalance(to, symbol, new(big.Int).Add(m.balance(to, symbol), amount))
	return nil
}

type fixture struct {
	mock      *ledgerMock
	orch      *Orchestrator
	escrowEng *escrow.Engine
	accessEng *accessgrant.Engine
	distEng   *distribution.Engine

	buyer    [20]byte
	creator  [20]byte
	collab   [20]byte
	treasury [20]byte
	content  [32]byte
}

func account(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := newLedgerMock()

	escrowEng := escrow.NewEngine()
	escrowEng.SetState(mock)
	escrowEng.SetNowFunc(func() uint64 { return 1_700_000_000 })
	accessEng := accessgrant.NewEngine()
	accessEng.SetState(mock)
	accessEng.SetNowFunc(func() uint64 { return 1_700_000_000 })
	distEng := distribution.NewEngine()
	distEng.SetState(mock)
	distEng.SetNowFunc(func() uint64 { return 1_700_000_000 })

	orch, err := New(escrowEng, accessEng, distEng)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	orch.SetNowFunc(func() uint64 { return 1_700_000_001 })
	orch.SetTxIDFunc(func() string { return "tx-1" })

	f := &fixture{
		mock:      mock,
		orch:      orch,
		escrowEng: escrowEng,
		accessEng: accessEng,
		distEng:   distEng,
		buyer:     account(0x01),
		creator:   account(0x02),
		collab:    account(0x03),
		treasury:  account(0x0F),
		content:   [32]byte{0xAA},
	}
	return f
}

// list prepares a content instance the way the node does: access grant
// initialized and split configured under the same seed.
func (f *fixture) list(t *testing.T, seed uint64) {
	t.Helper()
	if _, err := f.accessEng.Initialize(f.creator, f.content, seed); err != nil {
		t.Fatalf("initialize grant: %v", err)
	}
	_, err := f.distEng.Configure(f.creator, f.content, seed, 200, f.treasury, []distribution.Collaborator{
		{Account: f.collab, Bps: 300},
	})
	if err != nil {
		t.Fatalf("configure split: %v", err)
	}
}

func (f *fixture) open(t *testing.T, seed uint64, price int64) address.Address {
	t.Helper()
	f.mock.setBalance(f.buyer[:], "GATE", big.NewInt(price))
	esc, err := f.escrowEng.Open(f.buyer, f.creator, f.content, seed, big.NewInt(price), "GATE")
	if err != nil {
		t.Fatalf("open escrow: %v", err)
	}
	return esc.Address()
}

func TestBuyAndMintSettles(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	escrowAddr := f.open(t, 1, 1_000_000_000)

	receipt, err := f.orch.BuyAndMint(escrowAddr, f.buyer, big.NewInt(1_000_000_000))
	if err != nil {
		t.Fatalf("buy and mint: %v", err)
	}
	if receipt.TxID != "tx-1" {
		t.Fatalf("tx id = %q", receipt.TxID)
	}
	if !receipt.Minted {
		t.Fatalf("expected a freshly minted credential")
	}
	if receipt.Escrow.Status != escrow.StatusCompleted {
		t.Fatalf("escrow status = %v", receipt.Escrow.Status)
	}
	if receipt.Escrow.HeldBalance.Sign() != 0 {
		t.Fatalf("held balance = %s", receipt.Escrow.HeldBalance)
	}
	held, err := f.accessEng.HasCredential(f.buyer, f.creator, f.content, 1)
	if err != nil || !held {
		t.Fatalf("has credential = %v, %v", held, err)
	}
	esc, _, _ := f.mock.EscrowGet(escrowAddr)
	vault := esc.Vault()
	if got := f.mock.balance(vault.Bytes(), "GATE"); got.Sign() != 0 {
		t.Fatalf("vault balance = %s, want 0", got)
	}
	if got := f.mock.balance(f.treasury[:], "GATE"); got.Int64() != 20_000_000 {
		t.Fatalf("treasury = %s", got)
	}
	if got := f.mock.balance(f.collab[:], "GATE"); got.Int64() != 30_000_000 {
		t.Fatalf("collaborator = %s", got)
	}
	if got := f.mock.balance(f.creator[:], "GATE"); got.Int64() != 950_000_000 {
		t.Fatalf("creator = %s", got)
	}
}

func TestBuyAndMintRejectsWrongBuyer(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	escrowAddr := f.open(t, 1, 500)

	_, err := f.orch.BuyAndMint(escrowAddr, account(0x09), big.NewInt(500))
	if !errors.Is(err, ErrBuyerMismatch) {
		t.Fatalf("err = %v, want ErrBuyerMismatch", err)
	}
}

func TestBuyAndMintRejectsWrongAmount(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	escrowAddr := f.open(t, 1, 500)

	_, err := f.orch.BuyAndMint(escrowAddr, f.buyer, big.NewInt(499))
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("err = %v, want ErrAmountMismatch", err)
	}
	esc, _, _ := f.mock.EscrowGet(escrowAddr)
	if esc.Status != escrow.StatusInitialized {
		t.Fatalf("escrow advanced on failed settlement: %v", esc.Status)
	}
}

func TestBuyAndMintRejectsTerminalEscrow(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	escrowAddr := f.open(t, 1, 500)

	if _, err := f.escrowEng.Cancel(escrowAddr, f.buyer); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := f.orch.BuyAndMint(escrowAddr, f.buyer, big.NewInt(500))
	if !errors.Is(err, ErrNotSettleable) {
		t.Fatalf("err = %v, want ErrNotSettleable", err)
	}
}

func TestBuyAndMintUnknownEscrow(t *testing.T) {
	f := newFixture(t)
	var addr address.Address
	_, err := f.orch.BuyAndMint(addr, f.buyer, big.NewInt(1))
	if !errors.Is(err, escrow.ErrNotFound) {
		t.Fatalf("err = %v, want escrow.ErrNotFound", err)
	}
}

func TestBuyAndMintStopsOnMintFailure(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	escrowAddr := f.open(t, 1, 500)

	boom := errors.New("mint down")
	f.mock.mintErr = boom
	_, err := f.orch.BuyAndMint(escrowAddr, f.buyer, big.NewInt(500))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want mint failure", err)
	}
	esc, _, _ := f.mock.EscrowGet(escrowAddr)
	if esc.Status != escrow.StatusInitialized {
		t.Fatalf("escrow advanced on failed mint: %v", esc.Status)
	}
	vault := esc.Vault()
	if got := f.mock.balance(vault.Bytes(), "GATE"); got.Int64() != 500 {
		t.Fatalf("vault drained on failed mint: %s", got)
	}
}

func TestBuyAndMintStopsOnDistributionFailure(t *testing.T) {
	f := newFixture(t)
	// Grant exists but no split was configured for the seed.
	if _, err := f.accessEng.Initialize(f.creator, f.content, 1); err != nil {
		t.Fatalf("initialize grant: %v", err)
	}
	escrowAddr := f.open(t, 1, 500)

	_, err := f.orch.BuyAndMint(escrowAddr, f.buyer, big.NewInt(500))
	if !errors.Is(err, distribution.ErrNotConfigured) {
		t.Fatalf("err = %v, want distribution.ErrNotConfigured", err)
	}
	esc, _, _ := f.mock.EscrowGet(escrowAddr)
	if esc.Status != escrow.StatusInitialized {
		t.Fatalf("escrow advanced without distribution: %v", esc.Status)
	}
}

func TestBuyAndMintIsTerminalOnce(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	escrowAddr := f.open(t, 1, 500)

	if _, err := f.orch.BuyAndMint(escrowAddr, f.buyer, big.NewInt(500)); err != nil {
		t.Fatalf("first settlement: %v", err)
	}
	_, err := f.orch.BuyAndMint(escrowAddr, f.buyer, big.NewInt(500))
	if !errors.Is(err, ErrNotSettleable) {
		t.Fatalf("err = %v, want ErrNotSettleable", err)
	}
}

func TestOrchestratorClaimsAuthorityOnce(t *testing.T) {
	f := newFixture(t)
	if _, err := New(f.escrowEng, f.accessEng, f.distEng); !errors.Is(err, escrow.ErrAuthorityGranted) {
		t.Fatalf("err = %v, want escrow.ErrAuthorityGranted", err)
	}
}
