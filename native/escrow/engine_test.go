package escrow

import (
	"math/big"
	"testing"

	"mintgate/core/address"
	"mintgate/core/state"
)

type mockState struct {
	escrows  map[address.Address]*Escrow
	balances map[string]map[string]*big.Int
	assets   map[string]bool
	putErr   error
}

func newMockState() *mockState {
	return &mockState{
		escrows:  make(map[address.Address]*Escrow),
		balances: make(map[string]map[string]*big.Int),
		assets:   map[string]bool{"GATE": true},
	}
}

func (m *mockState) EscrowPut(e *Escrow) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.escrows[e.Address()] = e.Clone()
	return nil
}

func (m *mockState) EscrowGet(addr address.Address) (*Escrow, bool, error) {
	esc, ok := m.escrows[addr]
	if !ok {
		return nil, false, nil
	}
	return esc.Clone(), true, nil
}

func (m *mockState) AssetExists(symbol string) bool { return m.assets[symbol] }

func (m *mockState) balance(addr []byte, symbol string) *big.Int {
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

func (m *mockState) setBalance(addr []byte, symbol string, amount *big.Int) {
	byAsset, ok := m.balances[string(addr)]
	if !ok {
		byAsset = make(map[string]*big.Int)
		m.balances[string(addr)] = byAsset
	}
	byAsset[symbol] = new(big.Int).Set(amount)
}

func (m *mockState) Transfer(from, to []byte, symbol string, amount *big.Int) error {
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

func newTestAccount(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestContent(fill byte) [32]byte {
	var id [32]byte
	for i := range id {
		id[i] = fill
	}
	return id
}

func newTestEngine(st *mockState) *Engine {
	engine := NewEngine()
	engine.SetState(st)
	engine.SetNowFunc(func() uint64 { return 1_700_000_000 })
	return engine
}

func TestOpenFundsVault(t *testing.T) {
	st := newMockState()
	buyer := newTestAccount(0x01)
	creator := newTestAccount(0x02)
	content := newTestContent(0xAA)
	st.setBalance(buyer[:], "GATE", big.NewInt(1_000))

	engine := newTestEngine(st)
	esc, err := engine.Open(buyer, creator, content, 1, big.NewInt(750), "gate")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if esc.Status != StatusInitialized {
		t.Fatalf("unexpected status %v", esc.Status)
	}
	if esc.HeldBalance.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("held balance %s, want 750", esc.HeldBalance)
	}
	vault := esc.Vault()
	if got := st.balance(vault[:], "GATE"); got.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("vault balance %s, want 750", got)
	}
	if got := st.balance(buyer[:], "GATE"); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("buyer balance %s, want 250", got)
	}
}

func TestOpenValidation(t *testing.T) {
	st := newMockState()
	buyer := newTestAccount(0x01)
	creator := newTestAccount(0x02)
	content := newTestContent(0xAA)
	engine := newTestEngine(st)

	if _, err := engine.Open(buyer, creator, content, 1, big.NewInt(0), "GATE"); err != ErrInvalidPrice {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := engine.Open(buyer, creator, content, 1, big.NewInt(10), "DOGE"); err != ErrUnknownAsset {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
	if _, err := engine.Open(buyer, creator, content, 1, big.NewInt(10), "GATE"); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(st.escrows) != 0 {
		t.Fatal("failed opens must not persist records")
	}
}

func TestOpenRejectsLiveAndStaleSeeds(t *testing.T) {
	st := newMockState()
	buyer := newTestAccount(0x01)
	creator := newTestAccount(0x02)
	content := newTestContent(0xAA)
	st.setBalance(buyer[:], "GATE", big.NewInt(10_000))
	engine := newTestEngine(st)

	first, err := engine.Open(buyer, creator, content, 1, big.NewInt(100), "GATE")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := engine.Open(buyer, creator, content, 1, big.NewInt(100), "GATE"); err != ErrAlreadyOpen {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}

	if _, err := engine.Cancel(first.Address(), buyer); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := engine.Open(buyer, creator, content, 1, big.NewInt(100), "GATE"); err != ErrStaleSeed {
		t.Fatalf("expected ErrStaleSeed, got %v", err)
	}

	second, err := engine.Open(buyer, creator, content, 2, big.NewInt(100), "GATE")
	if err != nil {
		t.Fatalf("open with fresh seed: %v", err)
	}
	if second.Address() == first.Address() {
		t.Fatal("fresh seed must not reuse the cancelled escrow's address")
	}
}

func TestCancelRefundsBuyer(t *testing.T) {
	st := newMockState()
	buyer := newTestAccount(0x01)
	creator := newTestAccount(0x02)
	content := newTestContent(0xAA)
	st.setBalance(buyer[:], "GATE", big.NewInt(500))
	engine := newTestEngine(st)

	esc, err := engine.Open(buyer, creator, content, 1, big.NewInt(500), "GATE")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	outsider := newTestAccount(0x99)
	if _, err := engine.Cancel(esc.Address(), outsider); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	cancelled, err := engine.Cancel(esc.Address(), buyer)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.HeldBalance.Sign() != 0 {
		t.Fatalf("unexpected terminal state %v held=%s", cancelled.Status, cancelled.HeldBalance)
	}
	if got := st.balance(buyer[:], "GATE"); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("buyer refund %s, want 500", got)
	}
	if _, err := engine.Cancel(esc.Address(), buyer); err != ErrAlreadyCancelled {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
}

func TestCreatorMayCancel(t *testing.T) {
	st := newMockState()
	buyer := newTestAccount(0x01)
	creator := newTestAccount(0x02)
	content := newTestContent(0xAA)
	st.setBalance(buyer[:], "GATE", big.NewInt(100))
	engine := newTestEngine(st)

	esc, err := engine.Open(buyer, creator, content, 1, big.NewInt(100), "GATE")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := engine.Cancel(esc.Address(), creator); err != nil {
		t.Fatalf("creator cancel: %v", err)
	}
	// The refund still goes to the buyer, never to the cancelling creator.
	if got := st.balance(buyer[:], "GATE"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("buyer refund %s, want 100", got)
	}
	if got := st.balance(creator[:], "GATE"); got.Sign() != 0 {
		t.Fatalf("creator must not receive refund, got %s", got)
	}
}

func TestSettleThroughAuthority(t *testing.T) {
	st := newMockState()
	buyer := newTestAccount(0x01)
	creator := newTestAccount(0x02)
	content := newTestContent(0xAA)
	st.setBalance(buyer[:], "GATE", big.NewInt(100))
	engine := newTestEngine(st)

	esc, err := engine.Open(buyer, creator, content, 1, big.NewInt(100), "GATE")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	authority, err := engine.GrantAuthority()
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := engine.GrantAuthority(); err != ErrAuthorityGranted {
		t.Fatalf("expected ErrAuthorityGranted, got %v", err)
	}

	if _, err := authority.Settle(esc.Address(), big.NewInt(99)); err != ErrPaymentMismatch {
		t.Fatalf("expected ErrPaymentMismatch, got %v", err)
	}
	settled, err := authority.Settle(esc.Address(), big.NewInt(100))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != StatusCompleted || settled.HeldBalance.Sign() != 0 {
		t.Fatalf("unexpected terminal state %v held=%s", settled.Status, settled.HeldBalance)
	}
	if _, err := authority.Settle(esc.Address(), big.NewInt(100)); err != ErrAlreadyCompleted {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if _, err := engine.Cancel(esc.Address(), buyer); err != ErrAlreadyCompleted {
		t.Fatalf("cancel after settle: expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestSanitizeRejectsBrokenInvariants(t *testing.T) {
	buyer := newTestAccount(0x01)
	esc := &Escrow{
		Buyer:       buyer,
		Creator:     newTestAccount(0x02),
		ContentID:   newTestContent(0xAA),
		Seed:        1,
		Price:       big.NewInt(100),
		PayAsset:    "GATE",
		HeldBalance: big.NewInt(50),
		Status:      StatusInitialized,
	}
	if _, err := Sanitize(esc); err == nil {
		t.Fatal("initialized escrow holding less than price must be rejected")
	}
	esc.Status = StatusCancelled
	if _, err := Sanitize(esc); err == nil {
		t.Fatal("terminal escrow holding funds must be rejected")
	}
	esc.HeldBalance = big.NewInt(0)
	if _, err := Sanitize(esc); err != nil {
		t.Fatalf("sanitize: %v", err)
	}
}
