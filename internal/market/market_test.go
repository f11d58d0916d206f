package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"CarbonPulse/internal/domain/models"
	"CarbonPulse/internal/ledger"
	"CarbonPulse/pkg/fixed"
)

type fakeRegistry struct {
	unregistered map[string]bool
	unpaid       map[string]bool
}

func (r *fakeRegistry) IsRegistered(ctx context.Context, p string) (bool, error) {
	return !r.unregistered[p], nil
}

func (r *fakeRegistry) HasPaidEscrow(ctx context.Context, p string) (bool, error) {
	return !r.unpaid[p], nil
}

type fakeToken struct {
	balances   map[string]fixed.Num
	allowances map[string]fixed.Num
	failAfter  int // fail the Nth TransferFrom (1-based); 0 never fails
	transfers  int
}

func newFakeToken() *fakeToken {
	return &fakeToken{balances: make(map[string]fixed.Num), allowances: make(map[string]fixed.Num)}
}

func (t *fakeToken) BalanceOf(ctx context.Context, p string) (fixed.Num, error) {
	return t.balances[p], nil
}

func (t *fakeToken) Allowance(ctx context.Context, owner, spender string) (fixed.Num, error) {
	return t.allowances[owner], nil
}

func (t *fakeToken) TransferFrom(ctx context.Context, from, to string, amount fixed.Num) (bool, error) {
	t.transfers++
	if t.failAfter > 0 && t.transfers >= t.failAfter {
		return false, nil
	}
	if t.balances[from].LT(amount) {
		return false, nil
	}
	t.balances[from] = t.balances[from].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return true, nil
}

type fixedOracle struct{ price fixed.Num }

func (o fixedOracle) Price(ctx context.Context) (fixed.Num, error) { return o.price, nil }

type fixture struct {
	market   *Market
	store    *ledger.Store
	credit   *fakeToken
	currency *fakeToken
	registry *fakeRegistry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewStore()
	if err := store.Activate("oslo", models.KindCity, "energy", fixed.Zero()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	// Cumulative reduction 100: trades above 75 credits are backed.
	err := store.Update("oslo", func(st *models.EntityState) error {
		st.Sector("energy").CumulativeReduction = fixed.FromInt(100)
		return nil
	})
	if err != nil {
		t.Fatalf("seed reduction: %v", err)
	}

	f := &fixture{
		store:    store,
		credit:   newFakeToken(),
		currency: newFakeToken(),
		registry: &fakeRegistry{unregistered: map[string]bool{}, unpaid: map[string]bool{}},
	}
	f.credit.balances["seller"] = fixed.FromInt(500)
	f.credit.allowances["seller"] = fixed.FromInt(500)
	f.currency.balances["buyer"] = fixed.FromInt(5000)
	f.currency.allowances["buyer"] = fixed.FromInt(5000)

	f.market = New(store, f.registry, f.credit, f.currency, fixedOracle{price: fixed.FromInt(3)}, Config{Operator: "market"}, zerolog.Nop())
	f.market.WithClock(func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) })
	return f
}

func (f *fixture) declareBoth(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := f.market.DeclareBuy(ctx, "buyer"); err != nil {
		t.Fatalf("declare buy: %v", err)
	}
	if err := f.market.DeclareSell(ctx, "seller"); err != nil {
		t.Fatalf("declare sell: %v", err)
	}
}

// goodTrade is backed (100 * 4 > 100 * 3) and priced exactly at oracle.
func goodTrade() models.Trade {
	return models.Trade{
		Buyer:        "buyer",
		Seller:       "seller",
		CreditAmount: fixed.FromInt(100),
		USDAmount:    fixed.FromInt(300),
		Entity:       "oslo",
		Sector:       "energy",
	}
}

func TestDeclareConflictingIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.market.DeclareBuy(ctx, "buyer"); err != nil {
		t.Fatalf("declare buy: %v", err)
	}
	if err := f.market.DeclareSell(ctx, "buyer"); !errors.Is(err, models.ErrConflictingIntent) {
		t.Fatalf("expected ErrConflictingIntent, got %v", err)
	}
}

func TestDeclareBuyUnregistered(t *testing.T) {
	f := newFixture(t)
	f.registry.unregistered["ghost"] = true
	if err := f.market.DeclareBuy(context.Background(), "ghost"); !errors.Is(err, models.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestDeclareBuyEscrowUnpaid(t *testing.T) {
	f := newFixture(t)
	f.registry.unpaid["cheap"] = true
	if err := f.market.DeclareBuy(context.Background(), "cheap"); !errors.Is(err, models.ErrEscrowUnpaid) {
		t.Fatalf("expected ErrEscrowUnpaid, got %v", err)
	}
}

func TestDeclareSellRequiresMinBalance(t *testing.T) {
	f := newFixture(t)
	f.credit.balances["broke"] = fixed.MustParse("0.5")
	if err := f.market.DeclareSell(context.Background(), "broke"); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTradeSettles(t *testing.T) {
	f := newFixture(t)
	f.declareBoth(t)
	if err := f.market.Trade(context.Background(), goodTrade()); err != nil {
		t.Fatalf("trade: %v", err)
	}
	if got := f.credit.balances["buyer"]; !got.Equal(fixed.FromInt(100)) {
		t.Fatalf("buyer credits = %s, want 100", got)
	}
	if got := f.currency.balances["seller"]; !got.Equal(fixed.FromInt(300)) {
		t.Fatalf("seller currency = %s, want 300", got)
	}

	buyer, _ := f.market.Position("buyer")
	seller, _ := f.market.Position("seller")
	if buyer.Buying || seller.Selling {
		t.Fatalf("intent flags not cleared after settlement")
	}
	if buyer.Interactions != 1 || seller.Interactions != 1 {
		t.Fatalf("interactions not counted")
	}
	if buyer.LastTrade == 0 || seller.LastTrade == 0 {
		t.Fatalf("last trade timestamps not set")
	}
	_, buyers, sellers := f.market.Positions()
	if len(buyers) != 0 || len(sellers) != 0 {
		t.Fatalf("pending lists not drained: %v %v", buyers, sellers)
	}
}

func TestTradeWithoutIntent(t *testing.T) {
	f := newFixture(t)
	if err := f.market.Trade(context.Background(), goodTrade()); !errors.Is(err, models.ErrConflictingIntent) {
		t.Fatalf("expected ErrConflictingIntent, got %v", err)
	}
}

func TestTradeSizeBounds(t *testing.T) {
	f := newFixture(t)
	f.declareBoth(t)

	tr := goodTrade()
	tr.CreditAmount = fixed.MustParse("0.5")
	if err := f.market.Trade(context.Background(), tr); !errors.Is(err, models.ErrTradeSizeOutOfRange) {
		t.Fatalf("undersized trade: expected ErrTradeSizeOutOfRange, got %v", err)
	}

	tr = goodTrade()
	tr.CreditAmount = fixed.FromInt(2_000_000)
	if err := f.market.Trade(context.Background(), tr); !errors.Is(err, models.ErrTradeSizeOutOfRange) {
		t.Fatalf("oversized trade: expected ErrTradeSizeOutOfRange, got %v", err)
	}
}

func TestTradeInsufficientAllowance(t *testing.T) {
	f := newFixture(t)
	f.declareBoth(t)
	f.credit.allowances["seller"] = fixed.FromInt(10)
	if err := f.market.Trade(context.Background(), goodTrade()); !errors.Is(err, models.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestTradeBackingRatio(t *testing.T) {
	f := newFixture(t)
	f.declareBoth(t)
	// 75 * 4 = 300 is not strictly greater than 100 * 3: unbacked.
	tr := goodTrade()
	tr.CreditAmount = fixed.FromInt(75)
	tr.USDAmount = fixed.FromInt(225)
	if err := f.market.Trade(context.Background(), tr); !errors.Is(err, models.ErrInsufficientBacking) {
		t.Fatalf("expected ErrInsufficientBacking, got %v", err)
	}
}

func TestTradeSlippage(t *testing.T) {
	f := newFixture(t)
	f.declareBoth(t)
	// Oracle-implied amount is 300; tolerance is 1.5. 302 is out.
	tr := goodTrade()
	tr.USDAmount = fixed.FromInt(302)
	if err := f.market.Trade(context.Background(), tr); !errors.Is(err, models.ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
	// 301.5 is exactly at tolerance: allowed.
	tr.USDAmount = fixed.MustParse("301.5")
	if err := f.market.Trade(context.Background(), tr); err != nil {
		t.Fatalf("trade at tolerance edge: %v", err)
	}
}

func TestTradeSecondLegFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.declareBoth(t)
	f.currency.failAfter = 1 // currency leg always fails

	sellerBefore := f.credit.balances["seller"]
	buyerBefore := f.credit.balances["buyer"]

	if err := f.market.Trade(context.Background(), goodTrade()); !errors.Is(err, models.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if !f.credit.balances["seller"].Equal(sellerBefore) || !f.credit.balances["buyer"].Equal(buyerBefore) {
		t.Fatalf("credit balances changed after failed settlement: seller %s buyer %s",
			f.credit.balances["seller"], f.credit.balances["buyer"])
	}
	// Intents survive the aborted trade.
	buyer, _ := f.market.Position("buyer")
	seller, _ := f.market.Position("seller")
	if !buyer.Buying || !seller.Selling {
		t.Fatalf("intent flags cleared by a failed trade")
	}
}

func TestPauseBlocksMutations(t *testing.T) {
	f := newFixture(t)
	f.declareBoth(t)
	f.market.Pause()

	ctx := context.Background()
	if err := f.market.DeclareBuy(ctx, "late"); !errors.Is(err, models.ErrMarketPaused) {
		t.Fatalf("declare buy while paused: %v", err)
	}
	if err := f.market.DeclareSell(ctx, "seller"); !errors.Is(err, models.ErrMarketPaused) {
		t.Fatalf("declare sell while paused: %v", err)
	}
	if err := f.market.Trade(ctx, goodTrade()); !errors.Is(err, models.ErrMarketPaused) {
		t.Fatalf("trade while paused: %v", err)
	}

	// Reads stay available and intents persist across the pause.
	if _, ok := f.market.Position("buyer"); !ok {
		t.Fatalf("position read failed while paused")
	}
	f.market.Resume()
	if err := f.market.Trade(ctx, goodTrade()); err != nil {
		t.Fatalf("trade after resume: %v", err)
	}
}

func TestDepositAccruesReward(t *testing.T) {
	f := newFixture(t)
	discount := fixed.MustParse("0.9")

	reward := f.market.Deposit("oslo", fixed.FromInt(100), discount)
	// First epoch: 100 * 0.9 * (0 + 1).
	if !reward.Equal(fixed.FromInt(90)) {
		t.Fatalf("reward = %s, want 90", reward)
	}
	p, ok := f.market.Position("oslo")
	if !ok {
		t.Fatalf("position missing after deposit")
	}
	if !p.CarbonCredits.Equal(fixed.FromInt(100)) {
		t.Fatalf("credits = %s, want 100", p.CarbonCredits)
	}
	if !p.RewardBalance.Equal(fixed.FromInt(90)) {
		t.Fatalf("reward balance = %s, want 90", p.RewardBalance)
	}

	// Rewards accumulate, never replace.
	f.market.Deposit("oslo", fixed.FromInt(50), discount)
	p, _ = f.market.Position("oslo")
	if !p.RewardBalance.Equal(fixed.FromInt(225)) { // 90 + 150*0.9
		t.Fatalf("reward balance = %s, want 225", p.RewardBalance)
	}
}
