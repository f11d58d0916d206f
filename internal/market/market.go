package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"CarbonPulse/internal/domain/models"
	"CarbonPulse/internal/domain/service"
	"CarbonPulse/internal/ledger"
	"CarbonPulse/internal/renewal"
	"CarbonPulse/pkg/fixed"
)

// Trade size bounds and the quoted-price tolerance, all scaled.
var (
	DefaultMinTrade = fixed.FromInt(1)
	DefaultMaxTrade = fixed.FromInt(1_000_000)
	// DefaultSlippage is 0.5%: the quoted USD amount may deviate from the
	// oracle-implied amount by at most this fraction.
	DefaultSlippage = fixed.MustParse("0.005")
)

// Config carries the market tunables.
type Config struct {
	MinTrade fixed.Num
	MaxTrade fixed.Num
	Slippage fixed.Num
	// Operator is the spender identity the market settles under; allowance
	// checks run against it.
	Operator string
}

// Market tracks buyer/seller intents and settles credit-for-currency trades
// atomically. One mutex guards positions and both pending lists, making
// each call the serialization point for market state.
type Market struct {
	mu             sync.Mutex
	positions      map[string]*models.CreditPosition
	pendingBuyers  []string
	pendingSellers []string
	paused         bool

	store    *ledger.Store
	registry service.Registry
	credit   service.AssetToken
	currency service.AssetToken
	oracle   service.PriceOracle
	cfg      Config
	now      func() time.Time
	log      zerolog.Logger
}

// New wires a market over the ledger store and its external collaborators.
func New(store *ledger.Store, registry service.Registry, credit, currency service.AssetToken, oracle service.PriceOracle, cfg Config, log zerolog.Logger) *Market {
	if cfg.MinTrade.IsZero() {
		cfg.MinTrade = DefaultMinTrade
	}
	if cfg.MaxTrade.IsZero() {
		cfg.MaxTrade = DefaultMaxTrade
	}
	if cfg.Slippage.IsZero() {
		cfg.Slippage = DefaultSlippage
	}
	return &Market{
		positions: make(map[string]*models.CreditPosition),
		store:     store,
		registry:  registry,
		credit:    credit,
		currency:  currency,
		oracle:    oracle,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With().Str("component", "credit_market").Logger(),
	}
}

// WithClock overrides the time source, for tests.
func (m *Market) WithClock(now func() time.Time) *Market {
	m.now = now
	return m
}

// Pause halts every state-mutating entry point. Read-only queries keep
// working and pending intents persist; this is a circuit breaker, not a
// queue flush.
func (m *Market) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	m.log.Warn().Msg("market paused")
}

// Resume re-opens the market.
func (m *Market) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	m.log.Info().Msg("market resumed")
}

// Paused reports whether the market is halted.
func (m *Market) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *Market) position(participant string) *models.CreditPosition {
	p, ok := m.positions[participant]
	if !ok {
		p = &models.CreditPosition{Participant: participant}
		m.positions[participant] = p
	}
	return p
}

// admitted checks the registration and escrow preconditions. Called outside
// the market lock since it reaches external collaborators.
func (m *Market) admitted(ctx context.Context, participant string) error {
	ok, err := m.registry.IsRegistered(ctx, participant)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrNotRegistered
	}
	ok, err = m.registry.HasPaidEscrow(ctx, participant)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrEscrowUnpaid
	}
	return nil
}

// DeclareBuy registers a buyer intent. Buying and selling are mutually
// exclusive per participant.
func (m *Market) DeclareBuy(ctx context.Context, participant string) error {
	if m.Paused() {
		return models.ErrMarketPaused
	}
	if err := m.admitted(ctx, participant); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		return models.ErrMarketPaused
	}
	p := m.position(participant)
	if p.Selling {
		return models.ErrConflictingIntent
	}
	if p.Buying {
		return nil
	}
	p.Buying = true
	m.pendingBuyers = append(m.pendingBuyers, participant)
	return nil
}

// DeclareSell registers a seller intent. The seller's credit balance must
// cover at least the minimum trade size.
func (m *Market) DeclareSell(ctx context.Context, participant string) error {
	if m.Paused() {
		return models.ErrMarketPaused
	}
	if err := m.admitted(ctx, participant); err != nil {
		return err
	}
	balance, err := m.credit.BalanceOf(ctx, participant)
	if err != nil {
		return err
	}
	if balance.LT(m.cfg.MinTrade) {
		return models.ErrInsufficientBalance
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		return models.ErrMarketPaused
	}
	p := m.position(participant)
	if p.Buying {
		return models.ErrConflictingIntent
	}
	if p.Selling {
		return nil
	}
	p.Selling = true
	m.pendingSellers = append(m.pendingSellers, participant)
	return nil
}

// Trade validates and settles one trade. Validation is fail-closed and
// ordered: intents, size, balances and allowances, backing ratio, then the
// oracle price check. Settlement moves credits seller->buyer and currency
// buyer->seller; if the second leg fails the first is rolled back so no
// partial state survives.
func (m *Market) Trade(ctx context.Context, t models.Trade) error {
	if m.Paused() {
		return models.ErrMarketPaused
	}
	if err := m.admitted(ctx, t.Buyer); err != nil {
		return err
	}
	if err := m.admitted(ctx, t.Seller); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		return models.ErrMarketPaused
	}

	buyer, buyerOK := m.positions[t.Buyer]
	seller, sellerOK := m.positions[t.Seller]
	if !buyerOK || !buyer.Buying || !sellerOK || !seller.Selling {
		return models.ErrConflictingIntent
	}
	if t.CreditAmount.LT(m.cfg.MinTrade) || t.CreditAmount.GT(m.cfg.MaxTrade) {
		return models.ErrTradeSizeOutOfRange
	}
	if err := m.checkFunds(ctx, t); err != nil {
		return err
	}
	if err := m.checkBacking(t); err != nil {
		return err
	}
	if err := m.checkPrice(ctx, t); err != nil {
		return err
	}
	if err := m.settle(ctx, t); err != nil {
		return err
	}

	now := m.now().Unix()
	buyer.Buying = false
	buyer.Interactions++
	buyer.LastTrade = now
	seller.Selling = false
	seller.Interactions++
	seller.LastTrade = now
	m.pendingBuyers = remove(m.pendingBuyers, t.Buyer)
	m.pendingSellers = remove(m.pendingSellers, t.Seller)

	m.log.Info().
		Str("buyer", t.Buyer).
		Str("seller", t.Seller).
		Str("credits", t.CreditAmount.String()).
		Str("usd", t.USDAmount.String()).
		Msg("trade settled")
	return nil
}

func (m *Market) checkFunds(ctx context.Context, t models.Trade) error {
	sellerBal, err := m.credit.BalanceOf(ctx, t.Seller)
	if err != nil {
		return err
	}
	if sellerBal.LT(t.CreditAmount) {
		return models.ErrInsufficientBalance
	}
	sellerAllow, err := m.credit.Allowance(ctx, t.Seller, m.cfg.Operator)
	if err != nil {
		return err
	}
	if sellerAllow.LT(t.CreditAmount) {
		return models.ErrInsufficientAllowance
	}
	buyerBal, err := m.currency.BalanceOf(ctx, t.Buyer)
	if err != nil {
		return err
	}
	if buyerBal.LT(t.USDAmount) {
		return models.ErrInsufficientBalance
	}
	buyerAllow, err := m.currency.Allowance(ctx, t.Buyer, m.cfg.Operator)
	if err != nil {
		return err
	}
	if buyerAllow.LT(t.USDAmount) {
		return models.ErrInsufficientAllowance
	}
	return nil
}

// checkBacking enforces creditAmount * 4 > cumulativeReduction * 3: the
// credits offered must exceed 75% of the sector's recorded mitigation,
// keeping unbacked credits out of the market.
func (m *Market) checkBacking(t models.Trade) error {
	var cumulative fixed.Num
	err := m.store.View(t.Entity, func(st *models.EntityState) error {
		sr := st.Sector(t.Sector)
		if sr == nil || !sr.Active {
			return models.ErrInvalidState
		}
		cumulative = sr.CumulativeReduction
		return nil
	})
	if err != nil {
		return err
	}
	if !t.CreditAmount.MulInt(4).GT(cumulative.MulInt(3)) {
		return models.ErrInsufficientBacking
	}
	return nil
}

// checkPrice compares the quoted USD amount against the oracle-implied
// amount; deviation beyond the slippage tolerance rejects the trade.
func (m *Market) checkPrice(ctx context.Context, t models.Trade) error {
	price, err := m.oracle.Price(ctx)
	if err != nil {
		return err
	}
	expected := t.CreditAmount.Mul(price)
	tolerance := expected.Mul(m.cfg.Slippage)
	if t.USDAmount.Sub(expected).Abs().GT(tolerance) {
		return models.ErrSlippageExceeded
	}
	return nil
}

// settle executes both transfer legs; a failed second leg rolls the first
// back with a compensating transfer so balances end bit-identical to their
// pre-call values.
func (m *Market) settle(ctx context.Context, t models.Trade) error {
	ok, err := m.credit.TransferFrom(ctx, t.Seller, t.Buyer, t.CreditAmount)
	if err != nil || !ok {
		return models.ErrTransferFailed
	}
	ok, err = m.currency.TransferFrom(ctx, t.Buyer, t.Seller, t.USDAmount)
	if err != nil || !ok {
		if rolled, rbErr := m.credit.TransferFrom(ctx, t.Buyer, t.Seller, t.CreditAmount); rbErr != nil || !rolled {
			// Rollback itself failed: balances are inconsistent and need
			// operator intervention.
			m.log.Error().
				Str("buyer", t.Buyer).
				Str("seller", t.Seller).
				Str("credits", t.CreditAmount.String()).
				Msg("settlement rollback failed")
		}
		return models.ErrTransferFailed
	}
	return nil
}

func remove(list []string, item string) []string {
	for i, v := range list {
		if v == item {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Deposit adds renewal-issued carbon credits to the participant's position
// and accrues the discounted renewal reward from the post-deposit balance.
// It implements the renewal engine's credit ledger.
func (m *Market) Deposit(participant string, credits, discount fixed.Num) fixed.Num {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.position(participant)
	p.CarbonCredits = p.CarbonCredits.Add(credits)
	reward := renewal.Reward(p.CarbonCredits, p.Interactions, discount)
	p.RewardBalance = p.RewardBalance.Add(reward)
	return reward
}

// Position returns a copy of one participant's position.
func (m *Market) Position(participant string) (models.CreditPosition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[participant]
	if !ok {
		return models.CreditPosition{}, false
	}
	return *p, true
}

// Positions returns copies of all positions plus the pending intent lists.
func (m *Market) Positions() ([]models.CreditPosition, []string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CreditPosition, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Participant < out[j].Participant })
	buyers := append([]string(nil), m.pendingBuyers...)
	sellers := append([]string(nil), m.pendingSellers...)
	return out, buyers, sellers
}

var _ renewal.CreditLedger = (*Market)(nil)
