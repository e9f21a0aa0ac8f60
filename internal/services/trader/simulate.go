package trader

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// DefaultPaperBalance quote currency the paper wallet starts with.
var DefaultPaperBalance = decimal.NewFromInt(10000)

// WalletStore keeps the paper wallet between runs.
type WalletStore interface {
	Load() (map[string]decimal.Decimal, error)
	Save(wallet map[string]decimal.Decimal) error
}

// SimulateTrader is a paper wallet. Orders are logged as SIMULATED and
// never reach the exchange.
type SimulateTrader struct {
	mu      sync.RWMutex
	quote   string
	logger  *zap.Logger
	wallet  map[string]decimal.Decimal
	orders  map[string]domain.OrderResult
	seed    BalanceReader
	seeded  bool
	initial decimal.Decimal
	store   WalletStore
}

// NewSimulateTrader creates a paper trader. With a seed the wallet mirrors
// the live balances on first read, otherwise it holds initial quote currency.
func NewSimulateTrader(quote string, initial decimal.Decimal, seed BalanceReader, logger *zap.Logger) *SimulateTrader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !initial.IsPositive() {
		initial = DefaultPaperBalance
	}

	t := &SimulateTrader{
		quote:   strings.ToUpper(quote),
		logger:  logger,
		wallet:  make(map[string]decimal.Decimal),
		orders:  make(map[string]domain.OrderResult),
		seed:    seed,
		initial: initial,
	}
	if seed == nil {
		t.wallet[t.quote] = initial
		t.seeded = true
	}

	logger.Info("simulate init",
		zap.String("quote", t.quote),
		zap.Bool("mirror_live_balances", seed != nil),
		zap.String("initial", initial.String()))
	return t
}

// Persist restores the wallet saved in store, if any, and saves it after
// every fill from now on.
func (t *SimulateTrader) Persist(store WalletStore) error {
	wallet, err := store.Load()
	if err != nil {
		return errors.Wrap(err, "load paper wallet")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = store
	if wallet != nil {
		t.wallet = wallet
		t.seeded = true
		t.logger.Info("paper wallet restored", zap.Int("assets", len(wallet)))
	}
	return nil
}

// GetBalances returns the paper wallet, seeding it from the live account on first use.
func (t *SimulateTrader) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.seeded {
		live, err := t.seed.GetBalances(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "seed paper wallet")
		}
		for _, b := range live {
			t.wallet[strings.ToUpper(b.Asset)] = b.Free
		}
		t.seeded = true
		t.logger.Info("paper wallet seeded from live balances", zap.Int("assets", len(live)))
	}

	balances := make([]domain.Balance, 0, len(t.wallet))
	for asset, qty := range t.wallet {
		if qty.IsZero() {
			continue
		}
		balances = append(balances, domain.Balance{Asset: asset, Free: qty})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Asset < balances[j].Asset })
	return balances, nil
}

// PlaceMarketOrder fills the order on the paper wallet at order.RefPrice.
func (t *SimulateTrader) PlaceMarketOrder(_ context.Context, order domain.Order) (domain.OrderResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !order.Amount.IsPositive() {
		return domain.OrderResult{}, errors.Errorf("order amount must be positive, got %s", order.Amount.String())
	}

	req := orderRequest(order)
	t.logger.Info("SIMULATED order",
		zap.String("instId", req.InstID),
		zap.String("tdMode", req.TdMode),
		zap.String("side", req.Side),
		zap.String("ordType", req.OrdType),
		zap.String("sz", req.Sz),
		zap.String("tgtCcy", req.TgtCcy),
		zap.String("clOrdId", req.ClOrdID),
		zap.String("ref_price", order.RefPrice.String()))

	filled, err := t.fill(order)
	if err != nil {
		return domain.OrderResult{}, err
	}
	state := domain.OrderStateFilled
	if !filled {
		state = domain.OrderStateUnfilled
	}
	if filled && t.store != nil {
		if err := t.store.Save(t.wallet); err != nil {
			t.logger.Error("failed to save paper wallet", zap.Error(err))
		}
	}

	result := domain.OrderResult{
		OrderID:   "sim-" + order.ClientID,
		ClientID:  order.ClientID,
		State:     state,
		Simulated: true,
		Timestamp: time.Now().UTC(),
	}
	t.orders[result.OrderID] = result
	return result, nil
}

// Order returns a simulated order by id.
func (t *SimulateTrader) Order(id string) (domain.OrderResult, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.orders[id]
	return o, ok
}

// fill applies the order to the wallet. It reports false when the order has
// no reference price and the wallet was left unchanged.
func (t *SimulateTrader) fill(order domain.Order) (bool, error) {
	if !order.RefPrice.IsPositive() {
		t.logger.Warn("simulated order has no reference price, wallet unchanged",
			zap.String("pair", order.Pair.String()))
		return false, nil
	}

	base, quote := order.Pair.Base, order.Pair.Quote
	qty := order.Amount.Div(order.RefPrice)

	switch order.Side {
	case domain.SideBuy:
		if t.wallet[quote].LessThan(order.Amount) {
			return false, &domain.APIError{
				Kind:    domain.ErrOrderRejected,
				Message: "insufficient " + quote + " balance in paper wallet",
			}
		}
		t.wallet[quote] = t.wallet[quote].Sub(order.Amount)
		t.wallet[base] = t.wallet[base].Add(qty)
	case domain.SideSell:
		if t.wallet[base].LessThan(qty) {
			return false, &domain.APIError{
				Kind:    domain.ErrOrderRejected,
				Message: "insufficient " + base + " balance in paper wallet",
			}
		}
		t.wallet[base] = t.wallet[base].Sub(qty)
		t.wallet[quote] = t.wallet[quote].Add(order.Amount)
	default:
		return false, errors.Errorf("unknown side %q", order.Side)
	}

	t.logger.Info("simulate fill",
		zap.String("pair", order.Pair.String()),
		zap.String("side", string(order.Side)),
		zap.String("base_qty", qty.String()),
		zap.String(base, t.wallet[base].String()),
		zap.String(quote, t.wallet[quote].String()))
	return true, nil
}
