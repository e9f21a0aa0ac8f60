package trader

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/domain"
	"github.com/vadiminshakov/autotrader/pkg/retrier"
)

// codeDuplicateClientID is the OKX sCode for a clOrdId that was already used.
const codeDuplicateClientID = "51016"

// Executor submits at most one order per call, retrying transient failures
// with the same client order id.
type Executor struct {
	trader  Trader
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewExecutor creates an executor. The retrier should only retry transient errors.
func NewExecutor(trader Trader, r *retrier.Retrier, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if r == nil {
		r = retrier.New(retrier.WithRetryIf(domain.IsTransient))
	}
	return &Executor{trader: trader, retrier: r, logger: logger}
}

// BuildOrder builds a market order for a validated trade.
func BuildOrder(action domain.Action, coin, quote string, amount decimal.Decimal, prices domain.PriceMap) domain.Order {
	pair := domain.NewPair(coin, quote)
	return domain.Order{
		ClientID: NewClientOrderID(),
		Pair:     pair,
		Side:     action.Side(),
		Type:     domain.OrderTypeMarket,
		Amount:   amount,
		RefPrice: prices[pair.Base],
	}
}

// NewClientOrderID returns an id accepted by OKX clOrdId (alphanumeric, up to 32 chars).
func NewClientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Submit places the order.
func (e *Executor) Submit(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	start := time.Now()

	result, err := retrier.DoWithData(e.retrier, ctx, func(ctx context.Context) (domain.OrderResult, error) {
		return e.trader.PlaceMarketOrder(ctx, order)
	})
	if isDuplicateClientID(err) {
		result, err = e.recover(ctx, order, err)
	}
	if err != nil {
		e.logger.Error("order failed",
			zap.String("pair", order.Pair.String()),
			zap.String("side", string(order.Side)),
			zap.String("amount", order.Amount.String()),
			zap.String("clOrdId", order.ClientID),
			zap.Error(err))
		return domain.OrderResult{}, err
	}

	e.logger.Info("order done",
		zap.String("pair", order.Pair.String()),
		zap.String("side", string(order.Side)),
		zap.String("amount", order.Amount.String()),
		zap.String("order_id", result.OrderID),
		zap.String("state", result.State),
		zap.Bool("simulated", result.Simulated),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

// recover resolves a duplicate clOrdId rejection. An earlier attempt reached
// the exchange even though its response was lost, so the order exists.
func (e *Executor) recover(ctx context.Context, order domain.Order, rejected error) (domain.OrderResult, error) {
	lookup, ok := e.trader.(OrderLookup)
	if !ok {
		return domain.OrderResult{}, rejected
	}

	result, err := retrier.DoWithData(e.retrier, ctx, func(ctx context.Context) (domain.OrderResult, error) {
		return lookup.LookupOrder(ctx, order)
	})
	if err != nil {
		e.logger.Error("order rejected as duplicate and not found",
			zap.String("clOrdId", order.ClientID),
			zap.Error(err))
		return domain.OrderResult{}, rejected
	}

	e.logger.Warn("order was placed by an earlier attempt",
		zap.String("clOrdId", order.ClientID),
		zap.String("order_id", result.OrderID),
		zap.String("state", result.State))
	return result, nil
}

func isDuplicateClientID(err error) bool {
	var apiErr *domain.APIError
	return errors.As(err, &apiErr) && errors.Is(apiErr.Kind, domain.ErrOrderRejected) && apiErr.Code == codeDuplicateClientID
}
