package trader

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/clients"
	"github.com/vadiminshakov/autotrader/internal/domain"
)

const (
	tdModeCash    = "cash"
	tgtCcyQuote   = "quote_ccy"
	orderStateTTL = 5 * time.Second
)

// OKXTrader trades spot on OKX with market orders sized in the quote currency.
type OKXTrader struct {
	client *clients.OKXClient
	logger *zap.Logger
}

// NewOKXTrader creates a live trader. The client must carry credentials.
func NewOKXTrader(client *clients.OKXClient, logger *zap.Logger) (*OKXTrader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil || !client.Authenticated() {
		return nil, errors.Wrap(domain.ErrConfiguration, "live trading requires OKX credentials")
	}
	return &OKXTrader{client: client, logger: logger}, nil
}

// GetBalances returns non-zero available balances sorted by asset.
func (t *OKXTrader) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	details, err := t.client.Balances(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get okx balances")
	}

	balances := make([]domain.Balance, 0, len(details))
	for _, d := range details {
		free, err := decimal.NewFromString(d.AvailBal)
		if err != nil {
			t.logger.Warn("skip balance with unparsable amount",
				zap.String("ccy", d.Ccy),
				zap.String("availBal", d.AvailBal))
			continue
		}
		if free.IsZero() {
			continue
		}
		balances = append(balances, domain.Balance{Asset: strings.ToUpper(d.Ccy), Free: free})
	}

	sort.Slice(balances, func(i, j int) bool { return balances[i].Asset < balances[j].Asset })
	return balances, nil
}

// PlaceMarketOrder submits one order and reads its state once.
func (t *OKXTrader) PlaceMarketOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	req := orderRequest(order)

	ack, err := t.client.PlaceOrder(ctx, req)
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "place %s order %s", order.Side, req.InstID)
	}

	result := domain.OrderResult{
		OrderID:   ack.OrdID,
		ClientID:  ack.ClOrdID,
		State:     domain.OrderStateUnknown,
		Timestamp: parseMillis(ack.Ts),
	}

	t.logger.Info("order placed",
		zap.String("instId", req.InstID),
		zap.String("side", req.Side),
		zap.String("sz", req.Sz),
		zap.String("ordId", ack.OrdID),
		zap.String("clOrdId", ack.ClOrdID))

	stateCtx, cancel := context.WithTimeout(ctx, orderStateTTL)
	defer cancel()

	details, err := t.client.Order(stateCtx, req.InstID, ack.OrdID)
	if err != nil {
		t.logger.Warn("failed to read order state", zap.String("ordId", ack.OrdID), zap.Error(err))
		return result, nil
	}
	if details.State != "" {
		result.State = details.State
	}

	return result, nil
}

// LookupOrder finds an already submitted order by its client order id.
func (t *OKXTrader) LookupOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	details, err := t.client.OrderByClientID(ctx, order.Pair.InstID(), order.ClientID)
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "look up order %s", order.ClientID)
	}

	result := domain.OrderResult{
		OrderID:   details.OrdID,
		ClientID:  order.ClientID,
		State:     details.State,
		Timestamp: time.Now().UTC(),
	}
	if result.State == "" {
		result.State = domain.OrderStateUnknown
	}
	return result, nil
}

func orderRequest(order domain.Order) clients.OKXOrderRequest {
	return clients.OKXOrderRequest{
		InstID:  order.Pair.InstID(),
		TdMode:  tdModeCash,
		Side:    string(order.Side),
		OrdType: string(order.Type),
		Sz:      order.Amount.String(),
		TgtCcy:  tgtCcyQuote,
		ClOrdID: order.ClientID,
	}
}

func parseMillis(ms string) time.Time {
	d, err := decimal.NewFromString(ms)
	if err != nil || d.IsZero() {
		return time.Now().UTC()
	}
	return time.UnixMilli(d.IntPart()).UTC()
}
