package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// BinanceSource fetches real market prices from the Binance public API.
type BinanceSource struct {
	client *binance.Client
}

func NewBinanceSource(client *binance.Client) *BinanceSource {
	return &BinanceSource{client: client}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) ID(symbol, quote string) string {
	return domain.NewPair(symbol, quote).Symbol()
}

func (s *BinanceSource) Prices(ctx context.Context, ids []string, _ string) (map[string]decimal.Decimal, error) {
	prices, err := s.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, &domain.APIError{Kind: domain.ErrNetwork, Message: "binance list prices", Err: err}
	}
	if len(prices) == 0 {
		return nil, errors.New("binance API returned empty prices")
	}

	return pick(ids, func(yield func(id, price string)) {
		for _, p := range prices {
			yield(p.Symbol, p.Price)
		}
	}), nil
}
