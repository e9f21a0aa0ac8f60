package pricer

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// BybitSource prices spot symbols from Bybit v5 tickers.
type BybitSource struct {
	client *bybit.Client
}

func NewBybitSource(client *bybit.Client) *BybitSource {
	return &BybitSource{client: client}
}

func (s *BybitSource) Name() string { return "bybit" }

func (s *BybitSource) ID(symbol, quote string) string {
	return domain.NewPair(symbol, quote).Symbol()
}

func (s *BybitSource) Prices(_ context.Context, ids []string, _ string) (map[string]decimal.Decimal, error) {
	result, err := s.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
	})
	if err != nil {
		return nil, &domain.APIError{Kind: domain.ErrNetwork, Message: "bybit tickers", Err: err}
	}
	if result.Result.Spot == nil {
		return map[string]decimal.Decimal{}, nil
	}

	return pick(ids, func(yield func(id, price string)) {
		for _, t := range result.Result.Spot.List {
			yield(string(t.Symbol), t.LastPrice)
		}
	}), nil
}
