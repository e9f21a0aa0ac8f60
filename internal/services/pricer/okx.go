package pricer

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/autotrader/internal/clients"
	"github.com/vadiminshakov/autotrader/internal/domain"
)

// OKXSource prices spot instruments from the OKX tickers endpoint.
type OKXSource struct {
	client *clients.OKXClient
}

func NewOKXSource(client *clients.OKXClient) *OKXSource {
	return &OKXSource{client: client}
}

func (s *OKXSource) Name() string { return "okx" }

func (s *OKXSource) ID(symbol, quote string) string {
	return domain.NewPair(symbol, quote).InstID()
}

func (s *OKXSource) Prices(ctx context.Context, ids []string, _ string) (map[string]decimal.Decimal, error) {
	tickers, err := s.client.Tickers(ctx, "SPOT")
	if err != nil {
		return nil, err
	}

	return pick(ids, func(yield func(id, price string)) {
		for _, t := range tickers {
			yield(t.InstID, t.Last)
		}
	}), nil
}

// pick keeps the wanted ids from a provider listing, skipping unparsable prices.
func pick(ids []string, list func(yield func(id, price string))) map[string]decimal.Decimal {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	out := make(map[string]decimal.Decimal, len(ids))
	list(func(id, price string) {
		if !wanted[id] {
			return
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return
		}
		out[id] = p
	})
	return out
}
