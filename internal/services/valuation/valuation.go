// Package valuation values balances in the quote currency.
package valuation

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// ValueInQuote returns Σ quantity × price. An asset without a price
// contributes zero and is reported in Missing with a warning.
// The result does not depend on the order of balances.
func ValueInQuote(logger *zap.Logger, quote string, balances []domain.Balance, prices domain.PriceMap) domain.Valuation {
	if logger == nil {
		logger = zap.NewNop()
	}

	merged := make(map[string]decimal.Decimal, len(balances))
	for _, b := range balances {
		asset := strings.ToUpper(b.Asset)
		merged[asset] = merged[asset].Add(b.Free)
	}

	assets := make([]string, 0, len(merged))
	for a := range merged {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	v := domain.Valuation{
		Quote:    strings.ToUpper(quote),
		Total:    decimal.Zero,
		Holdings: make([]domain.HoldingValue, 0, len(assets)),
	}

	for _, asset := range assets {
		qty := merged[asset]
		price, ok := prices[asset]

		h := domain.HoldingValue{Asset: asset, Quantity: qty, Price: decimal.Zero, Value: decimal.Zero}
		if ok {
			h.Price = price
			h.Value = qty.Mul(price)
			h.Priced = true
			v.Total = v.Total.Add(h.Value)
		} else {
			v.Missing = append(v.Missing, asset)
			logger.Warn("no price for asset, valued at zero",
				zap.String("asset", asset),
				zap.String("quantity", qty.String()),
				zap.String("quote", v.Quote))
		}
		v.Holdings = append(v.Holdings, h)
	}

	return v
}

// Comparison difference between two valuations in the same quote currency.
type Comparison struct {
	Base   domain.Valuation
	Other  domain.Valuation
	Diff   decimal.Decimal
	Change decimal.Decimal // relative to Base, zero when Base is empty
}

// Compare returns other minus base.
func Compare(base, other domain.Valuation) Comparison {
	c := Comparison{
		Base:   base,
		Other:  other,
		Diff:   other.Total.Sub(base.Total),
		Change: decimal.Zero,
	}
	if !base.Total.IsZero() {
		c.Change = c.Diff.Div(base.Total)
	}
	return c
}
