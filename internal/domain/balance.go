package domain

import (
	"github.com/shopspring/decimal"
)

// Balance free quantity of a single held asset.
type Balance struct {
	Asset string          `json:"asset"`
	Free  decimal.Decimal `json:"free"`
}

// PriceMap unit prices in the quote currency keyed by asset symbol.
type PriceMap map[string]decimal.Decimal

// HoldingValue valuation of a single balance.
type HoldingValue struct {
	Asset    string          `json:"asset"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
	Priced   bool            `json:"priced"`
}

// Valuation portfolio value in the quote currency.
type Valuation struct {
	Quote    string          `json:"quote"`
	Total    decimal.Decimal `json:"total"`
	Holdings []HoldingValue  `json:"holdings"`
	// Missing assets without a price, valued at zero.
	Missing []string `json:"missing,omitempty"`
}

// Degraded reports whether some holdings were valued without a price.
func (v Valuation) Degraded() bool {
	return len(v.Missing) > 0
}

// ValueOf returns the value of one asset and whether it was priced.
func (v Valuation) ValueOf(asset string) (decimal.Decimal, bool) {
	for _, h := range v.Holdings {
		if h.Asset == asset {
			return h.Value, h.Priced
		}
	}
	return decimal.Zero, false
}
