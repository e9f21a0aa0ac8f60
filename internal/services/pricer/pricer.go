// Package pricer resolves asset prices in the quote currency from a market data source.
package pricer

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// DefaultStablecoins are valued 1:1 when the quote currency is USD or one of
// them. Against any other quote they are priced by the source.
var DefaultStablecoins = []string{"USDT", "USDC", "DAI", "BUSD", "USDP", "GUSD", "USDK", "HUSD"}

// Source is a market data provider. Prices are keyed by provider id and
// ids the provider does not know are left out of the result.
type Source interface {
	Name() string
	// ID returns the provider id of a symbol quoted in quote.
	ID(symbol, quote string) string
	Prices(ctx context.Context, ids []string, quote string) (map[string]decimal.Decimal, error)
}

// Resolver translates symbols to provider ids and back.
type Resolver struct {
	source      Source
	quote       string
	overrides   map[string]string
	stablecoins map[string]bool
	logger      *zap.Logger
}

// NewResolver creates a resolver. overrides maps symbols to provider ids and
// takes precedence over the source defaults.
func NewResolver(source Source, quote string, overrides map[string]string, stablecoins []string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stablecoins == nil {
		stablecoins = DefaultStablecoins
	}

	r := &Resolver{
		source:      source,
		quote:       strings.ToUpper(quote),
		overrides:   make(map[string]string, len(overrides)),
		stablecoins: make(map[string]bool, len(stablecoins)),
		logger:      logger,
	}
	for sym, id := range overrides {
		r.overrides[strings.ToUpper(sym)] = id
	}
	for _, s := range stablecoins {
		r.stablecoins[strings.ToUpper(s)] = true
	}
	if r.quote != "USD" && !r.stablecoins[r.quote] {
		logger.Info("quote currency is not a USD stablecoin, stablecoins are priced by the source",
			zap.String("quote", r.quote))
		r.stablecoins = map[string]bool{}
	}
	return r
}

// Quote returns the quote currency.
func (r *Resolver) Quote() string {
	return r.quote
}

// PriceMap returns prices for symbols. Symbols without a price are absent
// from the map, valuation accounts for them.
func (r *Resolver) PriceMap(ctx context.Context, symbols []string) (domain.PriceMap, error) {
	prices := make(domain.PriceMap, len(symbols))
	bySymbol := make(map[string]string)

	for _, s := range symbols {
		sym := strings.ToUpper(s)
		if sym == r.quote || r.stablecoins[sym] {
			prices[sym] = decimal.NewFromInt(1)
			continue
		}
		if _, ok := bySymbol[sym]; ok {
			continue
		}
		bySymbol[sym] = r.providerID(sym)
	}

	if len(bySymbol) == 0 {
		return prices, nil
	}

	ids := make([]string, 0, len(bySymbol))
	seen := make(map[string]bool, len(bySymbol))
	for _, id := range bySymbol {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	byID, err := r.source.Prices(ctx, ids, r.quote)
	if err != nil {
		return nil, err
	}

	for sym, id := range bySymbol {
		price, ok := byID[id]
		if !ok || !price.IsPositive() {
			r.logger.Debug("no price from source",
				zap.String("source", r.source.Name()),
				zap.String("symbol", sym),
				zap.String("id", id))
			continue
		}
		prices[sym] = price
	}

	return prices, nil
}

func (r *Resolver) providerID(sym string) string {
	if id, ok := r.overrides[sym]; ok {
		return id
	}
	return r.source.ID(sym, r.quote)
}
