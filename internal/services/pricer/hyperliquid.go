package pricer

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// HyperliquidSource fetches mid prices from the Hyperliquid public Info API.
// Mids are USD denominated and used as-is for stable quote currencies.
type HyperliquidSource struct {
	info *hyperliquid.Info
}

func NewHyperliquidSource(info *hyperliquid.Info) *HyperliquidSource {
	return &HyperliquidSource{info: info}
}

func (s *HyperliquidSource) Name() string { return "hyperliquid" }

// ID returns the base coin, Hyperliquid mids are keyed by it.
func (s *HyperliquidSource) ID(symbol, _ string) string {
	return strings.ToUpper(symbol)
}

func (s *HyperliquidSource) Prices(ctx context.Context, ids []string, _ string) (map[string]decimal.Decimal, error) {
	if s.info == nil {
		return nil, fmt.Errorf("hyperliquid info client is nil")
	}

	mids, err := s.info.AllMids(ctx)
	if err != nil {
		return nil, &domain.APIError{Kind: domain.ErrNetwork, Message: "hyperliquid mids", Err: err}
	}

	return pick(ids, func(yield func(id, price string)) {
		for coin, mid := range mids {
			yield(coin, mid)
		}
	}), nil
}
