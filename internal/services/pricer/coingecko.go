package pricer

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/autotrader/internal/clients"
)

// coingeckoIDs well known CoinGecko ids. Other symbols need a price_ids override.
var coingeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"NEAR": "near",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"AVAX": "avalanche-2",
	"LINK": "chainlink",
	"LTC":  "litecoin",
	"TON":  "the-open-network",
	"TRX":  "tron",
}

// CoinGeckoSource prices coins by CoinGecko id.
type CoinGeckoSource struct {
	client *clients.CoinGeckoClient
}

func NewCoinGeckoSource(client *clients.CoinGeckoClient) *CoinGeckoSource {
	return &CoinGeckoSource{client: client}
}

func (s *CoinGeckoSource) Name() string { return "coingecko" }

func (s *CoinGeckoSource) ID(symbol, _ string) string {
	if id, ok := coingeckoIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// Prices quotes in usd, stable quote currencies are treated as dollars.
func (s *CoinGeckoSource) Prices(ctx context.Context, ids []string, _ string) (map[string]decimal.Decimal, error) {
	return s.client.SimplePrice(ctx, ids, "usd")
}
