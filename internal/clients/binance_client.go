package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates a public market data client.
func NewBinanceClient(baseURL string) *binance.Client {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return client
}
