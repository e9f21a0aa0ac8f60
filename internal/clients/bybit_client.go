package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient creates a public market data client.
func NewBybitClient(baseURL string) *bybit.Client {
	client := bybit.NewClient()
	if baseURL != "" {
		client = client.WithBaseURL(baseURL)
	}

	return client
}
