package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com"

// CoinGeckoClient reads the public simple price endpoint.
type CoinGeckoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCoinGeckoClient creates a client. apiKey is optional and sent as the demo key header.
func NewCoinGeckoClient(baseURL, apiKey string) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	return &CoinGeckoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: okxTimeout},
	}
}

// SimplePrice returns prices of coin ids in the vs currency, e.g. "usd".
func (c *CoinGeckoClient) SimplePrice(ctx context.Context, ids []string, vs string) (map[string]decimal.Decimal, error) {
	q := url.Values{
		"ids":           {strings.Join(ids, ",")},
		"vs_currencies": {vs},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.APIError{Kind: domain.ErrNetwork, Message: "coingecko request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.APIError{Kind: domain.ErrNetwork, HTTPStatus: resp.StatusCode, Message: "read coingecko response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.APIError{
			Kind:       classifyHTTPStatus(resp.StatusCode),
			HTTPStatus: resp.StatusCode,
			Message:    truncate(string(body), 256),
		}
	}

	var raw map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode coingecko prices")
	}

	out := make(map[string]decimal.Decimal, len(raw))
	for id, byCurrency := range raw {
		if p, ok := byCurrency[vs]; ok {
			out[id] = p
		}
	}
	return out, nil
}
