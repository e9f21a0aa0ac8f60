// Package recommender asks an external source for one trade decision per cycle.
package recommender

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

const querySuffix = ". Please analyze and provide a trade recommendation."

// SystemPrompt instructs chat models to answer with the decision contract.
const SystemPrompt = `You manage a spot cryptocurrency portfolio.
Given the user's strategy and the current portfolio, decide on at most one trade.
Answer with a single JSON object and nothing else:
{"action": "BUY" | "SELL" | "HOLD", "coin": "<symbol>", "amount_usd": <number>, "reasoning": "<short text>"}
amount_usd is the order size in the quote currency. Use HOLD when no trade is warranted.`

// Portfolio is the state shared with the recommendation source.
type Portfolio struct {
	Quote           string                `json:"quote"`
	TotalValue      decimal.Decimal       `json:"total_value"`
	Holdings        []domain.HoldingValue `json:"holdings"`
	Unpriced        []string              `json:"unpriced,omitempty"`
	MaxTradeSizeUSD decimal.Decimal       `json:"max_trade_size_usd"`
}

// NewPortfolio builds the prompt portfolio from a valuation.
func NewPortfolio(v domain.Valuation, maxTrade decimal.Decimal) Portfolio {
	return Portfolio{
		Quote:           v.Quote,
		TotalValue:      v.Total,
		Holdings:        v.Holdings,
		Unpriced:        v.Missing,
		MaxTradeSizeUSD: maxTrade,
	}
}

// Request is one recommendation request.
type Request struct {
	Query     string
	Portfolio Portfolio
}

// Source returns the raw text of a recommendation.
type Source interface {
	Recommend(ctx context.Context, req Request) (string, error)
}

// EnhanceQuery asks for a recommendation explicitly unless the query already does.
func EnhanceQuery(query string) string {
	query = strings.TrimSpace(query)
	if strings.Contains(strings.ToLower(query), "recommend") {
		return query
	}
	return strings.TrimRight(query, ". ") + querySuffix
}

// BuildPrompt renders the query and the serialized portfolio.
func BuildPrompt(req Request) (string, error) {
	portfolio, err := json.MarshalIndent(req.Portfolio, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "serialize portfolio")
	}

	var b strings.Builder
	b.WriteString(EnhanceQuery(req.Query))
	b.WriteString("\n\nCurrent portfolio:\n")
	b.Write(portfolio)
	return b.String(), nil
}
