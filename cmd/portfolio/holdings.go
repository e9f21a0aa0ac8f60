package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/autotrader/config"
	"github.com/vadiminshakov/autotrader/internal"
	"github.com/vadiminshakov/autotrader/internal/domain"
	"github.com/vadiminshakov/autotrader/internal/services/pricer"
	"github.com/vadiminshakov/autotrader/internal/services/valuation"
)

// portfolioFile is the yaml form of a portfolio:
//
//	quote: USDT
//	holdings:
//	  BTC: "1.0"
//	  USDT: "300"
type portfolioFile struct {
	Quote    string            `yaml:"quote,omitempty"`
	Holdings map[string]string `yaml:"holdings"`
}

func readPortfolio(name string) (quote string, balances []domain.Balance, err error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return "", nil, err
	}

	var f portfolioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(f.Holdings) == 0 {
		return "", nil, fmt.Errorf("%s has no holdings", name)
	}

	for asset, raw := range f.Holdings {
		qty, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return "", nil, fmt.Errorf("%s: invalid quantity %q for %s: %w", name, raw, asset, err)
		}
		if qty.IsNegative() {
			return "", nil, fmt.Errorf("%s: negative quantity for %s", name, asset)
		}
		balances = append(balances, domain.Balance{Asset: strings.ToUpper(asset), Free: qty})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Asset < balances[j].Asset })

	return strings.ToUpper(f.Quote), balances, nil
}

// market flags shared by the subcommands.
type market struct {
	provider string
	quote    string
	baseURL  string
}

func (m *market) setFlags(f *flag.FlagSet) {
	f.StringVar(&m.provider, "provider", config.MarketOKX, "market data provider: okx, coingecko, binance, bybit, hyperliquid")
	f.StringVar(&m.quote, "quote", config.DefaultQuote, "quote currency")
	f.StringVar(&m.baseURL, "base-url", "", "market data API base URL")
}

func (m *market) resolver(logger *zap.Logger) (*pricer.Resolver, error) {
	source, err := internal.NewPriceSource(config.MarketDataConfig{Provider: m.provider, BaseURL: m.baseURL}, nil)
	if err != nil {
		return nil, err
	}
	return pricer.NewResolver(source, strings.ToUpper(m.quote), nil, pricer.DefaultStablecoins, logger), nil
}

func value(ctx context.Context, prices *pricer.Resolver, balances []domain.Balance, logger *zap.Logger) (domain.Valuation, error) {
	symbols := make([]string, 0, len(balances))
	for _, b := range balances {
		symbols = append(symbols, b.Asset)
	}
	pm, err := prices.PriceMap(ctx, symbols)
	if err != nil {
		return domain.Valuation{}, err
	}
	return valuation.ValueInQuote(logger, prices.Quote(), balances, pm), nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	totalStyle  = lipgloss.NewStyle().Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

func renderValuation(w io.Writer, title string, v domain.Valuation) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ASSET", "QUANTITY", "PRICE", "VALUE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, h := range v.Holdings {
		price, val := "n/a", "n/a"
		if h.Priced {
			price = valuation.Format(h.Price, v.Quote)
			val = valuation.Format(h.Value, v.Quote)
		}
		t.Row(h.Asset, h.Quantity.String(), price, val)
	}

	if title != "" {
		fmt.Fprintln(w, totalStyle.Render(title))
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, totalStyle.Render("Total: "+valuation.Format(v.Total, v.Quote)))
	if v.Degraded() {
		fmt.Fprintln(w, warnStyle.Render("No price for: "+strings.Join(v.Missing, ", ")))
	}
}

func renderComparison(w io.Writer, c valuation.Comparison) {
	quote := c.Base.Quote
	fmt.Fprintf(w, "Difference: %s", valuation.Format(c.Diff, quote))
	if !c.Base.Total.IsZero() {
		fmt.Fprintf(w, " (%s%%)", c.Change.Mul(decimal.NewFromInt(100)).StringFixed(2))
	}
	fmt.Fprintln(w)
}
