package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/domain"
	"github.com/vadiminshakov/autotrader/internal/services/valuation"
)

type compareCmd struct {
	market
}

func (*compareCmd) Name() string     { return "compare" }
func (*compareCmd) Synopsis() string { return "compare the value of two portfolios" }
func (*compareCmd) Usage() string {
	return `compare [-provider okx] [-quote USDT] <a.yaml> <b.yaml>

  Values both portfolios with the same prices and prints b minus a.
`
}

func (c *compareCmd) SetFlags(f *flag.FlagSet) {
	c.market.setFlags(f)
}

func (c *compareCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Error: two portfolio files are required.")
		return subcommands.ExitUsageError
	}

	logger := zap.NewNop()

	prices, err := c.resolver(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating market data source: %v\n", err)
		return subcommands.ExitUsageError
	}

	vals := make([]domain.Valuation, 0, 2)
	for _, name := range f.Args() {
		_, balances, err := readPortfolio(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading portfolio: %v\n", err)
			return subcommands.ExitFailure
		}
		v, err := value(ctx, prices, balances, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching prices: %v\n", err)
			return subcommands.ExitFailure
		}
		vals = append(vals, v)
	}

	renderValuation(os.Stdout, f.Arg(0), vals[0])
	renderValuation(os.Stdout, f.Arg(1), vals[1])
	renderComparison(os.Stdout, valuation.Compare(vals[0], vals[1]))
	return subcommands.ExitSuccess
}
