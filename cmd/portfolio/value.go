package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/config"
	"github.com/vadiminshakov/autotrader/internal"
	"github.com/vadiminshakov/autotrader/internal/domain"
	"github.com/vadiminshakov/autotrader/internal/services/trader"
)

type valueCmd struct {
	market
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "value a portfolio at live market prices" }
func (*valueCmd) Usage() string {
	return `value [-provider okx] [-quote USDT] [portfolio.yaml]

  Prices every holding in the quote currency and prints the total.
  Without a file the OKX account balances are used.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	c.market.setFlags(f)
}

func (c *valueCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Error: at most one portfolio file is expected.")
		return subcommands.ExitUsageError
	}

	logger := zap.NewNop()

	var (
		balances []domain.Balance
		title    = "OKX account"
		err      error
	)
	if f.NArg() == 1 {
		var quote string
		title = f.Arg(0)
		quote, balances, err = readPortfolio(f.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading portfolio: %v\n", err)
			return subcommands.ExitFailure
		}
		if quote != "" {
			c.quote = quote
		}
	} else {
		balances, err = accountBalances(ctx, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading account balances: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	prices, err := c.resolver(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating market data source: %v\n", err)
		return subcommands.ExitUsageError
	}

	v, err := value(ctx, prices, balances, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching prices: %v\n", err)
		return subcommands.ExitFailure
	}

	renderValuation(os.Stdout, title, v)
	return subcommands.ExitSuccess
}

func accountBalances(ctx context.Context, logger *zap.Logger) ([]domain.Balance, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load(nil, os.Getenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Credential.Validate(); err != nil {
		return nil, err
	}

	client, err := internal.NewOKXClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	okx, err := trader.NewOKXTrader(client, logger)
	if err != nil {
		return nil, err
	}
	return okx.GetBalances(ctx)
}
