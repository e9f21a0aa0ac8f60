// Command autotrader periodically asks a recommendation source for a trade,
// validates it against risk limits and places it on OKX, or on a paper wallet
// in simulate mode.
//
// Usage:
//
//	autotrader --query "keep half in BTC" --interval 60 --simulate
//	autotrader --config config.yaml
//	autotrader --setup
//
// Environment variables:
//
//	OKX_API_KEY, OKX_API_SECRET, OKX_API_PASSPHRASE  exchange credentials, all or none
//	OKX_DEMO                                         demo trading header, true by default
//	LLM_API_KEY                                      key for the llm provider
//	GEMINI_API_KEY                                   key for the gemini provider
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/autotrader/config"
	"github.com/vadiminshakov/autotrader/internal"
	"github.com/vadiminshakov/autotrader/internal/domain"
	"github.com/vadiminshakov/autotrader/internal/logging"
	"github.com/vadiminshakov/autotrader/internal/metrics"
	"github.com/vadiminshakov/autotrader/internal/services/valuation"
	"github.com/vadiminshakov/autotrader/internal/setup"
	"github.com/vadiminshakov/autotrader/internal/trace"
	"github.com/vadiminshakov/autotrader/internal/web"
)

const version = "0.1.0"

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	cfg, err := config.Load(args, os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage()
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	if cfg.Setup || (cfg.Query == "" && isatty.IsTerminal(os.Stdin.Fd())) {
		if _, err := setup.RunTUI(cfg.Raw(), setup.DefaultPath); err != nil {
			fmt.Fprintln(os.Stderr, "setup:", err)
			return exitConfigError
		}
		if cfg, err = config.Load([]string{"--config", setup.DefaultPath}, os.Getenv); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitConfigError
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		return exitConfigError
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	defer logger.Sync()

	shutdownTracing, err := trace.Init(trace.Config{
		Enabled:        cfg.Tracing,
		ServiceName:    "autotrader",
		ServiceVersion: version,
	})
	if err != nil {
		logger.Error("failed to init tracing", zap.Error(err))
		return exitFailure
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	comps, err := internal.BuildComponents(ctx, cfg, m, logger)
	if err != nil {
		logger.Error("failed to build components", zap.Error(err))
		if errors.Is(err, domain.ErrConfiguration) {
			return exitConfigError
		}
		return exitFailure
	}
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Error("failed to close components", zap.Error(err))
		}
	}()

	at, err := internal.NewAutoTrader(cfg, comps.Deps, logger)
	if err != nil {
		logger.Error("failed to create autotrader", zap.Error(err))
		return exitFailure
	}

	loopCtx, loopDone := context.WithCancel(ctx)
	g := new(errgroup.Group)
	g.Go(func() error {
		defer loopDone()
		return at.Run(ctx)
	})
	if cfg.MetricsAddr != "" {
		var reader web.CycleReader
		if r, ok := comps.Deps.Store.(web.CycleReader); ok {
			reader = r
		}
		srv := web.NewServer(cfg.MetricsAddr, statusOf(at), reader, m.Handler(), logger)
		g.Go(func() error {
			if err := srv.Start(loopCtx); err != nil {
				logger.Error("status server stopped", zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("trading loop failed", zap.Error(err))
		return exitFailure
	}
	return exitOK
}

func statusOf(at *internal.AutoTrader) func() web.Status {
	return func() web.Status {
		sum := at.Summary()
		st := web.Status{
			State:     at.State().String(),
			Cycles:    sum.Cycles,
			Succeeded: sum.Succeeded,
			Skipped:   sum.Skipped,
			Failed:    sum.Failed,
			Orders:    sum.Orders,
		}
		if sum.LastValue != nil {
			st.PortfolioValue = valuation.Format(sum.LastValue.Total, sum.LastValue.Quote)
		}
		return st
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: autotrader [--config file.yaml] [--query text] [--interval minutes]
                  [--simulate] [--agent-path path] [--cycles n] [--setup] [query words...]`)
}
