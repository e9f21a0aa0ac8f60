package internal

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/config"
	"github.com/vadiminshakov/autotrader/internal/clients"
	"github.com/vadiminshakov/autotrader/internal/domain"
	"github.com/vadiminshakov/autotrader/internal/metrics"
	"github.com/vadiminshakov/autotrader/internal/services/pricer"
	"github.com/vadiminshakov/autotrader/internal/services/recommender"
	"github.com/vadiminshakov/autotrader/internal/services/trader"
	"github.com/vadiminshakov/autotrader/internal/storage/cycles"
	"github.com/vadiminshakov/autotrader/internal/storage/simstate"
)

// Components are the collaborators built from the configuration. Close
// releases the ones holding resources.
type Components struct {
	Deps Deps
	OKX  *clients.OKXClient

	closers []func() error
}

// Close releases resources in reverse creation order.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close components: %v", errs)
	}
	return nil
}

// BuildComponents creates clients, services and the cycle store for cfg.
// cfg must be validated.
func BuildComponents(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger *zap.Logger) (*Components, error) {
	okx, err := NewOKXClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.OKX.SyncClock {
		if err := okx.SyncTime(ctx); err != nil {
			logger.Warn("exchange clock sync failed, signing with the local clock", zap.Error(err))
		}
	}

	tr, err := newTrader(cfg, okx, logger)
	if err != nil {
		return nil, err
	}

	source, err := NewPriceSource(cfg.MarketData, okx)
	if err != nil {
		return nil, err
	}
	prices := pricer.NewResolver(source, cfg.Quote, cfg.MarketData.PriceIDs, pricer.DefaultStablecoins, logger)

	rec, err := NewRecommender(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var catalog trader.Catalog
	if len(cfg.SupportedCoins) > 0 {
		catalog = trader.NewStaticCatalog(cfg.SupportedCoins)
	} else {
		catalog = trader.NewOKXCatalog(okx, cfg.Quote)
	}

	store, err := cycles.Open(cfg.Log.Format, cfg.Log.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "open cycle log")
	}

	return &Components{
		Deps: Deps{
			Trader:      tr,
			Prices:      prices,
			Recommender: rec,
			Catalog:     catalog,
			Store:       store,
			Metrics:     m,
		},
		OKX:     okx,
		closers: []func() error{store.Close},
	}, nil
}

// NewOKXClient creates the exchange client, public-only without credentials.
func NewOKXClient(cfg config.Config, logger *zap.Logger) (*clients.OKXClient, error) {
	opts := []clients.OKXOption{
		clients.WithOKXDemo(cfg.Demo),
		clients.WithOKXLogger(logger),
		clients.WithOKXRateLimit(cfg.OKX.RateLimit, int(math.Max(1, math.Ceil(cfg.OKX.RateLimit/2)))),
	}
	if cfg.OKX.BaseURL != "" {
		opts = append(opts, clients.WithOKXBaseURL(cfg.OKX.BaseURL))
	}

	client, err := clients.NewOKXClient(cfg.Credential, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create OKX client")
	}
	return client, nil
}

func newTrader(cfg config.Config, okx *clients.OKXClient, logger *zap.Logger) (trader.Trader, error) {
	var live *trader.OKXTrader
	if okx.Authenticated() {
		var err error
		live, err = trader.NewOKXTrader(okx, logger)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Simulate {
		var seed trader.BalanceReader
		if live != nil {
			seed = live
		}
		logger.Info("simulate mode, orders fill on a paper wallet", zap.Bool("seeded_from_account", seed != nil))
		paper := trader.NewSimulateTrader(cfg.Quote, cfg.SimulateInitialBalance, seed, logger)
		if cfg.SimulateStateDir != "" {
			store, err := simstate.NewStore(cfg.SimulateStateDir, cfg.Quote)
			if err != nil {
				return nil, err
			}
			if err := paper.Persist(store); err != nil {
				return nil, err
			}
		}
		return paper, nil
	}

	if live == nil {
		return nil, errors.Wrap(domain.ErrConfiguration, "live trading requires OKX credentials")
	}
	return live, nil
}

// NewPriceSource creates the market data source. okx may be nil.
func NewPriceSource(cfg config.MarketDataConfig, okx *clients.OKXClient) (pricer.Source, error) {
	switch cfg.Provider {
	case "", config.MarketOKX:
		if okx == nil {
			var err error
			opts := []clients.OKXOption{}
			if cfg.BaseURL != "" {
				opts = append(opts, clients.WithOKXBaseURL(cfg.BaseURL))
			}
			if okx, err = clients.NewOKXClient(domain.Credential{}, opts...); err != nil {
				return nil, err
			}
		}
		return pricer.NewOKXSource(okx), nil
	case config.MarketCoinGecko:
		return pricer.NewCoinGeckoSource(clients.NewCoinGeckoClient(cfg.BaseURL, cfg.APIKey)), nil
	case config.MarketBinance:
		return pricer.NewBinanceSource(clients.NewBinanceClient(cfg.BaseURL)), nil
	case config.MarketBybit:
		return pricer.NewBybitSource(clients.NewBybitClient(cfg.BaseURL)), nil
	case config.MarketHyperliquid:
		hl, err := clients.NewHyperliquidClient("", cfg.BaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create hyperliquid client")
		}
		return pricer.NewHyperliquidSource(hl.Info()), nil
	default:
		return nil, errors.Wrapf(domain.ErrConfiguration, "unsupported market data provider: %s", cfg.Provider)
	}
}

// NewRecommender creates the configured recommendation source wrapped with tracing.
func NewRecommender(ctx context.Context, cfg config.Config, logger *zap.Logger) (recommender.Source, error) {
	var source recommender.Source

	switch strings.ToLower(cfg.Recommendation.Provider) {
	case "", config.ProviderAgent:
		source = recommender.NewAgentSource(clients.NewAgentClient(clients.AgentConfig{
			Command:   cfg.Recommendation.AgentCommand,
			AgentPath: cfg.AgentPath,
			Timeout:   cfg.Recommendation.Timeout,
		}, logger))
	case config.ProviderLLM:
		source = recommender.NewChatSource(clients.NewOpenAICompatibleClient(
			cfg.Recommendation.LLMAPIURL, cfg.LLMAPIKey, cfg.Recommendation.Model))
	case config.ProviderGemini:
		gemini, err := clients.NewGeminiClient(ctx, cfg.Recommendation.Model)
		if err != nil {
			return nil, err
		}
		source = recommender.NewChatSource(gemini)
	case config.ProviderNoop:
		source = recommender.NoopSource{}
	default:
		return nil, errors.Wrapf(domain.ErrConfiguration, "unsupported recommendation provider: %s", cfg.Recommendation.Provider)
	}

	return recommender.Traced(cfg.Recommendation.Provider, source, logger), nil
}
