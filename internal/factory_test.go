package internal

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/config"
	"github.com/vadiminshakov/autotrader/internal/domain"
	"github.com/vadiminshakov/autotrader/internal/services/pricer"
	"github.com/vadiminshakov/autotrader/internal/services/recommender"
	"github.com/vadiminshakov/autotrader/internal/services/trader"
	"github.com/vadiminshakov/autotrader/internal/storage/cycles"
	"github.com/vadiminshakov/autotrader/internal/storage/simstate"
)

func simulateConfig(t *testing.T) config.Config {
	t.Helper()
	syncClock := false
	cfg, err := config.Parse(config.ConfigTmp{
		Query:          "q",
		Simulate:       true,
		SupportedCoins: []string{"btc"},
		Recommendation: config.RecommendationTmp{Provider: config.ProviderNoop},
		Log:            config.LogTmp{Format: config.LogFormatJSONL, Dir: t.TempDir()},
		OKX:            config.OKXTmp{SyncClock: &syncClock},
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildComponents_SimulateWithoutCredentials(t *testing.T) {
	comps, err := BuildComponents(context.Background(), simulateConfig(t), nil, zap.NewNop())
	require.NoError(t, err)
	defer comps.Close()

	assert.False(t, comps.OKX.Authenticated())
	assert.IsType(t, &trader.SimulateTrader{}, comps.Deps.Trader)
	assert.IsType(t, &pricer.Resolver{}, comps.Deps.Prices)
	assert.IsType(t, trader.StaticCatalog{}, comps.Deps.Catalog)
	assert.IsType(t, &cycles.JSONLStore{}, comps.Deps.Store)

	balances, err := comps.Deps.Trader.GetBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "USDT", balances[0].Asset)

	raw, err := comps.Deps.Recommender.Recommend(context.Background(), recommender.Request{Query: "q"})
	require.NoError(t, err)
	assert.Contains(t, raw, "HOLD")

	at, err := NewAutoTrader(simulateConfig(t), comps.Deps, nil)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, at.State())
}

func TestBuildComponents_PersistentPaperWallet(t *testing.T) {
	cfg := simulateConfig(t)
	cfg.SimulateStateDir = t.TempDir()

	comps, err := BuildComponents(context.Background(), cfg, nil, zap.NewNop())
	require.NoError(t, err)
	defer comps.Close()

	_, err = comps.Deps.Trader.PlaceMarketOrder(context.Background(), domain.Order{
		ClientID: "c1",
		Pair:     domain.NewPair("BTC", "USDT"),
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeMarket,
		Amount:   decimal.NewFromInt(1000),
		RefPrice: decimal.NewFromInt(50000),
	})
	require.NoError(t, err)

	store, err := simstate.NewStore(cfg.SimulateStateDir, cfg.Quote)
	require.NoError(t, err)
	wallet, err := store.Load()
	require.NoError(t, err)
	assert.True(t, wallet["USDT"].Equal(decimal.NewFromInt(9000)))
	assert.True(t, wallet["BTC"].Equal(decimal.RequireFromString("0.02")))
}

func TestBuildComponents_LiveRequiresCredentials(t *testing.T) {
	cfg := simulateConfig(t)
	cfg.Simulate = false

	_, err := BuildComponents(context.Background(), cfg, nil, zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBuildComponents_PartialCredentials(t *testing.T) {
	cfg := simulateConfig(t)
	cfg.Credential = domain.Credential{APIKey: "key"}

	_, err := BuildComponents(context.Background(), cfg, nil, zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewPriceSource(t *testing.T) {
	tests := []struct {
		provider string
		name     string
	}{
		{config.MarketOKX, "okx"},
		{config.MarketCoinGecko, "coingecko"},
		{config.MarketBinance, "binance"},
		{config.MarketBybit, "bybit"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			source, err := NewPriceSource(config.MarketDataConfig{Provider: tt.provider}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.name, source.Name())
		})
	}

	_, err := NewPriceSource(config.MarketDataConfig{Provider: "kraken"}, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewRecommender(t *testing.T) {
	cfg := simulateConfig(t)

	for _, provider := range []string{config.ProviderAgent, config.ProviderLLM, config.ProviderNoop} {
		cfg.Recommendation.Provider = provider
		source, err := NewRecommender(context.Background(), cfg, nil)
		require.NoError(t, err, provider)
		assert.NotNil(t, source)
	}

	cfg.Recommendation.Provider = "oracle"
	_, err := NewRecommender(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
