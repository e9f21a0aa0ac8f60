package trader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/clients"
	"github.com/vadiminshakov/autotrader/internal/domain"
)

func order(side domain.Side, amount, price string) domain.Order {
	return domain.Order{
		ClientID: NewClientOrderID(),
		Pair:     domain.NewPair("BTC", "USDT"),
		Side:     side,
		Type:     domain.OrderTypeMarket,
		Amount:   decimal.RequireFromString(amount),
		RefPrice: decimal.RequireFromString(price),
	}
}

func balanceOf(t *testing.T, tr *SimulateTrader, asset string) decimal.Decimal {
	t.Helper()
	balances, err := tr.GetBalances(context.Background())
	require.NoError(t, err)
	for _, b := range balances {
		if b.Asset == asset {
			return b.Free
		}
	}
	return decimal.Zero
}

func TestSimulateTrader_NewSimulateTrader(t *testing.T) {
	trader := NewSimulateTrader("usdt", decimal.Zero, nil, zap.NewNop())

	balances, err := trader.GetBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "USDT", balances[0].Asset)
	assert.True(t, balances[0].Free.Equal(decimal.NewFromInt(10000)))
}

func TestSimulateTrader_BuyThenSell(t *testing.T) {
	trader := NewSimulateTrader("USDT", decimal.NewFromInt(10000), nil, nil)
	ctx := context.Background()

	res, err := trader.PlaceMarketOrder(ctx, order(domain.SideBuy, "5000", "50000"))
	require.NoError(t, err)
	assert.True(t, res.Simulated)
	assert.Equal(t, domain.OrderStateFilled, res.State)

	stored, ok := trader.Order(res.OrderID)
	require.True(t, ok)
	assert.Equal(t, res.ClientID, stored.ClientID)

	assert.True(t, balanceOf(t, trader, "BTC").Equal(decimal.RequireFromString("0.1")))
	assert.True(t, balanceOf(t, trader, "USDT").Equal(decimal.NewFromInt(5000)))

	_, err = trader.PlaceMarketOrder(ctx, order(domain.SideSell, "2750", "55000"))
	require.NoError(t, err)
	assert.True(t, balanceOf(t, trader, "BTC").Equal(decimal.RequireFromString("0.05")))
	assert.True(t, balanceOf(t, trader, "USDT").Equal(decimal.NewFromInt(7750)))
}

func TestSimulateTrader_NoReferencePrice(t *testing.T) {
	store := &memWallet{}
	trader := NewSimulateTrader("USDT", decimal.NewFromInt(1000), nil, nil)
	require.NoError(t, trader.Persist(store))

	o := order(domain.SideBuy, "500", "1")
	o.RefPrice = decimal.Zero
	res, err := trader.PlaceMarketOrder(context.Background(), o)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStateUnfilled, res.State)
	assert.True(t, res.Simulated)
	assert.True(t, balanceOf(t, trader, "USDT").Equal(decimal.NewFromInt(1000)))
	assert.Zero(t, store.saves)
}

func TestSimulateTrader_InsufficientBalance(t *testing.T) {
	trader := NewSimulateTrader("USDT", decimal.NewFromInt(100), nil, nil)

	_, err := trader.PlaceMarketOrder(context.Background(), order(domain.SideBuy, "5000", "50000"))
	assert.ErrorIs(t, err, domain.ErrOrderRejected)

	_, err = trader.PlaceMarketOrder(context.Background(), order(domain.SideSell, "50", "50000"))
	assert.ErrorIs(t, err, domain.ErrOrderRejected)

	assert.True(t, balanceOf(t, trader, "USDT").Equal(decimal.NewFromInt(100)))
}

func TestSimulateTrader_NeverPostsOrders(t *testing.T) {
	var posts, gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		gets.Add(1)
		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"details":[
			{"ccy":"BTC","availBal":"1"},{"ccy":"USDT","availBal":"300"}]}]}`)
	}))
	defer srv.Close()

	client, err := clients.NewOKXClient(
		domain.Credential{APIKey: "k", APISecret: "s", Passphrase: "p"},
		clients.WithOKXBaseURL(srv.URL),
		clients.WithOKXRateLimit(0, 0),
	)
	require.NoError(t, err)
	live, err := NewOKXTrader(client, nil)
	require.NoError(t, err)

	trader := NewSimulateTrader("USDT", decimal.Zero, live, nil)

	balances, err := trader.GetBalances(context.Background())
	require.NoError(t, err)
	assert.Len(t, balances, 2)

	for _, o := range []domain.Order{
		order(domain.SideBuy, "300", "84417"),
		order(domain.SideSell, "1000", "84417"),
	} {
		_, err := trader.PlaceMarketOrder(context.Background(), o)
		require.NoError(t, err)
	}

	_, err = trader.GetBalances(context.Background())
	require.NoError(t, err)

	assert.Zero(t, posts.Load())
	assert.Equal(t, int32(1), gets.Load(), "live balances are read once")
}

type memWallet struct {
	saved map[string]decimal.Decimal
	saves int
}

func (m *memWallet) Load() (map[string]decimal.Decimal, error) {
	return m.saved, nil
}

func (m *memWallet) Save(wallet map[string]decimal.Decimal) error {
	m.saved = make(map[string]decimal.Decimal, len(wallet))
	for k, v := range wallet {
		m.saved[k] = v
	}
	m.saves++
	return nil
}

func TestSimulateTrader_Persist(t *testing.T) {
	store := &memWallet{}
	first := NewSimulateTrader("USDT", decimal.NewFromInt(10000), nil, nil)
	require.NoError(t, first.Persist(store))

	_, err := first.PlaceMarketOrder(context.Background(), order(domain.SideBuy, "5000", "50000"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)

	second := NewSimulateTrader("USDT", decimal.NewFromInt(10000), nil, nil)
	require.NoError(t, second.Persist(store))

	assert.True(t, balanceOf(t, second, "BTC").Equal(decimal.RequireFromString("0.1")))
	assert.True(t, balanceOf(t, second, "USDT").Equal(decimal.NewFromInt(5000)))
}
