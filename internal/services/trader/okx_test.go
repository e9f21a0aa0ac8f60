package trader

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/autotrader/internal/clients"
	"github.com/vadiminshakov/autotrader/internal/domain"
)

func newOKXTrader(t *testing.T, handler http.HandlerFunc) *OKXTrader {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := clients.NewOKXClient(
		domain.Credential{APIKey: "k", APISecret: "s", Passphrase: "p"},
		clients.WithOKXBaseURL(srv.URL),
		clients.WithOKXRateLimit(0, 0),
	)
	require.NoError(t, err)

	tr, err := NewOKXTrader(client, nil)
	require.NoError(t, err)
	return tr
}

func TestOKXTrader_GetBalances(t *testing.T) {
	tr := newOKXTrader(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"details":[
			{"ccy":"usdt","availBal":"300"},
			{"ccy":"BTC","availBal":"1.0"},
			{"ccy":"DUST","availBal":"0"},
			{"ccy":"BAD","availBal":"n/a"}]}]}`)
	})

	balances, err := tr.GetBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "BTC", balances[0].Asset)
	assert.Equal(t, "USDT", balances[1].Asset)
	assert.True(t, decimal.NewFromInt(300).Equal(balances[1].Free))
}

func TestOKXTrader_PlaceMarketOrder(t *testing.T) {
	tr := newOKXTrader(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req clients.OKXOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "NEAR-USDT", req.InstID)
			assert.Equal(t, "sell", req.Side)
			assert.Equal(t, "cash", req.TdMode)
			assert.Equal(t, "market", req.OrdType)
			assert.Equal(t, "quote_ccy", req.TgtCcy)
			assert.Equal(t, "125.5", req.Sz)
			assert.Len(t, req.ClOrdID, 32)
			_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"ordId":"42","clOrdId":"`+req.ClOrdID+`","sCode":"0","sMsg":"","ts":"1695190491421"}]}`)
		case http.MethodGet:
			assert.Equal(t, "42", r.URL.Query().Get("ordId"))
			_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"ordId":"42","state":"filled","accFillSz":"50","avgPx":"2.51"}]}`)
		}
	})

	o := BuildOrder(domain.ActionSell, "near", "USDT", decimal.RequireFromString("125.5"), domain.PriceMap{"NEAR": decimal.RequireFromString("2.5")})
	res, err := tr.PlaceMarketOrder(context.Background(), o)
	require.NoError(t, err)

	assert.Equal(t, "42", res.OrderID)
	assert.Equal(t, o.ClientID, res.ClientID)
	assert.Equal(t, domain.OrderStateFilled, res.State)
	assert.False(t, res.Simulated)
	assert.Equal(t, int64(1695190491421), res.Timestamp.UnixMilli())
}

func TestOKXTrader_OrderStateUnavailable(t *testing.T) {
	tr := newOKXTrader(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"ordId":"7","sCode":"0"}]}`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	res, err := tr.PlaceMarketOrder(context.Background(), BuildOrder(domain.ActionBuy, "BTC", "USDT", decimal.NewFromInt(10), nil))
	require.NoError(t, err)
	assert.Equal(t, "7", res.OrderID)
	assert.Equal(t, domain.OrderStateUnknown, res.State)
}

func TestOKXTrader_DuplicateClientIDLooksUpOrder(t *testing.T) {
	var clOrdID string
	tr := newOKXTrader(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, `{"code":"1","msg":"","data":[{"ordId":"","clOrdId":"","sCode":"51016","sMsg":"Duplicated clOrdId"}]}`)
			return
		}
		clOrdID = r.URL.Query().Get("clOrdId")
		assert.Equal(t, "BTC-USDT", r.URL.Query().Get("instId"))
		assert.Empty(t, r.URL.Query().Get("ordId"))
		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"ordId":"99","clOrdId":"`+clOrdID+`","state":"filled"}]}`)
	})

	o := BuildOrder(domain.ActionBuy, "BTC", "USDT", decimal.NewFromInt(10), nil)
	res, err := NewExecutor(tr, testRetrier(), nil).Submit(context.Background(), o)
	require.NoError(t, err)

	assert.Equal(t, o.ClientID, clOrdID)
	assert.Equal(t, "99", res.OrderID)
	assert.Equal(t, o.ClientID, res.ClientID)
	assert.Equal(t, domain.OrderStateFilled, res.State)
}

func TestNewOKXTrader_RequiresCredentials(t *testing.T) {
	client, err := clients.NewOKXClient(domain.Credential{})
	require.NoError(t, err)

	_, err = NewOKXTrader(client, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOKXCatalog(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[
			{"instId":"BTC-USDT","baseCcy":"BTC","quoteCcy":"USDT","state":"live"},
			{"instId":"NEAR-USDT","baseCcy":"NEAR","quoteCcy":"USDT","state":"live"},
			{"instId":"OLD-USDT","baseCcy":"OLD","quoteCcy":"USDT","state":"suspend"},
			{"instId":"ETH-USDC","baseCcy":"ETH","quoteCcy":"USDC","state":"live"}]}`)
	}))
	defer srv.Close()

	client, err := clients.NewOKXClient(domain.Credential{}, clients.WithOKXBaseURL(srv.URL), clients.WithOKXRateLimit(0, 0))
	require.NoError(t, err)

	catalog := NewOKXCatalog(client, "usdt")
	for i := 0; i < 2; i++ {
		coins, err := catalog.SupportedCoins(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"BTC": true, "NEAR": true}, coins)
	}
	assert.Equal(t, 1, calls)

	static, err := NewStaticCatalog([]string{" eth", "btc"}).SupportedCoins(context.Background())
	require.NoError(t, err)
	assert.True(t, static["ETH"])
	assert.False(t, static["NEAR"])
}
