package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

const (
	DefaultOKXBaseURL = "https://www.okx.com"

	okxTimeout        = 15 * time.Second
	okxRequestsPerSec = 10
	okxBurst          = 5

	pathServerTime  = "/api/v5/public/time"
	pathInstruments = "/api/v5/public/instruments"
	pathTicker      = "/api/v5/market/ticker"
	pathTickers     = "/api/v5/market/tickers"
	pathBalance     = "/api/v5/account/balance"
	pathOrder       = "/api/v5/trade/order"

	headerSimulated = "x-simulated-trading"
)

// OKXClient is a REST client for the OKX v5 API.
// Without credentials only public endpoints are available.
type OKXClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *OKXSigner
	demo       bool
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// OKXOption configures the OKXClient.
type OKXOption func(*OKXClient)

// WithOKXBaseURL overrides the API host.
func WithOKXBaseURL(u string) OKXOption {
	return func(c *OKXClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithOKXHTTPClient sets the HTTP client.
func WithOKXHTTPClient(hc *http.Client) OKXOption {
	return func(c *OKXClient) {
		c.httpClient = hc
	}
}

// WithOKXDemo marks requests as demo trading.
func WithOKXDemo(demo bool) OKXOption {
	return func(c *OKXClient) {
		c.demo = demo
	}
}

// WithOKXRateLimit sets the client side request limit. Zero disables it.
func WithOKXRateLimit(perSecond float64, burst int) OKXOption {
	return func(c *OKXClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithOKXLogger sets the logger.
func WithOKXLogger(l *zap.Logger) OKXOption {
	return func(c *OKXClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewOKXClient creates a client. An empty credential gives a public-only
// client, a partial one is a configuration error.
func NewOKXClient(cred domain.Credential, opts ...OKXOption) (*OKXClient, error) {
	c := &OKXClient{
		baseURL:    DefaultOKXBaseURL,
		httpClient: &http.Client{Timeout: okxTimeout},
		limiter:    rate.NewLimiter(okxRequestsPerSec, okxBurst),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if !cred.Empty() {
		signer, err := NewOKXSigner(cred)
		if err != nil {
			return nil, err
		}
		c.signer = signer
	}

	return c, nil
}

// Authenticated reports whether private endpoints can be called.
func (c *OKXClient) Authenticated() bool {
	return c.signer != nil
}

// Signer returns the request signer, nil for public clients.
func (c *OKXClient) Signer() *OKXSigner {
	return c.signer
}

type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// OKXInstrument spot instrument metadata.
type OKXInstrument struct {
	InstID   string `json:"instId"`
	BaseCcy  string `json:"baseCcy"`
	QuoteCcy string `json:"quoteCcy"`
	State    string `json:"state"`
	MinSz    string `json:"minSz"`
}

// OKXTicker last trade of an instrument.
type OKXTicker struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
}

// OKXBalanceDetail per currency balance.
type OKXBalanceDetail struct {
	Ccy      string `json:"ccy"`
	AvailBal string `json:"availBal"`
	CashBal  string `json:"cashBal"`
}

type okxAccountBalance struct {
	Details []OKXBalanceDetail `json:"details"`
}

// OKXOrderRequest body of the place order endpoint.
type OKXOrderRequest struct {
	InstID  string `json:"instId"`
	TdMode  string `json:"tdMode"`
	Side    string `json:"side"`
	OrdType string `json:"ordType"`
	Sz      string `json:"sz"`
	TgtCcy  string `json:"tgtCcy,omitempty"`
	ClOrdID string `json:"clOrdId,omitempty"`
}

// OKXOrderAck per order result of the place order endpoint.
type OKXOrderAck struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
	Ts      string `json:"ts"`
}

// OKXOrderDetails order state.
type OKXOrderDetails struct {
	OrdID     string `json:"ordId"`
	ClOrdID   string `json:"clOrdId"`
	State     string `json:"state"`
	AccFillSz string `json:"accFillSz"`
	AvgPx     string `json:"avgPx"`
}

// ServerTime returns the exchange clock.
func (c *OKXClient) ServerTime(ctx context.Context) (time.Time, error) {
	var rows []struct {
		Ts string `json:"ts"`
	}
	if err := c.get(ctx, pathServerTime, nil, false, &rows); err != nil {
		return time.Time{}, err
	}
	if len(rows) == 0 {
		return time.Time{}, errors.New("okx returned empty server time")
	}

	ms, err := strconv.ParseInt(rows[0].Ts, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse server time %q", rows[0].Ts)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// SyncTime aligns signed timestamps with the exchange clock.
func (c *OKXClient) SyncTime(ctx context.Context) error {
	if c.signer == nil {
		return nil
	}

	sent := time.Now()
	server, err := c.ServerTime(ctx)
	if err != nil {
		return err
	}
	received := time.Now()

	local := sent.Add(received.Sub(sent) / 2)
	offset := server.Sub(local)
	c.signer.SetClockOffset(offset)

	c.logger.Debug("okx clock synced", zap.Duration("offset", offset))
	return nil
}

// Instruments lists instruments of the given type, e.g. SPOT.
func (c *OKXClient) Instruments(ctx context.Context, instType string) ([]OKXInstrument, error) {
	var rows []OKXInstrument
	q := url.Values{"instType": {instType}}
	if err := c.get(ctx, pathInstruments, q, false, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Ticker returns the last price of one instrument.
func (c *OKXClient) Ticker(ctx context.Context, instID string) (decimal.Decimal, error) {
	var rows []OKXTicker
	if err := c.get(ctx, pathTicker, url.Values{"instId": {instID}}, false, &rows); err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 || rows[0].Last == "" {
		return decimal.Zero, errors.Errorf("okx returned empty ticker for %s", instID)
	}
	return decimal.NewFromString(rows[0].Last)
}

// Tickers returns the tickers of every instrument of the given type.
func (c *OKXClient) Tickers(ctx context.Context, instType string) ([]OKXTicker, error) {
	var rows []OKXTicker
	if err := c.get(ctx, pathTickers, url.Values{"instType": {instType}}, false, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Balances returns the trading account balances.
func (c *OKXClient) Balances(ctx context.Context) ([]OKXBalanceDetail, error) {
	var rows []okxAccountBalance
	if err := c.get(ctx, pathBalance, nil, true, &rows); err != nil {
		return nil, err
	}

	var details []OKXBalanceDetail
	for _, r := range rows {
		details = append(details, r.Details...)
	}
	return details, nil
}

// PlaceOrder submits one order. A non-zero sCode is returned as ErrOrderRejected.
func (c *OKXClient) PlaceOrder(ctx context.Context, req OKXOrderRequest) (OKXOrderAck, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return OKXOrderAck{}, errors.Wrap(err, "failed to marshal order")
	}

	var acks []OKXOrderAck
	err = c.do(ctx, http.MethodPost, pathOrder, nil, body, true, &acks)
	if len(acks) > 0 && acks[0].SCode != "" && acks[0].SCode != "0" {
		return acks[0], &domain.APIError{
			Kind:    domain.ErrOrderRejected,
			Code:    acks[0].SCode,
			Message: acks[0].SMsg,
		}
	}
	if err != nil {
		return OKXOrderAck{}, err
	}
	if len(acks) == 0 {
		return OKXOrderAck{}, errors.New("okx returned empty order response")
	}
	return acks[0], nil
}

// Order returns the state of a placed order.
func (c *OKXClient) Order(ctx context.Context, instID, ordID string) (OKXOrderDetails, error) {
	return c.order(ctx, url.Values{"instId": {instID}, "ordId": {ordID}})
}

// OrderByClientID returns the state of an order by its clOrdId.
func (c *OKXClient) OrderByClientID(ctx context.Context, instID, clOrdID string) (OKXOrderDetails, error) {
	return c.order(ctx, url.Values{"instId": {instID}, "clOrdId": {clOrdID}})
}

func (c *OKXClient) order(ctx context.Context, q url.Values) (OKXOrderDetails, error) {
	var rows []OKXOrderDetails
	if err := c.get(ctx, pathOrder, q, true, &rows); err != nil {
		return OKXOrderDetails{}, err
	}
	if len(rows) == 0 {
		return OKXOrderDetails{}, errors.Errorf("okx returned no order for %s", q.Encode())
	}
	return rows[0], nil
}

func (c *OKXClient) get(ctx context.Context, path string, query url.Values, signed bool, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, signed, out)
}

// do performs one request. The data field is decoded into out even when the
// envelope reports an error, callers may need per-item error codes.
func (c *OKXClient) do(ctx context.Context, method, path string, query url.Values, body []byte, signed bool, out any) error {
	if signed && c.signer == nil {
		return errors.Wrapf(domain.ErrConfiguration, "%s %s requires credentials", method, path)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter")
		}
	}

	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create HTTP request")
	}

	req.Header.Set("Content-Type", "application/json")
	if signed {
		for k, v := range c.signer.Headers(method, requestPath, string(body)) {
			req.Header[k] = v
		}
	}
	if c.demo {
		req.Header.Set(headerSimulated, "1")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.APIError{Kind: domain.ErrNetwork, Message: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.APIError{Kind: domain.ErrNetwork, HTTPStatus: resp.StatusCode, Message: "read body", Err: err}
	}

	var env okxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &domain.APIError{
				Kind:       classifyOKX(resp.StatusCode, ""),
				HTTPStatus: resp.StatusCode,
				Message:    truncate(string(raw), 256),
			}
		}
		return errors.Wrapf(err, "failed to decode %s %s response", method, path)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if derr := json.Unmarshal(env.Data, out); derr != nil && env.Code == "0" {
			return errors.Wrapf(derr, "failed to decode %s %s data", method, path)
		}
	}

	if resp.StatusCode != http.StatusOK || env.Code != "0" {
		c.logger.Debug("okx request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", env.Code),
			zap.String("msg", env.Msg))

		return &domain.APIError{
			Kind:       classifyOKX(resp.StatusCode, env.Code),
			HTTPStatus: resp.StatusCode,
			Code:       env.Code,
			Message:    env.Msg,
		}
	}

	return nil
}

// classifyOKX maps an HTTP status and OKX error code to an error kind.
// Unknown client errors have no kind and are never retried.
func classifyOKX(status int, code string) error {
	switch code {
	case "50011", "50061":
		return domain.ErrRateLimit
	case "50001", "50004", "50013":
		return domain.ErrNetwork
	}
	if n, err := strconv.Atoi(code); err == nil && n >= 50100 && n <= 50114 {
		return domain.ErrAuthentication
	}

	switch {
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimit
	case status == http.StatusUnauthorized:
		return domain.ErrAuthentication
	case status >= http.StatusInternalServerError:
		return domain.ErrNetwork
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
