package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side exchange order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType exchange order type.
type OrderType string

const OrderTypeMarket OrderType = "market"

// Order state values reported back by the exchange.
const (
	OrderStateFilled          = "filled"
	OrderStatePartiallyFilled = "partially_filled"
	OrderStateLive            = "live"
	OrderStateCanceled        = "canceled"
	OrderStateUnknown         = "unknown"
	// OrderStateUnfilled a simulated order that could not be priced, the
	// paper wallet is unchanged.
	OrderStateUnfilled        = "unfilled"
)

// Order a single market order. Amount is denominated in the quote currency
// on both sides.
type Order struct {
	ClientID string          `json:"client_id"`
	Pair     Pair            `json:"pair"`
	Side     Side            `json:"side"`
	Type     OrderType       `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	// RefPrice price seen when the order was built, used by the paper wallet.
	RefPrice decimal.Decimal `json:"ref_price,omitzero"`
}

// OrderResult outcome of a placed or simulated order.
type OrderResult struct {
	OrderID   string    `json:"order_id"`
	ClientID  string    `json:"client_id"`
	State     string    `json:"state"`
	Simulated bool      `json:"simulated"`
	Timestamp time.Time `json:"timestamp"`
}
