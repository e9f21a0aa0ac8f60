// Package trader reads balances and places market orders, live or on a paper wallet.
package trader

import (
	"context"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// Trader reads the account and places market orders.
type Trader interface {
	GetBalances(ctx context.Context) ([]domain.Balance, error)
	PlaceMarketOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error)
}

// BalanceReader reads account balances.
type BalanceReader interface {
	GetBalances(ctx context.Context) ([]domain.Balance, error)
}

// OrderLookup finds an order that was already submitted under order.ClientID.
type OrderLookup interface {
	LookupOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error)
}
