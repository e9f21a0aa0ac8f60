// Package domain defines core data structures used throughout the auto-trader.
package domain

import (
	"fmt"
	"strings"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// Base traded coin symbol.
	Base string
	// Quote currency symbol.
	Quote string
}

// NewPair builds a pair with upper-cased symbols.
func NewPair(base, quote string) Pair {
	return Pair{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// InstID returns the dash separated instrument id, e.g. BTC-USDT.
func (p Pair) InstID() string {
	return fmt.Sprintf("%s-%s", p.Base, p.Quote)
}

// Symbol returns the concatenated symbol representation, e.g. BTCUSDT.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}
