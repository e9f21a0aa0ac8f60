package valuation

import (
	"strings"
	"sync"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var currencyMu sync.Mutex

// Format renders an amount in the quote currency, e.g. "$84,717.00" for USD or
// "84,717.00 USDT" for currencies go-money does not know.
func Format(amount decimal.Decimal, quote string) string {
	code := strings.ToUpper(quote)

	currencyMu.Lock()
	cur := money.GetCurrency(code)
	if cur == nil {
		cur = money.AddCurrency(code, code, "1 $", ".", ",", 2)
	}
	currencyMu.Unlock()

	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}
