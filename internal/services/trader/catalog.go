package trader

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/autotrader/internal/clients"
)

const instrumentStateLive = "live"

// Catalog lists the coins tradable against the quote currency.
type Catalog interface {
	SupportedCoins(ctx context.Context) (map[string]bool, error)
}

// StaticCatalog is a fixed coin list.
type StaticCatalog map[string]bool

// NewStaticCatalog builds a catalog from symbols.
func NewStaticCatalog(coins []string) StaticCatalog {
	c := make(StaticCatalog, len(coins))
	for _, coin := range coins {
		c[strings.ToUpper(strings.TrimSpace(coin))] = true
	}
	return c
}

func (c StaticCatalog) SupportedCoins(context.Context) (map[string]bool, error) {
	return c, nil
}

// OKXCatalog loads live spot instruments once and keeps them for the process.
type OKXCatalog struct {
	client *clients.OKXClient
	quote  string

	mu    sync.Mutex
	coins map[string]bool
}

func NewOKXCatalog(client *clients.OKXClient, quote string) *OKXCatalog {
	return &OKXCatalog{client: client, quote: strings.ToUpper(quote)}
}

func (c *OKXCatalog) SupportedCoins(ctx context.Context) (map[string]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.coins != nil {
		return c.coins, nil
	}

	instruments, err := c.client.Instruments(ctx, "SPOT")
	if err != nil {
		return nil, errors.Wrap(err, "list okx spot instruments")
	}

	coins := make(map[string]bool)
	for _, inst := range instruments {
		if inst.State == instrumentStateLive && strings.EqualFold(inst.QuoteCcy, c.quote) {
			coins[strings.ToUpper(inst.BaseCcy)] = true
		}
	}
	if len(coins) == 0 {
		return nil, errors.Errorf("okx lists no live %s spot instruments", c.quote)
	}

	c.coins = coins
	return coins, nil
}
