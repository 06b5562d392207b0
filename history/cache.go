package history

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-price-watch/models"
)

type cachedPrice struct {
	price decimal.Decimal
	found bool
}

// CachedStore answers LastPrice from a bounded LRU and falls through to the
// wrapped store on a miss. Appends invalidate the touched identifiers.
type CachedStore struct {
	Store
	prices *lru.Cache[string, cachedPrice]
}

// NewCached wraps store with an LRU of size entries.
func NewCached(store Store, size int) (*CachedStore, error) {
	prices, err := lru.New[string, cachedPrice](size)
	if err != nil {
		return nil, fmt.Errorf("create price cache: %w", err)
	}
	return &CachedStore{Store: store, prices: prices}, nil
}

// Append forwards to the wrapped store and drops cached prices for every
// identifier in the batch, whether or not the write succeeded.
func (c *CachedStore) Append(ctx context.Context, observations []*models.Observation) error {
	err := c.Store.Append(ctx, observations)
	for _, obs := range observations {
		if obs != nil {
			c.prices.Remove(obs.Identifier)
		}
	}
	return err
}

// LastPrice consults the cache before the wrapped store. Misses are cached
// too so repeated lookups of unseen products stay cheap.
func (c *CachedStore) LastPrice(ctx context.Context, identifier string) (decimal.Decimal, bool, error) {
	if entry, ok := c.prices.Get(identifier); ok {
		return entry.price, entry.found, nil
	}
	price, found, err := c.Store.LastPrice(ctx, identifier)
	if err != nil {
		return decimal.Zero, false, err
	}
	c.prices.Add(identifier, cachedPrice{price: price, found: found})
	return price, found, nil
}
