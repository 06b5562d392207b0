// Package history persists price observations and answers "what did this
// product cost last time" questions.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-price-watch/models"
)

// ErrPersistence marks failures of the underlying storage medium.
var ErrPersistence = errors.New("history: persistence failure")

// Store is an append-only table of observations. Duplicates are allowed on
// write; readers collapse them by taking the latest ObservedAt per
// identifier, with later writes winning ties.
type Store interface {
	Append(ctx context.Context, observations []*models.Observation) error
	LastPrice(ctx context.Context, identifier string) (decimal.Decimal, bool, error)
	History(ctx context.Context, identifier string) ([]*models.Observation, error)
	Close() error
}

// Open builds the store for backend ("csv" or "sqlite") at path, fronted by
// a last-price cache when cacheSize is positive.
func Open(backend, path string, cacheSize int) (Store, error) {
	var (
		store Store
		err   error
	)
	switch backend {
	case "csv":
		store = NewCSVStore(path)
	case "sqlite":
		store, err = OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", backend)
	}
	if err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		return store, nil
	}
	cached, err := NewCached(store, cacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}
	return cached, nil
}

func sortByObservedAt(observations []*models.Observation) {
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].ObservedAt.Before(observations[j].ObservedAt)
	})
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory %q: %w", ErrPersistence, dir, err)
	}
	return nil
}
