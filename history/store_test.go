package history

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-price-watch/models"
)

var baseTime = time.Date(2025, 1, 31, 20, 0, 0, 0, time.Local)

func observation(id, price string, offset time.Duration) *models.Observation {
	return &models.Observation{
		Identifier: id,
		Title:      "Fire HD 10, " + id,
		Price:      decimal.RequireFromString(price),
		Rating:     "4.6",
		ImageURL:   "https://m.media-amazon.com/" + id + ".jpg",
		SourceURL:  "https://www.amazon.com/dp/" + id,
		ObservedAt: baseTime.Add(offset),
	}
}

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func factories() []storeFactory {
	return []storeFactory{
		{
			name: "csv",
			open: func(t *testing.T) Store {
				return NewCSVStore(filepath.Join(t.TempDir(), "data", "price_log.csv"))
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Store {
				store, err := OpenSQLite(filepath.Join(t.TempDir(), "prices.db"))
				if err != nil {
					t.Fatalf("open sqlite: %v", err)
				}
				return store
			},
		},
		{
			name: "cached csv",
			open: func(t *testing.T) Store {
				store, err := NewCached(NewCSVStore(filepath.Join(t.TempDir(), "price_log.csv")), 8)
				if err != nil {
					t.Fatalf("new cached: %v", err)
				}
				return store
			},
		},
	}
}

func TestStoreLastPriceUnknownIdentifier(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()

			_, found, err := store.LastPrice(context.Background(), "B0BHZT5S12")
			if err != nil {
				t.Fatalf("last price on empty store: %v", err)
			}
			if found {
				t.Fatalf("expected no price for unseen identifier")
			}
		})
	}
}

func TestStoreAppendThenLastPrice(t *testing.T) {
	ctx := context.Background()
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()

			if err := store.Append(ctx, []*models.Observation{observation("B0BHZT5S12", "139.99", 0)}); err != nil {
				t.Fatalf("append: %v", err)
			}
			price, found, err := store.LastPrice(ctx, "B0BHZT5S12")
			if err != nil || !found {
				t.Fatalf("last price: found=%v err=%v", found, err)
			}
			if !price.Equal(decimal.RequireFromString("139.99")) {
				t.Fatalf("price = %s, want 139.99", price)
			}

			// later observation written first still wins on observed_at
			batch := []*models.Observation{
				observation("B0BHZT5S12", "99.99", 2*time.Hour),
				observation("B0BHZT5S12", "120.00", time.Hour),
				observation("B09SWRYPB2", "89.99", 0),
			}
			if err := store.Append(ctx, batch); err != nil {
				t.Fatalf("append batch: %v", err)
			}
			price, _, err = store.LastPrice(ctx, "B0BHZT5S12")
			if err != nil {
				t.Fatalf("last price: %v", err)
			}
			if !price.Equal(decimal.RequireFromString("99.99")) {
				t.Fatalf("price = %s, want 99.99", price)
			}

			history, err := store.History(ctx, "B0BHZT5S12")
			if err != nil {
				t.Fatalf("history: %v", err)
			}
			if len(history) != 3 {
				t.Fatalf("history rows = %d, want 3", len(history))
			}
			for i := 1; i < len(history); i++ {
				if history[i].ObservedAt.Before(history[i-1].ObservedAt) {
					t.Fatalf("history not sorted at %d", i)
				}
			}
			if history[2].Title != "Fire HD 10, B0BHZT5S12" {
				t.Fatalf("title round trip = %q", history[2].Title)
			}
		})
	}
}

func TestStoreSameSecondLaterWriteWins(t *testing.T) {
	ctx := context.Background()
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()

			first := observation("B0BHZT5S12", "50.00", 0)
			second := observation("B0BHZT5S12", "45.00", 300*time.Millisecond)
			if err := store.Append(ctx, []*models.Observation{first}); err != nil {
				t.Fatalf("append: %v", err)
			}
			if err := store.Append(ctx, []*models.Observation{second}); err != nil {
				t.Fatalf("append: %v", err)
			}
			price, _, err := store.LastPrice(ctx, "B0BHZT5S12")
			if err != nil {
				t.Fatalf("last price: %v", err)
			}
			if !price.Equal(decimal.RequireFromString("45")) {
				t.Fatalf("price = %s, want 45", price)
			}
		})
	}
}

func TestCSVStoreEmptyAppendIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_log.csv")
	store := NewCSVStore(path)

	if err := store.Append(context.Background(), nil); err != nil {
		t.Fatalf("append empty: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("empty append should not create the file, stat err = %v", err)
	}

	if err := store.Append(context.Background(), []*models.Observation{observation("B0BHZT5S12", "10", 0)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(context.Background(), []*models.Observation{}); err != nil {
		t.Fatalf("append empty: %v", err)
	}
	if got := len(readRecords(t, path)); got != 2 {
		t.Fatalf("records = %d, want header + 1", got)
	}
}

func TestCSVStoreLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_log.csv")
	store := NewCSVStore(path)
	ctx := context.Background()

	if err := store.Append(ctx, []*models.Observation{observation("B0BHZT5S12", "1299.5", 5*time.Second)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, []*models.Observation{observation("B09SWRYPB2", "20", 0)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	records := readRecords(t, path)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3 (one header)", len(records))
	}
	wantHeader := []string{"asin", "title", "price", "rating", "image", "url", "timestamp"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Fatalf("header = %v, want %v", records[0], wantHeader)
		}
	}
	if records[1][2] != "1299.5" || records[1][6] != "2025-01-31 20:00:05" {
		t.Fatalf("unexpected row: %v", records[1])
	}
	if records[1][1] != "Fire HD 10, B0BHZT5S12" {
		t.Fatalf("title with comma should round trip, got %q", records[1][1])
	}
}

func TestCSVStoreReadsReorderedColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_log.csv")
	content := "title,asin,price,timestamp\n" +
		"Old,B0BHZT5S12,100.0,2025-01-30 10:00:00\n" +
		"bad price row,B0BHZT5S12,n/a,2025-02-01 10:00:00\n" +
		"New,B0BHZT5S12,90.0,2025-01-31 10:00:00\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	price, found, err := NewCSVStore(path).LastPrice(context.Background(), "B0BHZT5S12")
	if err != nil || !found {
		t.Fatalf("last price: found=%v err=%v", found, err)
	}
	if !price.Equal(decimal.RequireFromString("90")) {
		t.Fatalf("price = %s, want 90", price)
	}
}

func TestCSVStoreUnavailableMedium(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	store := NewCSVStore(filepath.Join(blocker, "price_log.csv"))
	err := store.Append(context.Background(), []*models.Observation{observation("B0BHZT5S12", "10", 0)})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestCachedStoreInvalidatesOnAppend(t *testing.T) {
	ctx := context.Background()
	inner := NewCSVStore(filepath.Join(t.TempDir(), "price_log.csv"))
	store, err := NewCached(inner, 4)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}

	if _, found, _ := store.LastPrice(ctx, "B0BHZT5S12"); found {
		t.Fatalf("expected miss before any write")
	}
	if err := store.Append(ctx, []*models.Observation{observation("B0BHZT5S12", "75", 0)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	price, found, err := store.LastPrice(ctx, "B0BHZT5S12")
	if err != nil || !found || !price.Equal(decimal.RequireFromString("75")) {
		t.Fatalf("cached last price = %s/%v/%v, want 75", price, found, err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("parquet", "x", 0); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return records
}
