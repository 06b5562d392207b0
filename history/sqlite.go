package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-price-watch/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS observations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	asin        TEXT NOT NULL,
	title       TEXT NOT NULL,
	price       TEXT NOT NULL,
	rating      TEXT NOT NULL DEFAULT '',
	image       TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL,
	observed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS observations_asin_observed_at ON observations (asin, observed_at);
`

// SQLiteStore keeps the same append-only table in an SQLite database.
// Timestamps are stored as unix seconds, matching the CSV log's precision.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite %s: %w", ErrPersistence, path, err)
	}
	// one connection serialises writers and keeps :memory: databases alive
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: apply schema: %w", ErrPersistence, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append inserts the batch in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, observations []*models.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrPersistence, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO observations (asin, title, price, rating, image, url, observed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %w", ErrPersistence, err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		if obs == nil {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			obs.Identifier,
			obs.Title,
			obs.Price.String(),
			obs.Rating,
			obs.ImageURL,
			obs.SourceURL,
			obs.ObservedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("%w: insert %s: %w", ErrPersistence, obs.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrPersistence, err)
	}
	return nil
}

// LastPrice returns the price of the latest observation for identifier.
func (s *SQLiteStore) LastPrice(ctx context.Context, identifier string) (decimal.Decimal, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT price FROM observations WHERE asin = ? ORDER BY observed_at DESC, id DESC LIMIT 1`,
		identifier,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: query last price: %w", ErrPersistence, err)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: decode price %q: %w", ErrPersistence, raw, err)
	}
	return price, true, nil
}

// History returns every observation of identifier, oldest first.
func (s *SQLiteStore) History(ctx context.Context, identifier string) ([]*models.Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asin, title, price, rating, image, url, observed_at FROM observations WHERE asin = ? ORDER BY observed_at ASC, id ASC`,
		identifier,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query history: %w", ErrPersistence, err)
	}
	defer rows.Close()

	var out []*models.Observation
	for rows.Next() {
		var (
			obs      models.Observation
			rawPrice string
			unix     int64
		)
		if err := rows.Scan(&obs.Identifier, &obs.Title, &rawPrice, &obs.Rating, &obs.ImageURL, &obs.SourceURL, &unix); err != nil {
			return nil, fmt.Errorf("%w: scan history: %w", ErrPersistence, err)
		}
		obs.Price, err = decimal.NewFromString(rawPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: decode price %q: %w", ErrPersistence, rawPrice, err)
		}
		obs.ObservedAt = time.Unix(unix, 0)
		out = append(out, &obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate history: %w", ErrPersistence, err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
