package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-price-watch/models"
)

var csvHeader = []string{"asin", "title", "price", "rating", "image", "url", "timestamp"}

// CSVStore keeps the price log as a comma separated file with a header row.
// Rows are only ever appended.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore returns a store backed by path. The file is created on the
// first non-empty Append.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Append writes observations in one batch. An empty batch is a no-op.
func (s *CSVStore) Append(_ context.Context, observations []*models.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ensureDir(s.path); err != nil {
		return err
	}

	writeHeader := false
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeHeader = true
	case err != nil:
		return fmt.Errorf("%w: stat %s: %w", ErrPersistence, s.path, err)
	case info.Size() == 0:
		writeHeader = true
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrPersistence, s.path, err)
	}

	writer := csv.NewWriter(f)
	if writeHeader {
		if err := writer.Write(csvHeader); err != nil {
			f.Close()
			return fmt.Errorf("%w: write csv header: %w", ErrPersistence, err)
		}
	}
	for _, obs := range observations {
		if obs == nil {
			continue
		}
		record := []string{
			obs.Identifier,
			obs.Title,
			obs.Price.String(),
			obs.Rating,
			obs.ImageURL,
			obs.SourceURL,
			obs.ObservedAt.Local().Format(models.TimestampLayout),
		}
		if err := writer.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("%w: write csv record: %w", ErrPersistence, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return fmt.Errorf("%w: flush csv records: %w", ErrPersistence, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrPersistence, s.path, err)
	}

	slog.Debug("price log updated", slog.String("path", s.path), slog.Int("rows", len(observations)))
	return nil
}

// LastPrice returns the price of the latest observation for identifier.
// A missing file is not an error.
func (s *CSVStore) LastPrice(_ context.Context, identifier string) (decimal.Decimal, bool, error) {
	var latest *models.Observation
	err := s.scan(func(obs *models.Observation) {
		if obs.Identifier != identifier {
			return
		}
		if latest == nil || !obs.ObservedAt.Before(latest.ObservedAt) {
			latest = obs
		}
	})
	if err != nil || latest == nil {
		return decimal.Zero, false, err
	}
	return latest.Price, true, nil
}

// History returns every observation of identifier, oldest first.
func (s *CSVStore) History(_ context.Context, identifier string) ([]*models.Observation, error) {
	var out []*models.Observation
	err := s.scan(func(obs *models.Observation) {
		if obs.Identifier == identifier {
			out = append(out, obs)
		}
	})
	if err != nil {
		return nil, err
	}
	sortByObservedAt(out)
	return out, nil
}

// Close is a no-op; the file is only held open during Append.
func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) scan(visit func(*models.Observation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrPersistence, s.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read csv header: %w", ErrPersistence, err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, required := range []string{"asin", "price", "timestamp"} {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("%w: %s is missing column %q", ErrPersistence, s.path, required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("%w: read csv line %d: %w", ErrPersistence, line, err)
		}

		price, err := decimal.NewFromString(field(record, "price"))
		if err != nil {
			slog.Warn("skipping price log row", slog.Int("line", line), slog.Any("error", err))
			continue
		}
		observedAt, err := time.ParseInLocation(models.TimestampLayout, field(record, "timestamp"), time.Local)
		if err != nil {
			slog.Warn("skipping price log row", slog.Int("line", line), slog.Any("error", err))
			continue
		}
		visit(&models.Observation{
			Identifier: field(record, "asin"),
			Title:      field(record, "title"),
			Price:      price,
			Rating:     field(record, "rating"),
			ImageURL:   field(record, "image"),
			SourceURL:  field(record, "url"),
			ObservedAt: observedAt,
		})
	}
}
