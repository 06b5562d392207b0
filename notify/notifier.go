package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/models"
)

// Notifier delivers a price drop event somewhere a human will see it.
type Notifier interface {
	Notify(ctx context.Context, event *models.NotifyEvent) error
}

// LogNotifier records events in the structured log.
type LogNotifier struct{}

// Notify logs the event at warn level so it stands out from progress logs.
func (LogNotifier) Notify(_ context.Context, event *models.NotifyEvent) error {
	slog.Warn("price drop alert",
		slog.String("identifier", event.Identifier),
		slog.String("title", event.Title),
		slog.String("previous_price", event.PreviousPrice.String()),
		slog.String("price", event.Price.String()),
		slog.String("url", event.URL),
	)
	return nil
}

// FileNotifier appends events as JSON lines.
type FileNotifier struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewFileNotifier opens filename for appending, creating parent directories.
func NewFileNotifier(filename string) (*FileNotifier, error) {
	if dir := filepath.Dir(filename); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &FileNotifier{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Notify writes one JSON line and flushes it.
func (fn *FileNotifier) Notify(_ context.Context, event *models.NotifyEvent) error {
	fn.mu.Lock()
	defer fn.mu.Unlock()

	if err := fn.encoder.Encode(event); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := fn.writer.Flush(); err != nil {
		return fmt.Errorf("flush event log: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (fn *FileNotifier) Close() error {
	fn.mu.Lock()
	defer fn.mu.Unlock()

	if err := fn.writer.Flush(); err != nil {
		return fmt.Errorf("flush event log: %w", err)
	}
	return fn.file.Close()
}

// Multi fans an event out to every sink. A failing sink does not stop the
// others; their errors are joined.
type Multi []Notifier

// Notify delivers event to each sink in order.
func (m Multi) Notify(ctx context.Context, event *models.NotifyEvent) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig assembles the sinks cfg enables. The log sink is always
// present. The returned close function releases file handles.
func FromConfig(cfg *config.Config) (Notifier, func() error, error) {
	sinks := Multi{LogNotifier{}}
	closeFn := func() error { return nil }

	if cfg.EventLog != "" {
		file, err := NewFileNotifier(cfg.EventLog)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, file)
		closeFn = file.Close
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhook(cfg.WebhookURL, cfg.Timeout))
	}
	if cfg.SMTP.Enabled() {
		sinks = append(sinks, NewEmail(cfg.SMTP))
	}
	return sinks, closeFn, nil
}
