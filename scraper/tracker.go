package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aluiziolira/go-price-watch/history"
	"github.com/aluiziolira/go-price-watch/models"
	"github.com/aluiziolira/go-price-watch/notify"
	"github.com/aluiziolira/go-price-watch/parser"
)

// PageFetcher returns the body behind a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// TrackerOptions wires a Tracker to its collaborators.
type TrackerOptions struct {
	Fetcher   PageFetcher
	Store     history.Store
	Rule      notify.Rule
	Notifier  notify.Notifier
	Delay     time.Duration
	MaxPages  int
	SearchURL string
	Metrics   *Metrics

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Tracker turns product and listing URLs into stored observations and
// price drop events. It is single threaded: every fetch blocks until its
// retries are done, and the courtesy delay is never overlapped.
type Tracker struct {
	fetcher   PageFetcher
	store     history.Store
	rule      notify.Rule
	notifier  notify.Notifier
	delay     time.Duration
	maxPages  int
	searchURL string
	metrics   *Metrics
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewTracker validates opts and returns a tracker.
func NewTracker(opts TrackerOptions) (*Tracker, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("tracker requires a fetcher")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("tracker requires a store")
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.LogNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Tracker{
		fetcher:   opts.Fetcher,
		store:     opts.Store,
		rule:      opts.Rule,
		notifier:  opts.Notifier,
		delay:     opts.Delay,
		maxPages:  opts.MaxPages,
		searchURL: opts.SearchURL,
		metrics:   opts.Metrics,
		now:       opts.Now,
		sleep:     opts.Sleep,
	}, nil
}

// SearchURLFor returns the listing URL searched for term.
func (t *Tracker) SearchURLFor(term string) string {
	return t.searchURL + "?k=" + url.QueryEscape(term)
}

// Search crawls the results of every term in order. Each term is its own
// crawl session with fresh visited sets.
func (t *Tracker) Search(ctx context.Context, terms []string) (*models.RunResult, error) {
	result := models.NewRunResult(t.now())
	for _, term := range terms {
		slog.Info("searching", slog.String("term", term))
		res, err := t.Crawl(ctx, t.SearchURLFor(term), t.maxPages)
		result.Merge(res)
		if err != nil {
			result.EndTime = t.now()
			return result, err
		}
	}
	result.EndTime = t.now()
	return result, nil
}

type pageTask struct {
	url  string
	page int
}

// Crawl walks listingURL and its "next" links depth first, up to maxPages
// pages. Product and page URLs are visited at most once per call. Each
// page's observations are appended to the store in one write once the page
// is done. Per-page and per-product failures are recorded in the result and
// never stop the crawl; only ctx cancellation does, after the current
// page's partial batch has been written.
func (t *Tracker) Crawl(ctx context.Context, listingURL string, maxPages int) (*models.RunResult, error) {
	result := models.NewRunResult(t.now())
	visitedProducts := make(map[string]struct{})
	visitedPages := make(map[string]struct{})

	stack := []pageTask{{url: listingURL, page: 1}}
	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if task.page > maxPages {
			continue
		}
		if _, seen := visitedPages[task.url]; seen {
			continue
		}
		visitedPages[task.url] = struct{}{}

		if err := ctx.Err(); err != nil {
			result.EndTime = t.now()
			return result, err
		}

		next, err := t.crawlPage(ctx, task, visitedProducts, result)
		if err != nil {
			result.EndTime = t.now()
			return result, err
		}
		if next != "" && next != task.url {
			stack = append(stack, pageTask{url: next, page: task.page + 1})
		}
	}

	result.EndTime = t.now()
	return result, nil
}

// crawlPage processes one listing page and returns its next link. The
// returned error is non-nil only when ctx was cancelled.
func (t *Tracker) crawlPage(ctx context.Context, task pageTask, visitedProducts map[string]struct{}, result *models.RunResult) (string, error) {
	body, err := t.fetcher.Fetch(ctx, task.url)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		t.recordFailure(result, task.url, errorTypeLabel(err))
		return "", nil
	}

	listing, err := parser.ParseListing(body, task.url)
	if err != nil {
		slog.Warn("listing rejected", slog.String("url", task.url), slog.Any("error", err))
		t.recordFailure(result, task.url, "parse")
		t.metrics.IncError("parse")
		return "", nil
	}
	result.PageCount++
	t.metrics.IncPage()
	slog.Debug("listing page",
		slog.String("url", task.url),
		slog.Int("page", task.page),
		slog.Int("products", len(listing.ProductURLs)),
	)

	var batch []*models.Observation
	for _, productURL := range listing.ProductURLs {
		if _, seen := visitedProducts[productURL]; seen {
			continue
		}
		visitedProducts[productURL] = struct{}{}

		if err := ctx.Err(); err != nil {
			t.flush(ctx, batch, result)
			return "", err
		}
		if obs, ok := t.processProduct(ctx, productURL, result); ok {
			batch = append(batch, obs)
		}
		if err := t.sleep(ctx, t.delay); err != nil {
			t.flush(ctx, batch, result)
			return "", err
		}
	}
	t.flush(ctx, batch, result)

	return listing.NextURL, nil
}

// TrackProducts observes each product URL in order and appends all
// successful observations in a single write at the end.
func (t *Tracker) TrackProducts(ctx context.Context, urls []string) (*models.RunResult, error) {
	result := models.NewRunResult(t.now())

	var batch []*models.Observation
	for _, productURL := range urls {
		if err := ctx.Err(); err != nil {
			t.flush(ctx, batch, result)
			result.EndTime = t.now()
			return result, err
		}
		if obs, ok := t.processProduct(ctx, productURL, result); ok {
			batch = append(batch, obs)
		}
	}
	t.flush(ctx, batch, result)

	result.EndTime = t.now()
	return result, nil
}

// processProduct fetches and parses one product page, then evaluates it
// against the stored baseline. The observation is not persisted here.
func (t *Tracker) processProduct(ctx context.Context, productURL string, result *models.RunResult) (*models.Observation, bool) {
	result.ProductCount++

	body, err := t.fetcher.Fetch(ctx, productURL)
	if err != nil {
		t.recordFailure(result, productURL, errorTypeLabel(err))
		return nil, false
	}

	obs, err := parser.ParseProduct(body, productURL, t.now())
	if err != nil {
		slog.Warn("product rejected", slog.String("url", productURL), slog.Any("reason", err))
		label := parseLabel(err)
		t.recordFailure(result, productURL, label)
		t.metrics.IncError(label)
		return nil, false
	}

	previous, found, err := t.store.LastPrice(ctx, obs.Identifier)
	if err != nil {
		slog.Warn("price baseline unavailable",
			slog.String("identifier", obs.Identifier),
			slog.Any("error", err),
		)
		found = false
	}

	if event, fire := t.rule.Evaluate(obs, previous, found); fire {
		result.Notifications++
		t.metrics.IncNotification()
		if err := t.notifier.Notify(ctx, event); err != nil {
			slog.Error("notification failed",
				slog.String("identifier", event.Identifier),
				slog.Any("error", err),
			)
		}
	}

	slog.Info("observed",
		slog.String("identifier", obs.Identifier),
		slog.String("price", obs.Price.String()),
		slog.String("url", productURL),
	)
	result.Observations = append(result.Observations, obs)
	return obs, true
}

// flush appends batch to the store. A cancelled ctx does not stop the write.
func (t *Tracker) flush(ctx context.Context, batch []*models.Observation, result *models.RunResult) {
	if len(batch) == 0 {
		return
	}
	if err := t.store.Append(context.WithoutCancel(ctx), batch); err != nil {
		slog.Error("append observations failed",
			slog.Int("count", len(batch)),
			slog.Any("error", err),
		)
		result.ErrorCount++
		result.ErrorsByType["persistence"]++
		t.metrics.IncError("persistence")
		return
	}
	t.metrics.AddObservations(len(batch))
}

func (t *Tracker) recordFailure(result *models.RunResult, rawURL, label string) {
	result.ErrorCount++
	result.FailedURLs = append(result.FailedURLs, rawURL)
	result.ErrorsByType[label]++
}

func parseLabel(err error) string {
	switch {
	case errors.Is(err, parser.ErrMissingTitle):
		return "parse_missing_title"
	case errors.Is(err, parser.ErrMissingPrice):
		return "parse_missing_price"
	case errors.Is(err, parser.ErrInvalidPrice):
		return "parse_invalid_price"
	case errors.Is(err, parser.ErrMissingIdentifier):
		return "parse_missing_identifier"
	default:
		return "parse"
	}
}
