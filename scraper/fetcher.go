// Package scraper fetches pages with identity rotation and walks listing
// pages into price observations.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	ctxKeyStatus = "status"
	ctxKeyBody   = "body"
)

// FetcherOptions configures a Fetcher. Zero values fall back to sensible
// defaults where one exists.
type FetcherOptions struct {
	Identities []string
	Headers    map[string]string
	MaxRetries int
	Backoff    time.Duration
	Timeout    time.Duration
	Registry   *IdentityRegistry
	Metrics    *Metrics
	Transport  http.RoundTripper

	// Sleep waits between attempts. It must return early with ctx.Err()
	// when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// Pick chooses one identity out of a non-empty candidate list.
	Pick func(candidates []string) string
}

// Fetcher issues GET requests with retry, linear backoff and identity
// rotation. Requests go through a synchronous colly collector, one request
// per attempt.
type Fetcher struct {
	collector  *colly.Collector
	identities []string
	headers    map[string]string
	maxRetries int
	backoff    time.Duration
	registry   *IdentityRegistry
	metrics    *Metrics
	sleep      func(ctx context.Context, d time.Duration) error
	pick       func(candidates []string) string

	mu          sync.Mutex
	lastSuccess string
}

// NewFetcher builds a fetcher from opts.
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	if len(opts.Identities) == 0 {
		return nil, fmt.Errorf("at least one identity is required")
	}
	if opts.MaxRetries < 1 {
		return nil, fmt.Errorf("max retries must be at least 1")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Registry == nil {
		opts.Registry = NewIdentityRegistry(DefaultBanDuration, nil)
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Pick == nil {
		opts.Pick = pickRandom
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	collector.SetRequestTimeout(opts.Timeout)
	if opts.Transport != nil {
		collector.WithTransport(opts.Transport)
	} else {
		collector.WithTransport(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
	})
	collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
			opts.Metrics.ObserveDuration(time.Since(start))
		}
		r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		r.Ctx.Put(ctxKeyBody, body)
	})

	return &Fetcher{
		collector:  collector,
		identities: append([]string(nil), opts.Identities...),
		headers:    opts.Headers,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		registry:   opts.Registry,
		metrics:    opts.Metrics,
		sleep:      opts.Sleep,
		pick:       opts.Pick,
	}, nil
}

// Fetch returns the body of rawURL. Each attempt picks an identity that is
// not banned. The first attempt also avoids the identity of the last
// successful fetch, unless that would leave nothing to pick. Timeouts,
// transport failures and 503s are retried after backoff*attempt; a 503
// also bans the identity that received it. Any other non-2xx status fails
// at once with HTTPError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	exclude := f.lastSuccessful()

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates := f.registry.Available(f.identities, exclude)
		if len(candidates) == 0 && exclude != "" {
			candidates = f.registry.Available(f.identities, "")
		}
		exclude = ""
		if len(candidates) == 0 {
			slog.Error("no identity available",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt),
			)
			f.metrics.IncError(errorTypeLabel(ErrAllIdentitiesExhausted))
			return nil, ErrAllIdentitiesExhausted
		}
		identity := f.pick(candidates)

		body, err := f.attempt(rawURL, identity)
		if err == nil {
			f.setLastSuccessful(identity)
			f.metrics.IncRequest("success")
			return body, nil
		}

		label := errorTypeLabel(err)
		f.metrics.IncRequest(label)

		var rejected ErrRejected
		if errors.As(err, &rejected) {
			f.registry.Ban(identity)
			f.metrics.IncBan()
		}
		if !retryable(err) {
			slog.Error("fetch failed",
				slog.String("url", rawURL),
				slog.String("category", label),
				slog.Any("error", err),
			)
			f.metrics.IncError(label)
			return nil, err
		}

		lastErr = err
		attrs := []any{
			slog.String("url", rawURL),
			slog.Int("attempt", attempt),
			slog.String("category", label),
			slog.Any("error", err),
		}
		if attempt == f.maxRetries {
			slog.Warn("fetch attempt failed", attrs...)
			break
		}

		wait := f.backoff * time.Duration(attempt)
		slog.Warn("fetch attempt failed", append(attrs, slog.Duration("retry_in", wait))...)
		f.metrics.IncRetries()
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	exhausted := ErrRetriesExhausted{Attempts: f.maxRetries, Err: lastErr}
	slog.Error("fetch failed",
		slog.String("url", rawURL),
		slog.String("category", errorTypeLabel(exhausted)),
		slog.Any("error", exhausted),
	)
	f.metrics.IncError(errorTypeLabel(exhausted))
	return nil, exhausted
}

func (f *Fetcher) lastSuccessful() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSuccess
}

func (f *Fetcher) setLastSuccessful(identity string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSuccess = identity
}

func (f *Fetcher) attempt(rawURL, identity string) ([]byte, error) {
	hdr := make(http.Header, len(f.headers)+1)
	for k, v := range f.headers {
		hdr.Set(k, v)
	}
	hdr.Set("User-Agent", identity)

	collyCtx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, rawURL, nil, collyCtx, hdr)

	status, _ := collyCtx.GetAny(ctxKeyStatus).(int)
	if err != nil {
		return nil, classifyError(err, status, identity)
	}
	if status < 200 || status > 299 {
		return nil, classifyError(nil, status, identity)
	}
	body, _ := collyCtx.GetAny(ctxKeyBody).([]byte)
	return body, nil
}

func pickRandom(candidates []string) string {
	return candidates[rand.IntN(len(candidates))]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
