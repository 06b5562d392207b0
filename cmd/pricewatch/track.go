package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/history"
	"github.com/aluiziolira/go-price-watch/models"
	"github.com/aluiziolira/go-price-watch/notify"
	"github.com/aluiziolira/go-price-watch/scraper"
)

func init() {
	rootCmd.AddCommand(searchCmd, trackCmd, runCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [term...]",
	Short: "Crawls search results for each term and records prices.",
	RunE: func(cmd *cobra.Command, args []string) error {
		terms := args
		if len(terms) == 0 {
			terms = cfg.SearchTerms
		}
		if len(terms) == 0 {
			return fmt.Errorf("no search terms given")
		}
		return withSession(cmd.Context(), cfg, func(ctx context.Context, t *scraper.Tracker) (*models.RunResult, error) {
			return t.Search(ctx, terms)
		})
	},
}

var trackCmd = &cobra.Command{
	Use:   "track [url...]",
	Short: "Records the current price of each product URL.",
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := args
		if len(urls) == 0 {
			urls = cfg.ProductURLs
		}
		if len(urls) == 0 {
			return fmt.Errorf("no product URLs given")
		}
		return withSession(cmd.Context(), cfg, func(ctx context.Context, t *scraper.Tracker) (*models.RunResult, error) {
			return t.TrackProducts(ctx, urls)
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tracks the configured product URLs, then searches the configured terms.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.ProductURLs) == 0 && len(cfg.SearchTerms) == 0 {
			return fmt.Errorf("config has neither product_urls nor search_terms")
		}
		return withSession(cmd.Context(), cfg, func(ctx context.Context, t *scraper.Tracker) (*models.RunResult, error) {
			result := models.NewRunResult(time.Now())
			if len(cfg.ProductURLs) > 0 {
				res, err := t.TrackProducts(ctx, cfg.ProductURLs)
				result.Merge(res)
				if err != nil {
					return result, err
				}
			}
			if len(cfg.SearchTerms) > 0 {
				res, err := t.Search(ctx, cfg.SearchTerms)
				result.Merge(res)
				if err != nil {
					return result, err
				}
			}
			result.EndTime = time.Now()
			return result, nil
		})
	},
}

// withSession wires the store, notifiers, fetcher and metrics for one run,
// executes fn and prints the summary.
func withSession(ctx context.Context, cfg *config.Config, fn func(context.Context, *scraper.Tracker) (*models.RunResult, error)) error {
	store, err := history.Open(cfg.StoreBackend, cfg.StorePath, cfg.CacheSize)
	if err != nil {
		return fmt.Errorf("open price history: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("close price history", slog.Any("error", err))
		}
	}()

	notifier, closeNotifier, err := notify.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("configure notifications: %w", err)
	}
	defer func() {
		if err := closeNotifier(); err != nil {
			slog.Error("close notifier", slog.Any("error", err))
		}
	}()

	rule, err := notify.RuleFromConfig(cfg)
	if err != nil {
		return err
	}

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(scraper.FetcherOptions{
		Identities: cfg.Identities,
		Headers:    cfg.Headers,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
		Timeout:    cfg.Timeout,
		Registry:   scraper.NewIdentityRegistry(cfg.BanDuration, nil),
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("initialising fetcher: %w", err)
	}

	tracker, err := scraper.NewTracker(scraper.TrackerOptions{
		Fetcher:   fetcher,
		Store:     store,
		Rule:      rule,
		Notifier:  notifier,
		Delay:     cfg.FetchDelay,
		MaxPages:  cfg.MaxPages,
		SearchURL: cfg.SearchURL,
		Metrics:   metrics,
	})
	if err != nil {
		return fmt.Errorf("initialising tracker: %w", err)
	}

	stopMetrics := serveMetrics(cfg.MetricsAddr, metrics)
	defer stopMetrics()

	slog.Info("starting run",
		slog.String("store", cfg.StorePath),
		slog.String("backend", cfg.StoreBackend),
		slog.Int("pages", cfg.MaxPages),
		slog.String("mode", cfg.PriceDropMode),
		slog.Float64("threshold", cfg.PriceDropThreshold),
	)

	start := time.Now()
	result, err := fn(ctx, tracker)
	if result != nil {
		printSummary(result, time.Since(start), cfg.StorePath)
	}
	if errors.Is(err, context.Canceled) {
		slog.Info("run interrupted, observations fetched so far were saved")
		return nil
	}
	return err
}

func serveMetrics(addr string, metrics *scraper.Metrics) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func printSummary(result *models.RunResult, duration time.Duration, storePath string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Run complete")
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Products:      %d\n", result.ProductCount)
	fmt.Printf("  Observations:  %d\n", len(result.Observations))
	fmt.Printf("  Price drops:   %d\n", result.Notifications)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		labels := make([]string, 0, len(result.ErrorsByType))
		for label := range result.ErrorsByType {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Printf("    %-24s %d\n", label, result.ErrorsByType[label])
		}
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Price history: %s\n", storePath)
	fmt.Println(separator)
}
