package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-price-watch/config"
)

// flags holds values bound to persistent command line flags. They only
// override the loaded configuration when explicitly set.
var flags struct {
	configFile  string
	verbose     bool
	store       string
	backend     string
	metricsAddr string
	pages       int
	delay       time.Duration
	maxRetries  int
	threshold   float64
	mode        string
	eventLog    string
}

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pricewatch",
	Short: "pricewatch tracks product prices and alerts on drops.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded

		logger, level := newLogger(cfg.Verbose)
		slog.SetDefault(logger)
		slog.SetLogLoggerLevel(level.Level())
		return nil
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "JSON5 watchlist/config file")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&flags.store, "store", "", "Price history path")
	pf.StringVar(&flags.backend, "backend", "", "Price history backend: csv or sqlite")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	pf.IntVar(&flags.pages, "pages", 0, "Maximum listing pages per search term")
	pf.DurationVar(&flags.delay, "delay", 0, "Courtesy delay after each product fetched from a listing")
	pf.IntVar(&flags.maxRetries, "max-retries", 0, "Maximum fetch attempts per URL")
	pf.Float64Var(&flags.threshold, "threshold", 0, "Price drop threshold")
	pf.StringVar(&flags.mode, "mode", "", "Price drop mode: value or percentage")
	pf.StringVar(&flags.eventLog, "event-log", "", "Append price drop events as JSON lines to this file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, PRICEWATCH_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c := config.DefaultConfig()
	if flags.configFile != "" {
		if err := config.LoadFile(flags.configFile, c); err != nil {
			return nil, err
		}
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("verbose") {
		c.Verbose = flags.verbose
	}
	if changed("store") {
		c.StorePath = flags.store
	}
	if changed("backend") {
		c.StoreBackend = strings.ToLower(flags.backend)
	}
	if changed("metrics-addr") {
		c.MetricsAddr = flags.metricsAddr
	}
	if changed("pages") {
		c.MaxPages = flags.pages
	}
	if changed("delay") {
		c.FetchDelay = flags.delay
	}
	if changed("max-retries") {
		c.MaxRetries = flags.maxRetries
	}
	if changed("threshold") {
		c.PriceDropThreshold = flags.threshold
	}
	if changed("mode") {
		c.PriceDropMode = strings.ToLower(flags.mode)
	}
	if changed("event-log") {
		c.EventLog = flags.eventLog
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
