package config

import (
	"fmt"
	"net/url"
	"time"
)

// Price drop modes understood by the evaluator.
const (
	ModeValue      = "value"
	ModePercentage = "percentage"
)

// SMTPConfig holds the outgoing mail settings for email alerts.
type SMTPConfig struct {
	Server   string
	Port     int
	From     string
	Password string
	To       []string
}

// Enabled reports whether enough is configured to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Server != "" && s.From != "" && len(s.To) > 0
}

// Config holds tracker configuration.
type Config struct {
	SearchURL   string
	SearchTerms []string
	ProductURLs []string

	MaxPages     int
	FetchDelay   time.Duration
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	BanDuration  time.Duration
	Identities   []string
	Headers      map[string]string

	PriceDropThreshold float64
	PriceDropMode      string

	StoreBackend string // csv or sqlite
	StorePath    string
	CacheSize    int

	EventLog    string
	WebhookURL  string
	SMTP        SMTPConfig
	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns the defaults the tracker ships with.
func DefaultConfig() *Config {
	return &Config{
		SearchURL:    "https://www.amazon.com/s",
		MaxPages:     2,
		FetchDelay:   5 * time.Second,
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 5 * time.Second,
		BanDuration:  5 * time.Minute,
		Identities: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Firefox/50.0",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/17.17134",
			"Mozilla/5.0 (Windows NT 6.1; WOW64; rv:40.0) Gecko/20100101 Firefox/40.0",
		},
		Headers: map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         "https://www.google.com/",
		},
		PriceDropThreshold: 0,
		PriceDropMode:      ModePercentage,
		StoreBackend:       "csv",
		StorePath:          "data/price_log.csv",
		CacheSize:          1024,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SearchURL == "" {
		return fmt.Errorf("search URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.SearchURL)
	if err != nil {
		return fmt.Errorf("invalid search URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("search URL must include a host")
	}

	if c.MaxPages < 1 {
		return fmt.Errorf("max pages must be at least 1")
	}
	if c.FetchDelay < 0 {
		return fmt.Errorf("fetch delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.BanDuration < 0 {
		return fmt.Errorf("ban duration cannot be negative")
	}
	if len(c.Identities) == 0 {
		return fmt.Errorf("at least one identity is required")
	}
	for i, identity := range c.Identities {
		if identity == "" {
			return fmt.Errorf("identity %d cannot be empty", i)
		}
	}

	if c.PriceDropThreshold < 0 {
		return fmt.Errorf("price drop threshold cannot be negative")
	}
	if c.PriceDropMode != ModeValue && c.PriceDropMode != ModePercentage {
		return fmt.Errorf("price drop mode must be value or percentage")
	}

	if c.StoreBackend != "csv" && c.StoreBackend != "sqlite" {
		return fmt.Errorf("store backend must be csv or sqlite")
	}
	if c.StorePath == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}

	if c.WebhookURL != "" {
		if u, err := url.Parse(c.WebhookURL); err != nil || u.Host == "" {
			return fmt.Errorf("invalid webhook URL %q", c.WebhookURL)
		}
	}
	if c.SMTP.Server != "" && c.SMTP.Port <= 0 {
		return fmt.Errorf("smtp port must be positive")
	}

	return nil
}
