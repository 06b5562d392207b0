package config

import (
	"fmt"
	"os"
	"time"

	"github.com/titanous/json5"
)

// fileConfig mirrors the JSON5 watchlist file. Pointer fields distinguish
// "absent" from zero so the file only overrides what it names.
type fileConfig struct {
	SearchURL   *string           `json:"search_url"`
	SearchTerms []string          `json:"search_terms"`
	ProductURLs []string          `json:"product_urls"`
	MaxPages    *int              `json:"max_pages"`
	FetchDelay  *string           `json:"fetch_delay"`
	Timeout     *string           `json:"timeout"`
	MaxRetries  *int              `json:"max_retries"`
	Backoff     *string           `json:"retry_backoff"`
	BanDuration *string           `json:"ban_duration"`
	Identities  []string          `json:"identities"`
	Headers     map[string]string `json:"headers"`

	PriceDropThreshold *float64 `json:"price_drop_threshold"`
	PriceDropMode      *string  `json:"price_drop_mode"`

	StoreBackend *string `json:"store_backend"`
	StorePath    *string `json:"store_path"`
	CacheSize    *int    `json:"cache_size"`

	EventLog   *string `json:"event_log"`
	WebhookURL *string `json:"webhook_url"`
	SMTP       *struct {
		Server   string   `json:"server"`
		Port     int      `json:"port"`
		From     string   `json:"from"`
		Password string   `json:"password"`
		To       []string `json:"to"`
	} `json:"smtp"`
}

// LoadFile overlays the JSON5 file at path onto c.
func LoadFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := json5.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc.apply(c)
}

func (fc *fileConfig) apply(c *Config) error {
	if fc.SearchURL != nil {
		c.SearchURL = *fc.SearchURL
	}
	if fc.SearchTerms != nil {
		c.SearchTerms = fc.SearchTerms
	}
	if fc.ProductURLs != nil {
		c.ProductURLs = fc.ProductURLs
	}
	if fc.MaxPages != nil {
		c.MaxPages = *fc.MaxPages
	}
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	durations := []struct {
		name  string
		value *string
		dst   *time.Duration
	}{
		{"fetch_delay", fc.FetchDelay, &c.FetchDelay},
		{"timeout", fc.Timeout, &c.Timeout},
		{"retry_backoff", fc.Backoff, &c.RetryBackoff},
		{"ban_duration", fc.BanDuration, &c.BanDuration},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	if fc.Identities != nil {
		c.Identities = fc.Identities
	}
	if fc.Headers != nil {
		c.Headers = fc.Headers
	}
	if fc.PriceDropThreshold != nil {
		c.PriceDropThreshold = *fc.PriceDropThreshold
	}
	if fc.PriceDropMode != nil {
		c.PriceDropMode = *fc.PriceDropMode
	}
	if fc.StoreBackend != nil {
		c.StoreBackend = *fc.StoreBackend
	}
	if fc.StorePath != nil {
		c.StorePath = *fc.StorePath
	}
	if fc.CacheSize != nil {
		c.CacheSize = *fc.CacheSize
	}
	if fc.EventLog != nil {
		c.EventLog = *fc.EventLog
	}
	if fc.WebhookURL != nil {
		c.WebhookURL = *fc.WebhookURL
	}
	if fc.SMTP != nil {
		c.SMTP = SMTPConfig{
			Server:   fc.SMTP.Server,
			Port:     fc.SMTP.Port,
			From:     fc.SMTP.From,
			Password: fc.SMTP.Password,
			To:       fc.SMTP.To,
		}
	}
	return nil
}
