package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of name and whether it was set.
func EnvString(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses name as an integer.
func EnvInt(name string) (int, bool, error) {
	value, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return parsed, true, nil
}

// EnvDuration parses name as a Go duration string.
func EnvDuration(name string) (time.Duration, bool, error) {
	value, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return parsed, true, nil
}

// ApplyEnv overlays PRICEWATCH_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if v, ok, err := EnvInt("PRICEWATCH_PAGES"); err != nil {
		return err
	} else if ok {
		c.MaxPages = v
	}
	if v, ok, err := EnvInt("PRICEWATCH_MAX_RETRIES"); err != nil {
		return err
	} else if ok {
		c.MaxRetries = v
	}
	if v, ok, err := EnvDuration("PRICEWATCH_DELAY"); err != nil {
		return err
	} else if ok {
		c.FetchDelay = v
	}
	if v, ok, err := EnvDuration("PRICEWATCH_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = v
	}
	if v, ok := EnvString("PRICEWATCH_STORE"); ok {
		c.StorePath = v
	}
	if v, ok := EnvString("PRICEWATCH_STORE_BACKEND"); ok {
		c.StoreBackend = strings.ToLower(v)
	}
	if v, ok := EnvString("PRICEWATCH_WEBHOOK_URL"); ok {
		c.WebhookURL = v
	}
	if v, ok := EnvString("PRICEWATCH_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := EnvString("PRICEWATCH_SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	return nil
}
