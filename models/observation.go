// Package models defines data structures shared by the tracker packages.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the on-disk format of Observation.ObservedAt.
const TimestampLayout = "2006-01-02 15:04:05"

// Observation is one timestamped price snapshot of a product. It is never
// mutated after it has been handed to a store.
type Observation struct {
	Identifier string          `csv:"asin" json:"asin"`
	Title      string          `csv:"title" json:"title"`
	Price      decimal.Decimal `csv:"price" json:"price"`
	Rating     string          `csv:"rating" json:"rating,omitempty"`
	ImageURL   string          `csv:"image" json:"image,omitempty"`
	SourceURL  string          `csv:"url" json:"url"`
	ObservedAt time.Time       `csv:"timestamp" json:"timestamp"`
}

// NotifyEvent is the payload handed to notification sinks when a price drop
// crosses the configured threshold.
type NotifyEvent struct {
	Title         string          `json:"title"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	Price         decimal.Decimal `json:"price"`
	Identifier    string          `json:"identifier"`
	URL           string          `json:"url"`
}

// RunResult holds the overall result of a search or direct tracking run.
type RunResult struct {
	Observations  []*Observation
	StartTime     time.Time
	EndTime       time.Time
	PageCount     int
	ProductCount  int
	ErrorCount    int
	FailedURLs    []string
	ErrorsByType  map[string]int
	Notifications int
}

// NewRunResult returns an empty result stamped with start.
func NewRunResult(start time.Time) *RunResult {
	return &RunResult{
		StartTime:    start,
		ErrorsByType: make(map[string]int),
	}
}

// Merge folds other into r, keeping r's start time.
func (r *RunResult) Merge(other *RunResult) {
	if other == nil {
		return
	}
	r.Observations = append(r.Observations, other.Observations...)
	r.PageCount += other.PageCount
	r.ProductCount += other.ProductCount
	r.ErrorCount += other.ErrorCount
	r.FailedURLs = append(r.FailedURLs, other.FailedURLs...)
	for k, v := range other.ErrorsByType {
		r.ErrorsByType[k] += v
	}
	r.Notifications += other.Notifications
	if other.EndTime.After(r.EndTime) {
		r.EndTime = other.EndTime
	}
}
