// Package notify decides when a price change is worth an alert and hands
// alert payloads to the configured sinks.
package notify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/models"
)

// Mode selects how the drop threshold is interpreted.
type Mode string

const (
	// ModeValue fires when the price fell by at least threshold currency units.
	ModeValue Mode = "value"
	// ModePercentage fires when the price fell by at least threshold percent.
	ModePercentage Mode = "percentage"
)

var hundred = decimal.NewFromInt(100)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeValue, ModePercentage:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown price drop mode %q", s)
	}
}

// Rule is a drop threshold under a mode.
type Rule struct {
	Mode      Mode
	Threshold decimal.Decimal
}

// Evaluate compares obs against the previous stored price. It returns an
// event when the new price is at or below the threshold line; comparisons
// are inclusive, so a zero threshold fires on any non-increase. Without a
// baseline (found == false) nothing fires.
func (r Rule) Evaluate(obs *models.Observation, previous decimal.Decimal, found bool) (*models.NotifyEvent, bool) {
	if obs == nil || !found {
		return nil, false
	}

	var line decimal.Decimal
	switch r.Mode {
	case ModeValue:
		line = previous.Sub(r.Threshold)
	case ModePercentage:
		line = previous.Mul(decimal.NewFromInt(1).Sub(r.Threshold.Div(hundred)))
	default:
		return nil, false
	}

	if !obs.Price.LessThanOrEqual(line) {
		return nil, false
	}
	return &models.NotifyEvent{
		Title:         obs.Title,
		PreviousPrice: previous,
		Price:         obs.Price,
		Identifier:    obs.Identifier,
		URL:           obs.SourceURL,
	}, true
}

// RuleFromConfig reads the threshold and mode the tracker is configured with.
func RuleFromConfig(cfg *config.Config) (Rule, error) {
	mode, err := ParseMode(cfg.PriceDropMode)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Mode: mode, Threshold: decimal.NewFromFloat(cfg.PriceDropThreshold)}, nil
}

// Evaluate is Rule{mode, threshold}.Evaluate for callers without a Rule.
func Evaluate(obs *models.Observation, previous decimal.Decimal, found bool, mode Mode, threshold decimal.Decimal) (*models.NotifyEvent, bool) {
	return Rule{Mode: mode, Threshold: threshold}.Evaluate(obs, previous, found)
}
