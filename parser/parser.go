package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Rejection reasons for a product page. ParseProduct wraps exactly one of
// these so callers can tell which field caused the record to be dropped.
var (
	ErrMissingTitle      = errors.New("parser: missing title")
	ErrMissingPrice      = errors.New("parser: missing price")
	ErrInvalidPrice      = errors.New("parser: invalid price")
	ErrMissingIdentifier = errors.New("parser: missing identifier")
)

var priceReplacer = strings.NewReplacer(
	"Â£", "",
	"£", "",
	"$", "",
	"€", "",
	",", "",
	" ", "",
)

// NormalizePrice removes currency symbols, thousands separators and
// surrounding whitespace.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	price = priceReplacer.Replace(price)
	return strings.TrimSpace(price)
}

// ParsePrice normalizes text and parses it as a decimal.
func ParsePrice(text string) (decimal.Decimal, error) {
	cleaned := NormalizePrice(text)
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w %q: %v", ErrInvalidPrice, text, err)
	}
	return price, nil
}

// NormalizeRating turns "4.5 out of 5 stars" into "4.5".
func NormalizeRating(text string) string {
	text = strings.ReplaceAll(text, "out of 5 stars", "")
	return strings.TrimSpace(text)
}
