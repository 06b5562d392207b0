package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-price-watch/models"
)

// Product page selectors.
const (
	titleSelector  = "#productTitle"
	priceSelector  = "span.a-offscreen"
	ratingSelector = "#acrPopover"
	imageSelector  = "#landingImage"
)

// ParseProduct extracts an Observation from a product page body. Title,
// price and identifier are mandatory; rating and image are optional. The
// returned error wraps one of the Err* rejection reasons.
func ParseProduct(body []byte, sourceURL string, observedAt time.Time) (*models.Observation, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse product html: %w", err)
	}

	title := strings.TrimSpace(doc.Find(titleSelector).First().Text())

	var (
		price    decimal.Decimal
		hasPrice bool
	)
	if sel := doc.Find(priceSelector).First(); sel.Length() > 0 {
		price, err = ParsePrice(sel.Text())
		if err != nil {
			return nil, err
		}
		hasPrice = true
	}

	rating := ""
	if value, ok := doc.Find(ratingSelector).First().Attr("title"); ok {
		rating = NormalizeRating(value)
	}
	image, _ := doc.Find(imageSelector).First().Attr("src")

	identifier, hasIdentifier := ExtractIdentifier(sourceURL)

	switch {
	case title == "":
		return nil, fmt.Errorf("%w: %s", ErrMissingTitle, sourceURL)
	case !hasPrice:
		return nil, fmt.Errorf("%w: %s", ErrMissingPrice, sourceURL)
	case !hasIdentifier:
		return nil, fmt.Errorf("%w: %s", ErrMissingIdentifier, sourceURL)
	}

	return &models.Observation{
		Identifier: identifier,
		Title:      title,
		Price:      price,
		Rating:     rating,
		ImageURL:   image,
		SourceURL:  sourceURL,
		ObservedAt: observedAt,
	}, nil
}
