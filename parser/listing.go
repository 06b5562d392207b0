package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	productLinkSelector = `[data-cy="title-recipe"] > a.a-link-normal`
	nextPageSelector    = `a.s-pagination-next:not(.s-pagination-disabled)`
)

// ListingPage is what a search results page yields.
type ListingPage struct {
	ProductURLs []string
	NextURL     string
}

// ParseListing collects absolute product links and the enabled "next page"
// link from a search results page. Links are returned in document order and
// may repeat; deduplication belongs to the crawl session.
func ParseListing(body []byte, pageURL string) (*ListingPage, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	page := &ListingPage{}
	doc.Find(productLinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if abs := resolve(base, href); abs != "" {
			page.ProductURLs = append(page.ProductURLs, abs)
		}
	})

	if href, ok := doc.Find(nextPageSelector).First().Attr("href"); ok {
		page.NextURL = resolve(base, href)
	}
	return page, nil
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
