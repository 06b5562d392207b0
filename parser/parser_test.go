package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "dollar symbol",
			input:    "$51.77",
			expected: "51.77",
		},
		{
			name:     "thousands separator",
			input:    "  $1,299.00  ",
			expected: "1299.00",
		},
		{
			name:     "pound with mojibake",
			input:    "Â£10.50",
			expected: "10.50",
		},
		{
			name:     "already clean",
			input:    "25.99",
			expected: "25.99",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePrice(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePrice(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	price, err := ParsePrice("$1,099.99")
	if err != nil {
		t.Fatalf("parse price: %v", err)
	}
	if price.String() != "1099.99" {
		t.Fatalf("price = %s, want 1099.99", price)
	}

	if _, err := ParsePrice("Currently unavailable"); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestNormalizeRating(t *testing.T) {
	if got := NormalizeRating("4.5 out of 5 stars"); got != "4.5" {
		t.Fatalf("NormalizeRating = %q, want 4.5", got)
	}
}

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{
			name:   "dp path with query",
			url:    "https://www.amazon.com/Amazon_Fire_HD_10/dp/B0BHZT5S12?query=x",
			want:   "B0BHZT5S12",
			wantOK: true,
		},
		{
			name:   "gp product path",
			url:    "https://www.amazon.com/gp/product/B07XJ8C8F5/ref=ox_sc",
			want:   "B07XJ8C8F5",
			wantOK: true,
		},
		{
			name:   "lowercase path token is not an identifier",
			url:    "https://www.amazon.com/dp/abcdefghij",
			wantOK: false,
		},
		{
			name:   "lowercase path token falls through to query",
			url:    "https://www.amazon.com/dp/abcdefghij?asin=b000000004",
			want:   "B000000004",
			wantOK: true,
		},
		{
			name:   "encoded tracking redirect",
			url:    "https://www.amazon.com/sspa/click?url=%2FFire-HD%2Fdp%2FB0BHZT5S12%2Fref%3Dsr",
			want:   "B0BHZT5S12",
			wantOK: true,
		},
		{
			name:   "pd_rd_i parameter",
			url:    "https://www.amazon.com/some/path?pd_rd_i=b0bhzt5s12&asin=B000000000",
			want:   "B0BHZT5S12",
			wantOK: true,
		},
		{
			name:   "asin parameter when pd_rd_i invalid",
			url:    "https://www.amazon.com/some/path?pd_rd_i=short&asin=B000000001",
			want:   "B000000001",
			wantOK: true,
		},
		{
			name:   "product_id parameter",
			url:    "https://www.amazon.com/some/path?product_id=B000000002",
			want:   "B000000002",
			wantOK: true,
		},
		{
			name:   "no pattern",
			url:    "https://www.amazon.com/s?k=kindle",
			wantOK: false,
		},
		{
			name:   "non alphanumeric parameter",
			url:    "https://www.amazon.com/x?asin=B0-HZT5S12",
			wantOK: false,
		},
		{
			name:   "malformed url",
			url:    "://%zz",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractIdentifier(tt.url)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("ExtractIdentifier(%q) = %q/%v, want %q/%v", tt.url, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

const productURL = "https://www.amazon.com/Fire-HD/dp/B0BHZT5S12?ref=sr_1_4"

func productPage(title, price, rating, image string) []byte {
	body := "<html><body>"
	if title != "" {
		body += `<span id="productTitle">  ` + title + `  </span>`
	}
	if price != "" {
		body += `<span class="a-price"><span class="a-offscreen">` + price + `</span></span>`
		body += `<span class="a-price"><span class="a-offscreen">$1.00</span></span>`
	}
	if rating != "" {
		body += `<span id="acrPopover" title="` + rating + `"></span>`
	}
	if image != "" {
		body += `<img id="landingImage" src="` + image + `"/>`
	}
	return []byte(body + "</body></html>")
}

func TestParseProduct(t *testing.T) {
	observedAt := time.Date(2025, 1, 31, 20, 49, 5, 0, time.Local)
	obs, err := ParseProduct(productPage("Fire HD 10 tablet", "$139.99", "4.6 out of 5 stars", "https://m.media-amazon.com/i.jpg"), productURL, observedAt)
	if err != nil {
		t.Fatalf("parse product: %v", err)
	}

	got := map[string]string{
		"identifier": obs.Identifier,
		"title":      obs.Title,
		"price":      obs.Price.String(),
		"rating":     obs.Rating,
		"image":      obs.ImageURL,
		"url":        obs.SourceURL,
	}
	want := map[string]string{
		"identifier": "B0BHZT5S12",
		"title":      "Fire HD 10 tablet",
		"price":      "139.99",
		"rating":     "4.6",
		"image":      "https://m.media-amazon.com/i.jpg",
		"url":        productURL,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("observation mismatch (-want +got):\n%s", diff)
	}
	if !obs.ObservedAt.Equal(observedAt) {
		t.Fatalf("observed at = %v, want %v", obs.ObservedAt, observedAt)
	}
}

func TestParseProductOptionalFields(t *testing.T) {
	obs, err := ParseProduct(productPage("Fire HD 10 tablet", "$139.99", "", ""), productURL, time.Now())
	if err != nil {
		t.Fatalf("parse product: %v", err)
	}
	if obs.Rating != "" || obs.ImageURL != "" {
		t.Fatalf("optional fields should be empty, got rating=%q image=%q", obs.Rating, obs.ImageURL)
	}
}

func TestParseProductRejections(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		url  string
		want error
	}{
		{
			name: "missing title",
			body: productPage("", "$10.00", "", ""),
			url:  productURL,
			want: ErrMissingTitle,
		},
		{
			name: "missing price",
			body: productPage("Tablet", "", "", ""),
			url:  productURL,
			want: ErrMissingPrice,
		},
		{
			name: "unparsable price abandons the record",
			body: productPage("Tablet", "See price in cart", "", ""),
			url:  productURL,
			want: ErrInvalidPrice,
		},
		{
			name: "missing identifier",
			body: productPage("Tablet", "$10.00", "", ""),
			url:  "https://www.amazon.com/s?k=tablet",
			want: ErrMissingIdentifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := ParseProduct(tt.body, tt.url, time.Now())
			if obs != nil {
				t.Fatalf("expected no observation, got %+v", obs)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseListing(t *testing.T) {
	body := []byte(`<html><body>
<div data-cy="title-recipe"><a class="a-link-normal s-link-style" href="/Fire-HD/dp/B0BHZT5S12/ref=sr_1_1">Fire</a></div>
<div data-cy="title-recipe"><a class="a-link-normal" href="https://www.amazon.com/Kindle/dp/B09SWRYPB2">Kindle</a></div>
<div data-cy="title-recipe"><span><a class="a-link-normal" href="/nested/dp/B000000003">nested, ignored</a></span></div>
<div data-cy="title-recipe"><a class="a-link-normal" href="/Fire-HD/dp/B0BHZT5S12/ref=sr_1_1">Fire again</a></div>
<a class="s-pagination-item s-pagination-next" href="/s?k=kindle&amp;page=2">Next</a>
</body></html>`)

	page, err := ParseListing(body, "https://www.amazon.com/s?k=kindle")
	if err != nil {
		t.Fatalf("parse listing: %v", err)
	}

	want := []string{
		"https://www.amazon.com/Fire-HD/dp/B0BHZT5S12/ref=sr_1_1",
		"https://www.amazon.com/Kindle/dp/B09SWRYPB2",
		"https://www.amazon.com/Fire-HD/dp/B0BHZT5S12/ref=sr_1_1",
	}
	if diff := cmp.Diff(want, page.ProductURLs); diff != "" {
		t.Fatalf("product urls mismatch (-want +got):\n%s", diff)
	}
	if page.NextURL != "https://www.amazon.com/s?k=kindle&page=2" {
		t.Fatalf("next url = %q", page.NextURL)
	}
}

func TestParseListingDisabledNext(t *testing.T) {
	body := []byte(`<html><body>
<span class="s-pagination-item s-pagination-next s-pagination-disabled">Next</span>
<a class="s-pagination-next s-pagination-disabled" href="/s?k=kindle&amp;page=3">Next</a>
</body></html>`)

	page, err := ParseListing(body, "https://www.amazon.com/s?k=kindle&page=2")
	if err != nil {
		t.Fatalf("parse listing: %v", err)
	}
	if page.NextURL != "" {
		t.Fatalf("disabled next link should be ignored, got %q", page.NextURL)
	}
	if len(page.ProductURLs) != 0 {
		t.Fatalf("expected no products, got %v", page.ProductURLs)
	}
}
