package parser

import (
	"net/url"
	"regexp"
	"strings"
)

var identifierPathPattern = regexp.MustCompile(`/dp/([A-Z0-9]{10})|/gp/product/([A-Z0-9]{10})`)

// identifierParams are checked in order when the path carries no identifier.
var identifierParams = []string{"pd_rd_i", "asin", "product_id"}

// ExtractIdentifier derives the 10 character product identifier from a
// product URL, either from an uppercase /dp/ or /gp/product/ path segment
// or from a known query parameter, whose value may be in either case.
// Malformed URLs yield false.
func ExtractIdentifier(rawURL string) (string, bool) {
	decoded, err := url.PathUnescape(rawURL)
	if err != nil {
		decoded = rawURL
	}

	if match := identifierPathPattern.FindStringSubmatch(decoded); match != nil {
		id := match[1]
		if id == "" {
			id = match[2]
		}
		return strings.ToUpper(id), true
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return "", false
	}
	query, err := url.ParseQuery(parsed.RawQuery)
	if err != nil && len(query) == 0 {
		return "", false
	}
	for _, param := range identifierParams {
		values, ok := query[param]
		if !ok || len(values) == 0 {
			continue
		}
		candidate := values[0]
		if len(candidate) == 10 && isAlnum(candidate) {
			return strings.ToUpper(candidate), true
		}
	}
	return "", false
}

func isAlnum(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
