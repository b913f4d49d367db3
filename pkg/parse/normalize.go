package parse

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// ResolveURL turns a link attribute into an absolute URL:
// "//host/x" gets an https scheme, "/x" is joined onto baseURL, "http(s)://..."
// is kept as is. Anything else is left unresolved and reported as false.
func ResolveURL(href, baseURL string) (string, bool) {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return "", false
	case strings.HasPrefix(href, "//"): // Protocol-relative CDN links
		return "https:" + href, true
	case strings.HasPrefix(href, "/"): // Site-relative
		return strings.TrimRight(baseURL, "/") + href, true
	case strings.HasPrefix(href, "http"): // Already absolute
		return href, true
	}
	return "", false // "item.html", "javascript:", "data:" etc.
}

// SearchParams builds the query for one search-results page
func SearchParams(searchTerm string, page, pageSize int) url.Values {
	params := url.Values{}
	params.Set("_nkw", searchTerm)             // Keywords
	params.Set("_pgn", strconv.Itoa(page))     // 1-based page number
	params.Set("_ipg", strconv.Itoa(pageSize)) // Items per page
	return params
}

// BuildSearchURL joins baseURL, searchPath and the page query into a request URL
func BuildSearchURL(baseURL, searchPath string, params url.Values) (string, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + searchPath)
	if err != nil {
		return "", fmt.Errorf("%w: invalid search URL: %w", utils.ErrParsing, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("%w: search URL %q needs scheme and host", utils.ErrParsing, base.String())
	}
	q := base.Query() // Keep any query already in searchPath
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}
