package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/listing-scraper/pkg/config"
)

const (
	maxTitleRunes    = 500
	maxSellerRunes   = 200
	maxShippingRunes = 200

	minTitleRunes  = 5 // title must be strictly longer
	minSellerRunes = 2 // seller must be strictly longer
)

// SelectorSet holds the ordered selector chains used to locate listing
// elements and pull fields out of them. Order matters: earlier selectors win.
type SelectorSet struct {
	Containers         []string
	ContainerFallback  string
	Title              []string
	TitleNoisePrefixes []string
	Price              []string
	OriginalPrice      []string
	Rating             []string
	ReviewCount        []string
	SellerName         []string
	ShippingInfo       []string
	Discount           []string
	ProductLink        string
	Image              string
}

// DefaultSelectors returns the chains tuned for eBay search result markup
func DefaultSelectors() SelectorSet {
	return SelectorSet{
		Containers: []string{
			"div.s-item",
			"div[data-viewport]",
			"div.srp-results div.s-item",
			"li.s-item",
			"div.s-item__wrapper",
			`div[class*="item"]`,
		},
		ContainerFallback: "div[data-product-id]",
		Title: []string{
			"h3.s-item__title",
			`a[role="link"] span`,
			"h3 a",
			".s-item__title",
			"a[title]",
		},
		TitleNoisePrefixes: []string{"New Listing"},
		Price: []string{
			".s-item__price .notranslate",
			".s-item__price",
			".notranslate",
			`[class*="price"]`,
		},
		OriginalPrice: []string{".price-original", ".original-price", `[class*="original"]`},
		Rating:        []string{`[class*="rating"]`, `[class*="star"]`, ".rate"},
		ReviewCount:   []string{`[class*="review"]`, `[class*="feedback"]`, `[class*="order"]`},
		SellerName:    []string{`[class*="seller"]`, `[class*="store"]`, `[class*="shop"]`},
		ShippingInfo:  []string{`[class*="shipping"]`, `[class*="delivery"]`, `[class*="freight"]`},
		Discount:      []string{".s-item__discount", `[class*="discount"]`, `[class*="off"]`},
		ProductLink:   "a[href]",
		Image:         "img[src], img[data-src]",
	}
}

// WithOverrides replaces each chain that the config supplies. Empty lists keep the default.
func (s SelectorSet) WithOverrides(o config.SelectorConfig) SelectorSet {
	pick := func(def, override []string) []string {
		if len(override) > 0 {
			return append([]string(nil), override...)
		}
		return def
	}
	s.Containers = pick(s.Containers, o.Containers)
	s.Title = pick(s.Title, o.Title)
	s.TitleNoisePrefixes = pick(s.TitleNoisePrefixes, o.TitleNoisePrefixes)
	s.Price = pick(s.Price, o.Price)
	s.OriginalPrice = pick(s.OriginalPrice, o.OriginalPrice)
	s.Rating = pick(s.Rating, o.Rating)
	s.ReviewCount = pick(s.ReviewCount, o.ReviewCount)
	s.SellerName = pick(s.SellerName, o.SellerName)
	s.ShippingInfo = pick(s.ShippingInfo, o.ShippingInfo)
	s.Discount = pick(s.Discount, o.Discount)
	if o.ContainerFallback != "" {
		s.ContainerFallback = o.ContainerFallback
	}
	return s
}

// FieldMatcher tries to pull one raw value out of a listing element.
type FieldMatcher func(item *goquery.Selection) (string, bool)

// fieldChain is tried in order; the first matcher that reports a value wins.
type fieldChain []FieldMatcher

func (c fieldChain) first(item *goquery.Selection) (string, bool) {
	for _, m := range c {
		if v, ok := m(item); ok {
			return v, true
		}
	}
	return "", false
}

// textChain builds a chain whose matchers accept the first descendant for
// each selector when its stripped text is longer than minRunes.
func textChain(selectors []string, minRunes int) fieldChain {
	chain := make(fieldChain, 0, len(selectors))
	for _, selector := range selectors {
		selector := selector
		chain = append(chain, func(item *goquery.Selection) (string, bool) {
			el := item.Find(selector).First()
			if el.Length() == 0 {
				return "", false
			}
			text := strippedText(el)
			if text == "" || utf8.RuneCountInString(text) <= minRunes {
				return "", false
			}
			return text, true
		})
	}
	return chain
}

// titleChain is a textChain that falls back to the title attribute, enforces
// the minimum length on the raw text and then strips noise prefixes.
func titleChain(selectors, noise []string) fieldChain {
	chain := make(fieldChain, 0, len(selectors))
	for _, selector := range selectors {
		selector := selector
		chain = append(chain, func(item *goquery.Selection) (string, bool) {
			el := item.Find(selector).First()
			if el.Length() == 0 {
				return "", false
			}
			text := strippedText(el)
			if text == "" {
				text = strings.TrimSpace(el.AttrOr("title", ""))
			}
			if utf8.RuneCountInString(text) <= minTitleRunes {
				return "", false
			}
			for _, n := range noise {
				text = strings.ReplaceAll(text, n, "")
			}
			text = strings.TrimSpace(text)
			if text == "" {
				return "", false
			}
			return truncateRunes(text, maxTitleRunes), true
		})
	}
	return chain
}

// strippedText concatenates every text node under sel with surrounding
// whitespace trimmed from each node.
func strippedText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				b.WriteString(strings.TrimSpace(c.Text()))
			case "#comment", "script", "style":
			default:
				walk(c)
			}
		})
	}
	walk(sel)
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
