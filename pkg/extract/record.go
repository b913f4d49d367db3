package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/parse"
)

// Extractor maps one listing element to a Record using compiled selector chains
type Extractor struct {
	baseURL string
	log     *logrus.Entry

	title         fieldChain
	price         fieldChain
	originalPrice fieldChain
	rating        fieldChain
	reviewCount   fieldChain
	seller        fieldChain
	shipping      fieldChain
	discount      fieldChain
	link          string
	image         string
}

// NewExtractor compiles set into matcher chains. baseURL resolves root-relative links.
func NewExtractor(set SelectorSet, baseURL string, log *logrus.Entry) *Extractor {
	return &Extractor{
		baseURL:       strings.TrimRight(baseURL, "/"),
		log:           log,
		title:         titleChain(set.Title, set.TitleNoisePrefixes),
		price:         textChain(set.Price, 0),
		originalPrice: textChain(set.OriginalPrice, 0),
		rating:        textChain(set.Rating, 0),
		reviewCount:   textChain(set.ReviewCount, 0),
		seller:        textChain(set.SellerName, minSellerRunes),
		shipping:      textChain(set.ShippingInfo, 0),
		discount:      textChain(set.Discount, 0),
		link:          set.ProductLink,
		image:         set.Image,
	}
}

// ExtractRecord returns the best-effort record for item, or false when no
// usable title exists. A panic while reading item is contained here.
func (e *Extractor) ExtractRecord(item *goquery.Selection) (rec models.Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warnf("Recovered while extracting listing element: %v", r)
			rec, ok = models.Record{}, false
		}
	}()

	title, found := e.title.first(item)
	if !found {
		return models.Record{}, false
	}
	rec.Title = title

	if text, found := e.price.first(item); found {
		rec.Price, _ = parse.CleanPrice(text)
	}
	if text, found := e.originalPrice.first(item); found {
		rec.OriginalPrice, _ = parse.CleanPrice(text)
	}
	if text, found := e.rating.first(item); found {
		if v, ok := parse.CleanRating(text); ok {
			rec.Rating = &v
		}
	}
	if text, found := e.reviewCount.first(item); found {
		if v, ok := parse.CleanReviewCount(text); ok {
			rec.ReviewCount = &v
		}
	}
	if text, found := e.seller.first(item); found {
		rec.SellerName = truncateRunes(text, maxSellerRunes)
	}
	if text, found := e.shipping.first(item); found {
		rec.ShippingInfo = truncateRunes(text, maxShippingRunes)
	}
	if text, found := e.discount.first(item); found {
		rec.DiscountPercentage, _ = parse.CleanDiscount(text)
	}

	if e.link != "" {
		if a := item.Find(e.link).First(); a.Length() > 0 {
			rec.ProductURL, _ = parse.ResolveURL(a.AttrOr("href", ""), e.baseURL)
		}
	}
	if e.image != "" {
		if img := item.Find(e.image).First(); img.Length() > 0 {
			src := img.AttrOr("src", "")
			if src == "" {
				src = img.AttrOr("data-src", "")
			}
			rec.ImageURL, _ = parse.ResolveURL(src, e.baseURL)
		}
	}

	return rec, true
}
