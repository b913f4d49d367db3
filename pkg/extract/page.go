package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// DefaultElementCap is how many listing elements are scanned per page
const DefaultElementCap = 20

// Parser locates listing elements on a search-results page and extracts records from them
type Parser struct {
	extractor  *Extractor
	containers []string
	fallback   string
	elementCap int
	log        *logrus.Entry
}

// NewParser creates a Parser. elementCap <= 0 uses DefaultElementCap.
func NewParser(extractor *Extractor, set SelectorSet, elementCap int, log *logrus.Entry) *Parser {
	if elementCap <= 0 {
		elementCap = DefaultElementCap
	}
	return &Parser{
		extractor:  extractor,
		containers: set.Containers,
		fallback:   set.ContainerFallback,
		elementCap: elementCap,
		log:        log,
	}
}

// ParseHTML parses body and extracts its records
func (p *Parser) ParseHTML(body []byte) ([]models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: HTML parse: %w", utils.ErrParsing, err)
	}
	return p.ParsePage(doc), nil
}

// ParsePage returns records in document order. An empty result means the page
// had no recognisable listings, which callers treat as end of results.
func (p *Parser) ParsePage(doc *goquery.Document) []models.Record {
	items := p.locate(doc)
	if items.Length() == 0 {
		p.logEmptyPage(doc)
		return nil
	}

	var records []models.Record
	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if i >= p.elementCap {
			return false
		}
		if rec, ok := p.extractor.ExtractRecord(item); ok {
			records = append(records, rec)
		}
		return true
	})
	p.log.Debugf("Extracted %d records from %d listing elements", len(records), min(items.Length(), p.elementCap))
	return records
}

// locate tries each container selector in order and returns the first non-empty match
func (p *Parser) locate(doc *goquery.Document) *goquery.Selection {
	for _, selector := range p.containers {
		if found := doc.Find(selector); found.Length() > 0 {
			p.log.Infof("Found %d listing elements using selector: %s", found.Length(), selector)
			return found
		}
	}
	if p.fallback != "" {
		return doc.Find(p.fallback)
	}
	return doc.Selection.Slice(0, 0)
}

func (p *Parser) logEmptyPage(doc *goquery.Document) {
	p.log.Warn("No listing elements found with any selector")
	if !p.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "No title"
	}
	p.log.Debugf("Page title: %s", title)
	p.log.Debugf("Page contains %d div elements", doc.Find("div").Length())

	possible := doc.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class := strings.ToLower(s.AttrOr("class", ""))
		for _, term := range []string{"product", "item", "card", "result"} {
			if strings.Contains(class, term) {
				return true
			}
		}
		return false
	})
	p.log.Debugf("Found %d elements with product-related classes", possible.Length())
	if possible.Length() > 0 {
		p.log.Debugf("Sample element classes: %s", possible.First().AttrOr("class", ""))
	}
}
