package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// TimeLayout formats the Scraped At column
const TimeLayout = "2006-01-02 15:04:05"

// Header is the first CSV row
var Header = []string{
	"Title", "Price", "Original Price", "Rating", "Review Count",
	"Seller Name", "Product URL", "Image URL", "Shipping Info",
	"Discount Percentage", "Scraped At",
}

// WriteCSV writes the header and one row per product, in the given order
func WriteCSV(w io.Writer, products []models.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range products {
		if err := cw.Write(row(&products[i])); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(p *models.Product) []string {
	var rating, reviews, scraped string
	if p.Rating != nil {
		rating = strconv.FormatFloat(*p.Rating, 'f', -1, 64)
	}
	if p.ReviewCount != nil {
		reviews = strconv.Itoa(*p.ReviewCount)
	}
	if !p.CreatedAt.IsZero() {
		scraped = p.CreatedAt.Format(TimeLayout)
	}
	return []string{
		p.Title,
		p.Price,
		p.OriginalPrice,
		rating,
		reviews,
		p.SellerName,
		p.ProductURL,
		p.ImageURL,
		p.ShippingInfo,
		p.DiscountPercentage,
		scraped,
	}
}

// Filename names the download for a job's export taken at now
func Filename(searchTerm string, now time.Time) string {
	return fmt.Sprintf("products_%s_%s.csv", utils.SanitizeFilename(searchTerm), now.Format("20060102_150405"))
}
