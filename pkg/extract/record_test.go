package extract

import (
	"io"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/listing-scraper/pkg/config"
)

func newTestLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// firstItem parses markup and returns the first element matching selector
func firstItem(t *testing.T, markup, selector string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	item := doc.Find(selector).First()
	require.Equal(t, 1, item.Length(), "fixture must contain %s", selector)
	return item
}

func newTestExtractor() *Extractor {
	return NewExtractor(DefaultSelectors(), "https://www.ebay.com", newTestLogger())
}

const fullListing = `
<div class="s-item">
  <a href="/itm/123456"><img src="//i.ebayimg.com/thumb.jpg"></a>
  <h3 class="s-item__title"><span>New Listing</span> Vintage Mechanical Keyboard</h3>
  <span class="s-item__price"><span class="notranslate">US $1,299.99</span></span>
  <span class="price-original">Was: $1,499.00</span>
  <div class="x-star-rating"><span>4.5 out of 5 stars</span></div>
  <span class="s-item__reviews-count">(1,234 product ratings)</span>
  <span class="s-item__seller-info">keyboard_shop (99.8%)</span>
  <span class="s-item__shipping">Free shipping</span>
  <span class="s-item__discount">20% off</span>
</div>`

func TestExtractRecord_AllFields(t *testing.T) {
	item := firstItem(t, fullListing, "div.s-item")

	rec, ok := newTestExtractor().ExtractRecord(item)

	require.True(t, ok)
	assert.Equal(t, "Vintage Mechanical Keyboard", rec.Title)
	assert.Equal(t, "1,299.99", rec.Price)
	assert.Equal(t, "1,499.00", rec.OriginalPrice)
	require.NotNil(t, rec.Rating)
	assert.Equal(t, 4.5, *rec.Rating)
	require.NotNil(t, rec.ReviewCount)
	assert.Equal(t, 1234, *rec.ReviewCount)
	assert.Equal(t, "keyboard_shop (99.8%)", rec.SellerName)
	assert.Equal(t, "Free shipping", rec.ShippingInfo)
	assert.Equal(t, "20%", rec.DiscountPercentage)
	assert.Equal(t, "https://www.ebay.com/itm/123456", rec.ProductURL)
	assert.Equal(t, "https://i.ebayimg.com/thumb.jpg", rec.ImageURL)
}

func TestExtractRecord_NoTitleMeansNoRecord(t *testing.T) {
	markup := `<div class="s-item">
	  <span class="s-item__price">$10.00</span>
	  <span class="s-item__seller-info">somebody</span>
	  <a href="/itm/1">link</a>
	</div>`
	item := firstItem(t, markup, "div.s-item")

	_, ok := newTestExtractor().ExtractRecord(item)
	assert.False(t, ok)
}

func TestExtractRecord_TitleFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
		ok     bool
	}{
		{
			name:   "short h3 falls through to next selector",
			markup: `<div class="s-item"><h3 class="s-item__title">Shop</h3><a role="link" href="#"><span>Leather Wallet Brown</span></a></div>`,
			want:   "Leather Wallet Brown",
			ok:     true,
		},
		{
			name:   "empty text uses title attribute",
			markup: `<div class="s-item"><a title="Ceramic Coffee Mug" href="/x"></a></div>`,
			want:   "Ceramic Coffee Mug",
			ok:     true,
		},
		{
			name:   "exactly five runes is too short",
			markup: `<div class="s-item"><h3 class="s-item__title">Mouse</h3></div>`,
			ok:     false,
		},
		{
			name:   "noise-only title is rejected",
			markup: `<div class="s-item"><h3 class="s-item__title">New Listing</h3></div>`,
			ok:     false,
		},
		{
			name:   "multibyte title measured in runes",
			markup: `<div class="s-item"><h3 class="s-item__title">日本語の本です</h3></div>`,
			want:   "日本語の本です",
			ok:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := newTestExtractor().ExtractRecord(firstItem(t, tt.markup, "div.s-item"))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, rec.Title)
		})
	}
}

func TestExtractRecord_Truncation(t *testing.T) {
	longTitle := strings.Repeat("a", 600)
	longSeller := strings.Repeat("s", 250)
	markup := `<div class="s-item"><h3 class="s-item__title">` + longTitle + `</h3>` +
		`<span class="seller">` + longSeller + `</span></div>`

	rec, ok := newTestExtractor().ExtractRecord(firstItem(t, markup, "div.s-item"))

	require.True(t, ok)
	assert.Len(t, rec.Title, maxTitleRunes)
	assert.Len(t, rec.SellerName, maxSellerRunes)
}

func TestExtractRecord_FirstSelectorWinsEvenWhenCleaningFails(t *testing.T) {
	markup := `<div class="s-item"><h3 class="s-item__title">Bluetooth Speaker</h3>
	  <span class="s-item__price">See price</span>
	  <span class="other-price">$5.00</span>
	  <span class="rating">no rating yet</span>
	  <span class="star">4.0</span>
	</div>`

	rec, ok := newTestExtractor().ExtractRecord(firstItem(t, markup, "div.s-item"))

	require.True(t, ok)
	assert.Empty(t, rec.Price, "s-item__price matched first, no merging with later selectors")
	assert.Nil(t, rec.Rating)
}

func TestExtractRecord_ShortSellerFallsThrough(t *testing.T) {
	markup := `<div class="s-item"><h3 class="s-item__title">Bluetooth Speaker</h3>
	  <span class="seller">ab</span>
	  <span class="store">Audio Outlet</span>
	</div>`

	rec, ok := newTestExtractor().ExtractRecord(firstItem(t, markup, "div.s-item"))

	require.True(t, ok)
	assert.Equal(t, "Audio Outlet", rec.SellerName)
}

func TestExtractRecord_URLs(t *testing.T) {
	tests := []struct {
		name      string
		markup    string
		wantLink  string
		wantImage string
	}{
		{
			name:      "root relative",
			markup:    `<a href="/itm/9"></a><img src="/img/x.jpg">`,
			wantLink:  "https://www.ebay.com/itm/9",
			wantImage: "https://www.ebay.com/img/x.jpg",
		},
		{
			name:      "absolute kept, data-src used when src missing",
			markup:    `<a href="https://www.ebay.com/itm/7"></a><img data-src="//cdn.example.com/x.jpg">`,
			wantLink:  "https://www.ebay.com/itm/7",
			wantImage: "https://cdn.example.com/x.jpg",
		},
		{
			name:   "unresolvable left empty",
			markup: `<a href="javascript:void(0)"></a><img src="data:image/gif;base64,R0lGOD">`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := `<div class="s-item"><h3 class="s-item__title">Desk Lamp LED</h3>` + tt.markup + `</div>`
			rec, ok := newTestExtractor().ExtractRecord(firstItem(t, markup, "div.s-item"))
			require.True(t, ok)
			assert.Equal(t, tt.wantLink, rec.ProductURL)
			assert.Equal(t, tt.wantImage, rec.ImageURL)
		})
	}
}

func TestExtractRecord_RecoversFromPanic(t *testing.T) {
	e := newTestExtractor()
	e.price = fieldChain{func(*goquery.Selection) (string, bool) { panic("selector engine blew up") }}
	markup := `<div class="s-item"><h3 class="s-item__title">Bluetooth Speaker</h3></div>`

	var (
		ok  bool
		err interface{}
	)
	func() {
		defer func() { err = recover() }()
		_, ok = e.ExtractRecord(firstItem(t, markup, "div.s-item"))
	}()

	assert.Nil(t, err, "panic must not escape the extractor")
	assert.False(t, ok)
}

func TestSelectorSet_WithOverrides(t *testing.T) {
	set := DefaultSelectors().WithOverrides(config.SelectorConfig{
		Title:             []string{"h2.product-name"},
		ContainerFallback: "article",
	})

	assert.Equal(t, []string{"h2.product-name"}, set.Title)
	assert.Equal(t, "article", set.ContainerFallback)
	assert.Equal(t, DefaultSelectors().Price, set.Price, "unset overrides keep defaults")

	markup := `<div class="s-item"><h2 class="product-name">Custom Markup Item</h2></div>`
	rec, ok := NewExtractor(set, "https://shop.example", newTestLogger()).ExtractRecord(firstItem(t, markup, "div.s-item"))
	require.True(t, ok)
	assert.Equal(t, "Custom Markup Item", rec.Title)
}

func TestStrippedText(t *testing.T) {
	item := firstItem(t, `<p id="t">  Hello <b> big </b>
	world <!-- hidden --><script>var x;</script></p>`, "#t")
	assert.Equal(t, "Hellobigworld", strippedText(item))
}
