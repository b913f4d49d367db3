package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// BrowserFetcher renders pages in headless Chrome for sites that build their
// result lists client-side. One allocator (browser process) is shared; each
// Fetch gets its own tab.
type BrowserFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	waitFor     string // CSS selector that must be visible before the DOM is captured
	log         *logrus.Entry
	closeOnce   sync.Once
}

// NewBrowserFetcher starts a Chrome allocator. Close must be called to stop the browser.
func NewBrowserFetcher(headless bool, userAgent string, timeout time.Duration, log *logrus.Entry) *BrowserFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserFetcher{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		timeout:     timeout,
		waitFor:     "body",
		log:         log,
	}
}

// Fetch navigates to rawURL with params and returns the rendered document HTML
func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target, err := withParams(rawURL, params)
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(b.allocCtx)
	defer tabCancel()
	if b.timeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, b.timeout)
		defer cancel()
	}

	// Tie the tab to the caller's context as well as the allocator's
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	start := time.Now()
	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(target),
		chromedp.WaitVisible(b.waitFor, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		b.log.WithField("url", target).Warnf("Browser fetch failed: %v", err)
		return nil, fmt.Errorf("%w: %s: %w", utils.ErrBrowserFetch, target, err)
	}
	b.log.WithFields(logrus.Fields{"url": target, "duration": time.Since(start).Round(time.Millisecond)}).
		Debugf("Rendered %d bytes", len(html))
	return []byte(html), nil
}

// Close shuts down the browser process
func (b *BrowserFetcher) Close() {
	b.closeOnce.Do(b.allocCancel)
}
