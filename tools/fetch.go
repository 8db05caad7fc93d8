package tools

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/researcher/internal/helpers"
)

// Fetcher owns a long-lived headless Chrome context used to pull full page
// content for search results. Construct once, call Extract per URL, Close on
// shutdown.
type Fetcher struct {
	allocCtx  context.Context
	cancelAll context.CancelFunc
	brCtx     context.Context
	cancelBr  context.CancelFunc

	defaultTO time.Duration
}

func NewFetcher(timeout time.Duration, userAgent string) (*Fetcher, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	bctx, cancelBr := chromedp.NewContext(actx)

	return &Fetcher{
		allocCtx:  actx,
		cancelAll: cancelAlloc,
		brCtx:     bctx,
		cancelBr:  cancelBr,
		defaultTO: timeout,
	}, nil
}

func (f *Fetcher) Close() error {
	if f.cancelBr != nil {
		f.cancelBr()
	}
	if f.cancelAll != nil {
		f.cancelAll()
	}
	return nil
}

// Extract renders the page, runs readability over the DOM, and returns the
// sanitized plain-text article body.
func (f *Fetcher) Extract(ctx context.Context, link string) (string, error) {
	if strings.TrimSpace(link) == "" {
		return "", errors.New("invalid url")
	}
	ctx, cancel := context.WithTimeout(ctx, f.defaultTO)
	defer cancel()

	html, err := f.outerHTML(ctx, link)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(strings.NewReader(html), parseURL(link))
	if err != nil {
		return "", err
	}
	return helpers.SanitizeText(article.TextContent), nil
}

func (f *Fetcher) outerHTML(ctx context.Context, link string) (string, error) {
	var html string
	err := chromedp.Run(f.brCtx,
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func parseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
