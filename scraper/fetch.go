package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"newhome-tracker/utils"
)

const (
	// DefaultUserAgent is sent on every request; several builder sites reject
	// obvious bot agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	AcceptLanguage = "en-US,en;q=0.9"

	acceptHTML = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
	acceptJSON = "application/json, text/plain, */*"
)

// ErrStatus is returned for any non-2xx response.
var ErrStatus = errors.New("unexpected HTTP status")

// FetchConfig configures a PageFetcher.
type FetchConfig struct {
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int // retries after the first attempt
	RetryDelay time.Duration
	Logger     *utils.Logger
}

// PageFetcher retrieves static pages and JSON endpoints.
type PageFetcher struct {
	cfg   FetchConfig
	retry *utils.RetryConfig
}

// NewPageFetcher creates a fetcher. Zero fields fall back to sane defaults.
func NewPageFetcher(cfg FetchConfig) *PageFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.NewNopLogger()
	}
	return &PageFetcher{
		cfg: cfg,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries + 1,
			BaseDelay:   cfg.RetryDelay,
			Logger:      cfg.Logger,
		},
	}
}

// Get returns the body of target. Client errors (4xx) are not retried.
func (f *PageFetcher) Get(ctx context.Context, target, accept string) ([]byte, error) {
	var body []byte
	err := f.retry.Do(ctx, "GET "+target, func() error {
		b, err := f.visit(ctx, target, accept)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// visit runs a single request on a fresh collector so revisits and retries
// are never filtered.
func (f *PageFetcher) visit(ctx context.Context, target, accept string) ([]byte, error) {
	c := colly.NewCollector(colly.UserAgent(f.cfg.UserAgent))
	c.SetRequestTimeout(f.cfg.Timeout)

	var (
		body   []byte
		status int
		reqErr error
	)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", accept)
		r.Headers.Set("Accept-Language", AcceptLanguage)
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		reqErr = err
	})

	if err := c.Visit(target); err != nil && reqErr == nil {
		reqErr = err
	}
	if err := ctx.Err(); err != nil {
		return nil, utils.Permanent(err)
	}

	switch {
	case status >= 400 && status < 500:
		return nil, utils.Permanent(fmt.Errorf("%w %d from %s", ErrStatus, status, target))
	case status != 0 && (status < 200 || status > 299):
		return nil, fmt.Errorf("%w %d from %s", ErrStatus, status, target)
	case reqErr != nil:
		return nil, fmt.Errorf("fetch %s: %w", target, reqErr)
	case body == nil:
		return nil, fmt.Errorf("fetch %s: request aborted", target)
	}
	return body, nil
}

// FetchDocument retrieves target and parses it as HTML.
func (f *PageFetcher) FetchDocument(ctx context.Context, target string) (*goquery.Document, error) {
	body, err := f.Get(ctx, target, acceptHTML)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}
	if u, err := url.Parse(target); err == nil {
		doc.Url = u
	}
	return doc, nil
}

// FetchJSON retrieves target and decodes the body into v.
func (f *PageFetcher) FetchJSON(ctx context.Context, target string, v any) error {
	body, err := f.Get(ctx, target, acceptJSON)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}

// Resolve makes href absolute against the document URL.
func Resolve(doc *goquery.Document, href string) string {
	if href == "" || doc.Url == nil {
		return href
	}
	u, err := doc.Url.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}
