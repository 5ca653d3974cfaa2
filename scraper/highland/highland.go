// Package highland pulls Highland Homes plans and inventory homes from the
// paginated JSON endpoint behind their community pages.
package highland

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"newhome-tracker/models"
	"newhome-tracker/scraper"
	"newhome-tracker/services"
	"newhome-tracker/utils"
)

const (
	Builder  = "highland"
	Company  = "Highland Homes"
	pageSize = 24
	maxPages = 20
)

// Config describes one community feed.
type Config struct {
	Community string
	// Slug is the community identifier the API expects, e.g. "elevon".
	Slug    string
	BaseURL string
	Kind    string

	Fetcher *scraper.PageFetcher
	Logger  *utils.Logger
}

type Extractor struct {
	scraper.Base
	slug    string
	fetcher *scraper.PageFetcher
	logger  *utils.Logger
}

func New(cfg Config) *Extractor {
	if cfg.Logger == nil {
		cfg.Logger = utils.NewNopLogger()
	}
	return &Extractor{
		Base: scraper.Base{
			K:         scraper.Key{Builder: Builder, Community: cfg.Community, Kind: cfg.Kind},
			URL:       cfg.BaseURL,
			Company:   Company,
			Community: cfg.Community,
		},
		slug:    cfg.Slug,
		fetcher: cfg.Fetcher,
		logger:  cfg.Logger,
	}
}

// flexString accepts either a JSON string or a JSON number. The feed sends
// "$363s" for some prices and 363990 for others.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type item struct {
	PlanName      string     `json:"planName"`
	DesignNumber  flexString `json:"designNumber"`
	Price         flexString `json:"price"`
	OriginalPrice flexString `json:"originalPrice"`
	Sqft          flexString `json:"sqft"`
	Beds          flexString `json:"beds"`
	Baths         flexString `json:"baths"`
	Stories       flexString `json:"stories"`
	Address       string     `json:"address"`
	Status        string     `json:"status"`
	URL           string     `json:"url"`
}

type page struct {
	TotalCount int    `json:"totalCount"`
	Items      []item `json:"items"`
}

func (e *Extractor) feedType() string {
	if e.K.Kind == models.TypeNow {
		return "inventory"
	}
	return "plans"
}

func (e *Extractor) pageURL(n int) (string, error) {
	u, err := url.Parse(e.URL)
	if err != nil {
		return "", fmt.Errorf("base url: %w", err)
	}
	q := u.Query()
	q.Set("community", e.slug)
	q.Set("type", e.feedType())
	q.Set("page", strconv.Itoa(n))
	q.Set("pageSize", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchListings implements scraper.Extractor.
func (e *Extractor) FetchListings(ctx context.Context) []models.Record {
	items, err := scraper.DrainPages(ctx, maxPages, func(ctx context.Context, n int) ([]item, int, error) {
		target, err := e.pageURL(n)
		if err != nil {
			return nil, 0, err
		}
		var p page
		if err := e.fetcher.FetchJSON(ctx, target, &p); err != nil {
			return nil, 0, err
		}
		return p.Items, p.TotalCount, nil
	})
	if err != nil {
		e.logger.Warn("[%s] Feed failed: %v", e.K, err)
		return nil
	}

	records := make([]models.Record, 0, len(items))
	for _, it := range items {
		r := e.Record(e.K.Kind)
		r.PlanName = it.PlanName
		r.DesignNumber = string(it.DesignNumber)
		r.Price = services.PriceFrom(string(it.Price))
		r.OriginalPrice = services.PriceFrom(string(it.OriginalPrice))
		r.Sqft = services.SqftFrom(string(it.Sqft))
		r.Beds = string(it.Beds)
		r.Baths = string(it.Baths)
		r.Stories = string(it.Stories)
		r.Address = it.Address
		r.Status = it.Status
		r.URL = it.URL
		if r.PlanName == "" && r.DesignNumber != "" {
			r.PlanName = "Plan " + r.DesignNumber
		}
		records = append(records, r)
	}

	out := services.Finalize(e.logger, e.K.String(), records)
	e.logger.Info("[%s] Extracted %d records from %d feed items", e.K, len(out), len(items))
	return out
}
