// Package mihomes reads M/I Homes community pages, which ship their plan and
// quick move-in data as page state embedded in a script tag.
package mihomes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newhome-tracker/models"
	"newhome-tracker/scraper"
	"newhome-tracker/services"
	"newhome-tracker/utils"
)

const (
	Builder = "mihomes"
	Company = "M/I Homes"

	stateSelector = `script#__NEXT_DATA__`
)

var errNoState = errors.New("page state script not found")

type Config struct {
	Community string
	URL       string
	Kind      string

	Fetcher *scraper.PageFetcher
	Logger  *utils.Logger
}

type Extractor struct {
	scraper.Base
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
			URL:       cfg.URL,
			Company:   Company,
			Community: cfg.Community,
		},
		fetcher: cfg.Fetcher,
		logger:  cfg.Logger,
	}
}

type span struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type plan struct {
	Name        string  `json:"name"`
	PlanNumber  string  `json:"planNumber"`
	BasePrice   float64 `json:"basePrice"`
	SquareFeet  span    `json:"squareFeet"`
	Bedrooms    span    `json:"bedrooms"`
	Bathrooms   span    `json:"bathrooms"`
	Stories     int     `json:"stories"`
	URL         string  `json:"url"`
	IsAvailable *bool   `json:"isAvailable"`
}

type quickMoveIn struct {
	PlanName      string  `json:"planName"`
	PlanNumber    string  `json:"planNumber"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"originalPrice"`
	SquareFeet    int64   `json:"squareFeet"`
	Bedrooms      float64 `json:"bedrooms"`
	Bathrooms     float64 `json:"bathrooms"`
	Stories       int     `json:"stories"`
	Status        string  `json:"status"`
	URL           string  `json:"url"`
	Address       struct {
		Street string `json:"street"`
	} `json:"address"`
}

type pageState struct {
	Props struct {
		PageProps struct {
			Community struct {
				Name         string        `json:"name"`
				Plans        []plan        `json:"plans"`
				QuickMoveIns []quickMoveIn `json:"quickMoveIns"`
			} `json:"community"`
		} `json:"pageProps"`
	} `json:"props"`
}

// FetchListings implements scraper.Extractor.
func (e *Extractor) FetchListings(ctx context.Context) []models.Record {
	doc, err := e.fetcher.FetchDocument(ctx, e.URL)
	if err != nil {
		e.logger.Warn("[%s] Fetch failed: %v", e.K, err)
		return nil
	}
	state, err := readState(doc)
	if err != nil {
		e.logger.Warn("[%s] %v", e.K, err)
		return nil
	}

	c := state.Props.PageProps.Community
	var records []models.Record
	if e.K.Kind == models.TypeNow {
		for _, q := range c.QuickMoveIns {
			records = append(records, e.fromQuickMoveIn(q))
		}
	} else {
		for _, p := range c.Plans {
			if p.IsAvailable != nil && !*p.IsAvailable {
				continue
			}
			records = append(records, e.fromPlan(p))
		}
	}

	out := services.Finalize(e.logger, e.K.String(), records)
	e.logger.Info("[%s] Extracted %d records", e.K, len(out))
	return out
}

func readState(doc *goquery.Document) (*pageState, error) {
	raw := strings.TrimSpace(doc.Find(stateSelector).First().Text())
	if raw == "" {
		return nil, errNoState
	}
	var s pageState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode page state: %w", err)
	}
	return &s, nil
}

func (e *Extractor) fromPlan(p plan) models.Record {
	r := e.Record(models.TypePlan)
	r.PlanName = p.Name
	r.DesignNumber = p.PlanNumber
	r.Price = dollars(p.BasePrice)
	r.Sqft = positive(p.SquareFeet.Min)
	r.Beds = spanText(p.Bedrooms)
	r.Baths = spanText(p.Bathrooms)
	r.Stories = count(float64(p.Stories))
	r.URL = p.URL
	return r
}

func (e *Extractor) fromQuickMoveIn(q quickMoveIn) models.Record {
	r := e.Record(models.TypeNow)
	r.PlanName = q.PlanName
	r.DesignNumber = q.PlanNumber
	r.Price = dollars(q.Price)
	r.OriginalPrice = dollars(q.OriginalPrice)
	r.Sqft = positive(q.SquareFeet)
	r.Beds = count(q.Bedrooms)
	r.Baths = count(q.Bathrooms)
	r.Stories = count(float64(q.Stories))
	r.Address = q.Address.Street
	r.Status = q.Status
	r.URL = q.URL
	return r
}

func dollars(v float64) *int64 {
	return positive(int64(v))
}

func positive(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return services.Int64(v)
}

func count(v float64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func spanText(s span) string {
	switch {
	case s.Min <= 0 && s.Max <= 0:
		return ""
	case s.Max <= s.Min:
		return strconv.FormatInt(s.Min, 10)
	case s.Min <= 0:
		return strconv.FormatInt(s.Max, 10)
	}
	return strconv.FormatInt(s.Min, 10) + "-" + strconv.FormatInt(s.Max, 10)
}
