// Package unionmain extracts floor plans and move-in homes from UnionMain
// Homes community pages, which are rendered server-side.
package unionmain

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newhome-tracker/models"
	"newhome-tracker/scraper"
	"newhome-tracker/services"
	"newhome-tracker/utils"
)

const (
	Builder = "unionmain"
	Company = "UnionMain Homes"
)

// Config describes one community page.
type Config struct {
	Community string
	URL       string
	Kind      string

	Fetcher        *scraper.PageFetcher
	Logger         *utils.Logger
	MaxConcurrency int
	RateLimitMs    int
}

// Extractor scrapes one community page for one listing kind.
type Extractor struct {
	scraper.Base
	fetcher *scraper.PageFetcher
	logger  *utils.Logger
	workers int
	rateMs  int
}

// New creates an Extractor for cfg.
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
		workers: cfg.MaxConcurrency,
		rateMs:  cfg.RateLimitMs,
	}
}

func cardSelector(kind string) string {
	if kind == models.TypeNow {
		return "article.home-card"
	}
	return "article.plan-card"
}

// FetchListings implements scraper.Extractor.
func (e *Extractor) FetchListings(ctx context.Context) []models.Record {
	doc, err := e.fetcher.FetchDocument(ctx, e.URL)
	if err != nil {
		e.logger.Warn("[%s] Fetch failed: %v", e.K, err)
		return nil
	}

	var (
		records []models.Record
		links   []string
	)
	doc.Find(cardSelector(e.K.Kind)).Each(func(_ int, card *goquery.Selection) {
		r := e.Record(e.K.Kind)
		r.PlanName = card.Find(".card__title").First().Text()
		r.Address = card.Find(".card__address").First().Text()
		r.Status = card.AttrOr("data-status", "")

		price := card.Find(".card__price .price--now")
		if price.Length() == 0 {
			price = card.Find(".card__price")
		}
		r.Price = services.PriceFrom(price.First().Text())
		r.OriginalPrice = services.PriceFrom(card.Find(".card__price .price--was").First().Text())

		r.Beds = spec(card, "beds")
		r.Baths = spec(card, "baths")
		r.Sqft = services.SqftFrom(spec(card, "sqft"))
		r.Stories = spec(card, "stories")

		href, _ := card.Find("a.card__link").First().Attr("href")
		r.URL = scraper.Resolve(doc, href)

		records = append(records, r)
		links = append(links, r.URL)
	})

	if len(records) == 0 {
		e.logger.Warn("[%s] No cards matched %q on %s", e.K, cardSelector(e.K.Kind), e.URL)
		return nil
	}

	e.enrich(ctx, records, links)
	out := services.Finalize(e.logger, e.K.String(), records)
	e.logger.Info("[%s] Extracted %d records", e.K, len(out))
	return out
}

func spec(card *goquery.Selection, name string) string {
	return strings.TrimSpace(card.Find(`[data-spec="` + name + `"]`).First().Text())
}

// enrich fills square footage and stories from detail pages for cards that
// omit them. Each job writes only its own slice element.
func (e *Extractor) enrich(ctx context.Context, records []models.Record, links []string) {
	pool := utils.NewWorkerPool(e.workers, e.rateMs)
	for i := range records {
		r := &records[i]
		if (r.Sqft != nil && r.Stories != "") || links[i] == "" {
			continue
		}
		link := links[i]
		pool.Submit(func() {
			doc, err := e.fetcher.FetchDocument(ctx, link)
			if err != nil {
				e.logger.Warn("[%s] Detail page failed for %s: %v", e.K, link, err)
				return
			}
			facts := doc.Find(".plan-detail__facts")
			if r.Sqft == nil {
				r.Sqft = services.SqftFrom(spec(facts, "sqft"))
			}
			if r.Stories == "" {
				r.Stories = spec(facts, "stories")
			}
			if r.DesignNumber == "" {
				r.DesignNumber = strings.TrimSpace(facts.AttrOr("data-design", ""))
			}
		})
	}
	pool.Wait()
}
