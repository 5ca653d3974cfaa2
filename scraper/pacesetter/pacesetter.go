// Package pacesetter extracts Pacesetter Homes listings. Their community
// pages build the plan grid client-side, so extraction runs in a headless
// browser.
package pacesetter

import (
	"context"
	"fmt"

	"newhome-tracker/models"
	"newhome-tracker/scraper"
	"newhome-tracker/services"
	"newhome-tracker/utils"
)

const (
	Builder = "pacesetter"
	Company = "Pacesetter Homes"

	waitSelector = "[data-listing-grid]"
)

// Renderer evaluates a script against a rendered page. *scraper.Browser
// satisfies it.
type Renderer interface {
	Evaluate(ctx context.Context, target, waitSelector, script string, out any) error
}

type Config struct {
	Community string
	URL       string
	Kind      string

	Renderer Renderer
	Logger   *utils.Logger
}

type Extractor struct {
	scraper.Base
	renderer Renderer
	logger   *utils.Logger
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
		renderer: cfg.Renderer,
		logger:   cfg.Logger,
	}
}

// card is what the in-page script returns for each listing tile.
type card struct {
	Name    string `json:"name"`
	Price   string `json:"price"`
	Was     string `json:"was"`
	Sqft    string `json:"sqft"`
	Beds    string `json:"beds"`
	Baths   string `json:"baths"`
	Stories string `json:"stories"`
	Address string `json:"address"`
	Status  string `json:"status"`
	URL     string `json:"url"`
}

// cardScript collects every tile of the requested kind. Plan tiles carry
// data-kind="plan", spec homes data-kind="home".
func cardScript(kind string) string {
	tile := "plan"
	if kind == models.TypeNow {
		tile = "home"
	}
	return fmt.Sprintf(`
		(function() {
			var text = function(root, sel) {
				var el = root.querySelector(sel);
				return el ? el.innerText.trim() : '';
			};
			var out = [];
			document.querySelectorAll('[data-listing-grid] [data-kind="%s"]').forEach(function(tile) {
				var link = tile.querySelector('a[href]');
				out.push({
					name:    text(tile, '.listing__name'),
					price:   text(tile, '.listing__price .current') || text(tile, '.listing__price'),
					was:     text(tile, '.listing__price .was'),
					sqft:    text(tile, '.listing__sqft'),
					beds:    text(tile, '.listing__beds'),
					baths:   text(tile, '.listing__baths'),
					stories: text(tile, '.listing__stories'),
					address: text(tile, '.listing__address'),
					status:  tile.getAttribute('data-status') || '',
					url:     link ? link.href : ''
				});
			});
			return out;
		})()
	`, tile)
}

// FetchListings implements scraper.Extractor.
func (e *Extractor) FetchListings(ctx context.Context) []models.Record {
	var cards []card
	if err := e.renderer.Evaluate(ctx, e.URL, waitSelector, cardScript(e.K.Kind), &cards); err != nil {
		e.logger.Warn("[%s] Render failed: %v", e.K, err)
		return nil
	}
	out := services.Finalize(e.logger, e.K.String(), e.toRecords(cards))
	e.logger.Info("[%s] Extracted %d records from %d tiles", e.K, len(out), len(cards))
	return out
}

func (e *Extractor) toRecords(cards []card) []models.Record {
	records := make([]models.Record, 0, len(cards))
	for _, c := range cards {
		r := e.Record(e.K.Kind)
		r.PlanName = c.Name
		r.Price = services.PriceFrom(c.Price)
		r.OriginalPrice = services.PriceFrom(c.Was)
		r.Sqft = services.SqftFrom(c.Sqft)
		r.Beds = c.Beds
		r.Baths = c.Baths
		r.Stories = c.Stories
		r.Address = c.Address
		r.Status = c.Status
		r.URL = c.URL
		records = append(records, r)
	}
	return records
}
