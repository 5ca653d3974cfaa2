// Package catalog wires every known builder source into a registry.
package catalog

import (
	"newhome-tracker/models"
	"newhome-tracker/scraper"
	"newhome-tracker/scraper/highland"
	"newhome-tracker/scraper/mihomes"
	"newhome-tracker/scraper/pacesetter"
	"newhome-tracker/scraper/unionmain"
	"newhome-tracker/utils"
)

// Deps are the shared collaborators handed to adapters.
type Deps struct {
	Fetcher        *scraper.PageFetcher
	Browser        pacesetter.Renderer
	Logger         *utils.Logger
	MaxConcurrency int
	RateLimitMs    int
}

const highlandFeed = "https://www.highlandhomes.com/api/community-listings"

// Build registers the full source table in a fixed order.
func Build(d Deps) (*scraper.Registry, error) {
	if d.Logger == nil {
		d.Logger = utils.NewNopLogger()
	}

	union := func(community, path, kind string) scraper.Extractor {
		return unionmain.New(unionmain.Config{
			Community: community, URL: "https://www.unionmainhomes.com/" + path, Kind: kind,
			Fetcher: d.Fetcher, Logger: d.Logger,
			MaxConcurrency: d.MaxConcurrency, RateLimitMs: d.RateLimitMs,
		})
	}
	high := func(community, slug, kind string) scraper.Extractor {
		return highland.New(highland.Config{
			Community: community, Slug: slug, BaseURL: highlandFeed, Kind: kind,
			Fetcher: d.Fetcher, Logger: d.Logger,
		})
	}
	pace := func(community, path, kind string) scraper.Extractor {
		return pacesetter.New(pacesetter.Config{
			Community: community, URL: "https://www.pacesetterhomestexas.com/" + path, Kind: kind,
			Renderer: d.Browser, Logger: d.Logger,
		})
	}
	mi := func(community, path, kind string) scraper.Extractor {
		return mihomes.New(mihomes.Config{
			Community: community, URL: "https://www.mihomes.com/new-homes/texas/dallas-fort-worth/" + path, Kind: kind,
			Fetcher: d.Fetcher, Logger: d.Logger,
		})
	}

	sources := []scraper.Extractor{
		union("Elevon", "communities/elevon/floor-plans", models.TypePlan),
		union("Elevon", "communities/elevon/move-in-ready", models.TypeNow),
		union("Painted Tree", "communities/painted-tree/floor-plans", models.TypePlan),

		high("Elevon", "elevon", models.TypePlan),
		high("Elevon", "elevon", models.TypeNow),
		high("Sandbrock Ranch", "sandbrock-ranch", models.TypePlan),
		high("Sandbrock Ranch", "sandbrock-ranch", models.TypeNow),

		pace("Mobberly Farms", "communities/mobberly-farms", models.TypePlan),
		pace("Mobberly Farms", "communities/mobberly-farms/quick-move-in", models.TypeNow),

		mi("Painted Tree", "mckinney/painted-tree", models.TypePlan),
		mi("Painted Tree", "mckinney/painted-tree", models.TypeNow),
		mi("Wildflower Ranch", "fort-worth/wildflower-ranch", models.TypePlan),
	}

	reg := scraper.NewRegistry()
	for _, e := range sources {
		if err := reg.Register(e); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
