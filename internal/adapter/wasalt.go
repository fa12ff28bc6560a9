package adapter

import (
	"log/slog"

	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/parse"
)

// NewWasalt builds the adapter for wasalt.sa.
func NewWasalt(fetcher Fetcher, cfg *config.ScraperConfig, log *slog.Logger) Adapter {
	return &site{
		source:  model.SourceWasalt,
		fetcher: fetcher,
		log:     log.With(slog.String("adapter", "wasalt")),
		seeds: []string{
			"https://wasalt.sa/en/sale/search?propertyFor=sale&countryId=1&cityId=273",
			"https://wasalt.sa/en/rent/search?propertyFor=rent&countryId=1&cityId=273",
		},
		maxItems:   30,
		pathMarker: "/property/",
		sel: selectorSet{
			card:     []string{"div[data-testid='property-card']", "div[class*='PropertyCard']", "article"},
			title:    []string{"h2[data-testid='property-title']", "[class*='title']", "h2"},
			price:    []string{"[data-testid='property-price']", "[class*='price']"},
			location: []string{"[data-testid='property-location']", "[class*='location']"},
			area:     []string{"[data-testid='property-area']", "[class*='area']"},
			link:     []string{"a[href*='/property/']", "a"},
			image:    []string{"img[data-testid='property-image']", "img"},
		},
		classify: func(text, _ string) model.PropertyType {
			return classifyType(text)
		},
		city:   parse.CityEN,
		delays: newDelays(cfg),
	}
}
