package adapter

import (
	"log/slog"

	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/parse"
)

// NewBayut builds the adapter for bayut.sa. The site serves english markup
// with aria-labelled listing cards.
func NewBayut(fetcher Fetcher, cfg *config.ScraperConfig, log *slog.Logger) Adapter {
	return &site{
		source:  model.SourceBayut,
		fetcher: fetcher,
		log:     log.With(slog.String("adapter", "bayut")),
		seeds: []string{
			"https://www.bayut.sa/en/to-rent/property/riyadh/",
			"https://www.bayut.sa/en/for-sale/property/riyadh/",
			"https://www.bayut.sa/en/to-rent/property/jeddah/",
		},
		maxItems:   40,
		pathMarker: "/property/details-",
		sel: selectorSet{
			card:     []string{"article[aria-label='Listing']", "li[aria-label='Listing']", "div[class*='ListingCard']"},
			title:    []string{"h2[aria-label='Title']", "[aria-label='Title']", "h2"},
			price:    []string{"[aria-label='Price']", "span[class*='price']", "[class*='Price']"},
			location: []string{"[aria-label='Location']", "div[class*='location']"},
			area:     []string{"[aria-label='Area']", "span[class*='area']"},
			link:     []string{"a[aria-label='Listing link']", "a[href*='/property/']", "a"},
			image:    []string{"img[aria-label='Cover Photo']", "picture img", "img"},
		},
		classify: func(text, _ string) model.PropertyType {
			return classifyType(text)
		},
		city:   parse.CityEN,
		delays: newDelays(cfg),
	}
}
