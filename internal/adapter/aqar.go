package adapter

import (
	"log/slog"
	"strings"

	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/parse"
)

// NewAqar builds the adapter for sa.aqar.fm. The site exposes arabic-only
// text, so city names go through the arabic lookup table, and the listing
// category is also encoded in the URL path.
func NewAqar(fetcher Fetcher, cfg *config.ScraperConfig, log *slog.Logger) Adapter {
	return &site{
		source:  model.SourceAqar,
		fetcher: fetcher,
		log:     log.With(slog.String("adapter", "aqar")),
		seeds: []string{
			"https://sa.aqar.fm/شقق-للإيجار/الرياض",
			"https://sa.aqar.fm/فلل-للبيع/الرياض",
			"https://sa.aqar.fm/شقق-للإيجار/جدة",
			"https://sa.aqar.fm/أراضي-للبيع/الرياض",
		},
		maxItems:   50,
		pathMarker: "/ad/",
		sel: selectorSet{
			card:     []string{"div[class*='listing-card']", "div[class*='_ad']", "article"},
			title:    []string{"h4", "h3", "[class*='title']"},
			price:    []string{"[class*='price']", "span[class*='_price']"},
			location: []string{"[class*='location']", "[class*='address']"},
			area:     []string{"[class*='area']", "[class*='size']"},
			link:     []string{"a[href*='/ad/']", "a"},
			image:    []string{"img[class*='image']", "img"},
		},
		classify: classifyAqar,
		city:     parse.CityEN,
		delays:   newDelays(cfg),
	}
}

// classifyAqar reads the category from the listing URL first; aqar encodes
// it in the path (شقق apartments, فلل villas, أراضي land, مكاتب offices).
func classifyAqar(text, listingURL string) model.PropertyType {
	switch {
	case strings.Contains(listingURL, "شق"):
		return model.TypeApartment
	case strings.Contains(listingURL, "فل"):
		return model.TypeVilla
	case strings.Contains(listingURL, "أراض") || strings.Contains(listingURL, "ارض"):
		return model.TypeLand
	case strings.Contains(listingURL, "مكاتب") || strings.Contains(listingURL, "مكتب"):
		return model.TypeOffice
	case strings.Contains(listingURL, "محلات") || strings.Contains(listingURL, "مستودع"):
		return model.TypeCommercial
	}
	return classifyType(text)
}
