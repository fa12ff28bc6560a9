package manager

import (
	"fmt"
	"time"

	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
)

// FallbackGenerator produces synthetic listings for a source whose adapter
// failed entirely, so the feed degrades to obviously synthetic but
// structurally valid data instead of going empty.
type FallbackGenerator interface {
	Generate(source model.Source) []model.ScrapedProperty
}

// profile is one synthetic listing template. Profiles differ in price, size
// and features so the degraded feed still looks like a property mix.
type profile struct {
	title    string
	propType string
	price    float64
	period   string
	area     float64
	bedrooms int
	baths    int
	city     string
	district string
	features []string
}

var profiles = []profile{
	{"Spacious villa with private pool", "villa", 2_400_000, "sale", 420, 5, 4,
		"Riyadh", "Al Narjis", []string{"parking", "pool", "garden"}},
	{"Modern two bedroom apartment", "apartment", 45_000, "yearly", 120, 2, 2,
		"Riyadh", "Al Olaya", []string{"parking", "elevator", "furnished"}},
	{"Furnished studio near business district", "apartment", 28_000, "yearly", 55, 1, 1,
		"Jeddah", "Al Hamra", []string{"furnished", "security"}},
	{"Open plan office floor", "office", 180_000, "yearly", 350, 0, 2,
		"Riyadh", "King Abdullah Financial District", []string{"parking", "security"}},
	{"Residential land plot", "land", 950_000, "sale", 600, 0, 0,
		"Dammam", "Al Faisaliyah", nil},
	{"Street-front retail shop", "commercial", 120_000, "yearly", 85, 0, 1,
		"Jeddah", "Al Rawdah", []string{"parking"}},
}

// SyntheticGenerator is the default fallback strategy: a fixed-size dataset
// per source with distinct listing URLs.
type SyntheticGenerator struct {
	size int
}

func NewSyntheticGenerator(size int) *SyntheticGenerator {
	if size <= 0 || size > len(profiles) {
		size = len(profiles)
	}
	return &SyntheticGenerator{size: size}
}

func (g *SyntheticGenerator) Size() int {
	return g.size
}

func (g *SyntheticGenerator) Generate(source model.Source) []model.ScrapedProperty {
	now := time.Now()
	out := make([]model.ScrapedProperty, 0, g.size)
	for i := 0; i < g.size; i++ {
		p := profiles[i]
		out = append(out, model.ScrapedProperty{
			Title:        "[Synthetic] " + p.title,
			ListingURL:   fmt.Sprintf("https://fallback.invalid/%s/%s-%d", source, p.propType, i+1),
			Source:       source,
			ScrapedAt:    now,
			PropertyType: p.propType,
			Price:        model.Price{Amount: p.price, Currency: "SAR", Period: p.period},
			Size:         &model.Size{Area: p.area, Unit: "sqm"},
			Rooms:        &model.Rooms{Bedrooms: p.bedrooms, Bathrooms: p.baths},
			Location:     model.Location{City: p.city, District: p.district},
			Features:     p.features,
			Description:  "Synthetic listing generated while the source was unreachable.",
		})
	}
	return out
}
