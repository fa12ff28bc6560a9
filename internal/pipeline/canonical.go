package pipeline

import (
	"log/slog"
	"strings"

	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
)

// Canonicalizer converts raw scraped records into the canonical Property
// model. It owns the canonical records; downstream consumers read only.
type Canonicalizer struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Canonicalizer {
	return &Canonicalizer{log: log}
}

// Process converts a batch in a single pass. Records whose listing URL was
// already seen in this pass are dropped, first-seen wins. Output ordering
// follows input ordering.
func (c *Canonicalizer) Process(raw []model.ScrapedProperty) []model.Property {
	seen := make(map[string]bool, len(raw))
	out := make([]model.Property, 0, len(raw))

	for _, r := range raw {
		if r.ListingURL == "" || seen[r.ListingURL] {
			continue
		}
		seen[r.ListingURL] = true
		out = append(out, c.canonicalize(r))
	}

	if dropped := len(raw) - len(out); dropped > 0 {
		c.log.Debug("dropped duplicate listings.", slog.Int("count", dropped))
	}
	return out
}

func (c *Canonicalizer) canonicalize(r model.ScrapedProperty) model.Property {
	p := model.Property{
		ID:          model.PropertyID(r.Source, r.ListingURL),
		Title:       r.Title,
		Price:       r.Price.Amount,
		Currency:    r.Price.Currency,
		Location:    r.Location,
		Images:      r.Images,
		Type:        MapType(r.PropertyType),
		Status:      "available",
		Description: r.Description,
		Features:    r.Features,
		ListingURL:  r.ListingURL,
		Source:      r.Source,
		Contact:     r.Contact,
		CreatedAt:   r.ScrapedAt,
		UpdatedAt:   r.ScrapedAt,
	}
	if p.Currency == "" {
		p.Currency = "SAR"
	}
	if r.Rooms != nil {
		p.Details.Bedrooms = r.Rooms.Bedrooms
		p.Details.Bathrooms = r.Rooms.Bathrooms
	}
	if r.Size != nil {
		p.Details.Area = r.Size.Area
	}
	p.Details.Parking = hasFeature(r.Features, "parking")
	p.Details.Furnished = hasFeature(r.Features, "furnish")
	return p
}

// MapType maps a free-form property type string onto the closed enum.
// Unrecognized types default to apartment, the most common listing kind.
func MapType(raw string) model.PropertyType {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "villa") || strings.Contains(lower, "house"):
		return model.TypeVilla
	case strings.Contains(lower, "office"):
		return model.TypeOffice
	case strings.Contains(lower, "land") || strings.Contains(lower, "plot"):
		return model.TypeLand
	case strings.Contains(lower, "commercial") || strings.Contains(lower, "shop") ||
		strings.Contains(lower, "warehouse"):
		return model.TypeCommercial
	default:
		return model.TypeApartment
	}
}

func hasFeature(features []string, substr string) bool {
	for _, f := range features {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}
	return false
}
