package adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/parse"
)

type stubFetcher struct {
	pages map[string]string
}

func (f *stubFetcher) FetchPage(_ context.Context, url string) (string, error) {
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("connection refused: %s", url)
	}
	return html, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSite(fetcher Fetcher, seeds []string) *site {
	return &site{
		source:     model.SourceBayut,
		fetcher:    fetcher,
		log:        testLogger(),
		seeds:      seeds,
		maxItems:   40,
		pathMarker: "/property/",
		sel: selectorSet{
			card:     []string{"article.listing"},
			title:    []string{"h2.title"},
			price:    []string{"span.price"},
			location: []string{"div.location"},
			area:     []string{"span.area"},
			link:     []string{"a"},
			image:    []string{"img"},
		},
		classify: func(text, _ string) model.PropertyType { return classifyType(text) },
		city:     parse.CityEN,
		delays:   delays{rnd: rand.New(rand.NewSource(1))},
	}
}

func card(url, title, price, location, area string) string {
	return fmt.Sprintf(`<article class="listing">
		<a href=%q></a>
		<h2 class="title">%s</h2>
		<span class="price">%s</span>
		<div class="location">%s</div>
		<span class="area">%s</span>
	</article>`, url, title, price, location, area)
}

func TestScrapeProperties_DropsDuplicateURLWithinRun(t *testing.T) {
	html := "<html><body>" +
		card("/property/1", "Villa with parking", "SAR 2,000,000", "Al Narjis, Riyadh", "400 m²") +
		card("/property/2", "2 bedroom apartment", "45,000 SAR yearly", "Al Olaya, Riyadh", "120 m²") +
		card("/property/1", "Villa with parking", "SAR 2,000,000", "Al Narjis, Riyadh", "400 m²") +
		card("/property/3", "Office floor", "SAR 180,000 yearly", "KAFD, Riyadh", "350 m²") +
		"</body></html>"

	seeds := []string{"https://site.test/search"}
	s := testSite(&stubFetcher{pages: map[string]string{seeds[0]: html}}, seeds)

	result, err := s.ScrapeProperties(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected success with extracted properties")
	}
	if len(result.Properties) != 3 {
		t.Fatalf("got %d properties; want 3", len(result.Properties))
	}
	if result.TotalFound != 3 {
		t.Errorf("TotalFound = %d; want 3", result.TotalFound)
	}
}

func TestScrapeProperties_FailedSeedRecordedNotFatal(t *testing.T) {
	good := "<html><body>" +
		card("/property/1", "Villa", "SAR 1,000,000", "Al Malqa, Riyadh", "300 m²") +
		"</body></html>"

	seeds := []string{"https://site.test/down", "https://site.test/up"}
	s := testSite(&stubFetcher{pages: map[string]string{seeds[1]: good}}, seeds)

	result, err := s.ScrapeProperties(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("one working seed should make the run successful")
	}
	if len(result.Errors) != 1 {
		t.Errorf("got %d errors; want 1 for the failed seed", len(result.Errors))
	}
	if len(result.Properties) != 1 {
		t.Errorf("got %d properties; want 1", len(result.Properties))
	}
}

func TestScrapeProperties_AllSeedsFailing(t *testing.T) {
	seeds := []string{"https://site.test/a", "https://site.test/b"}
	s := testSite(&stubFetcher{pages: map[string]string{}}, seeds)

	result, err := s.ScrapeProperties(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("zero extracted properties must report success=false")
	}
	if len(result.Errors) != 2 {
		t.Errorf("got %d errors; want 2", len(result.Errors))
	}
}

func TestScrapeProperties_AnchorFallback(t *testing.T) {
	html := `<html><body>
		<div class="unknown-layout">
			<a href="/property/101">Listing one</a>
			<a href="/property/102">Listing two</a>
			<a href="/about">About us</a>
			<a href="/property/101">Listing one again</a>
		</div>
	</body></html>`

	seeds := []string{"https://site.test/search"}
	s := testSite(&stubFetcher{pages: map[string]string{seeds[0]: html}}, seeds)

	result, err := s.ScrapeProperties(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Properties) != 2 {
		t.Fatalf("got %d properties; want 2 from anchor fallback", len(result.Properties))
	}
	for _, p := range result.Properties {
		if p.ListingURL == "" {
			t.Error("fallback record without listing url")
		}
	}
}

func TestExtractCard_FieldParsing(t *testing.T) {
	html := "<html><body>" +
		card("/property/7", "Furnished 3 bedrooms villa with parking and pool",
			"SAR 2,500,000", "حي النرجس، الرياض", "420 m²") +
		"</body></html>"

	seeds := []string{"https://site.test/search"}
	s := testSite(&stubFetcher{pages: map[string]string{seeds[0]: html}}, seeds)

	result, _ := s.ScrapeProperties(context.Background())
	if len(result.Properties) != 1 {
		t.Fatalf("got %d properties; want 1", len(result.Properties))
	}
	p := result.Properties[0]
	if p.ListingURL != "https://site.test/property/7" {
		t.Errorf("listing url = %s", p.ListingURL)
	}
	if p.Price.Amount != 2500000 {
		t.Errorf("price = %f", p.Price.Amount)
	}
	if p.Location.City != "Riyadh" {
		t.Errorf("city = %q; want Riyadh", p.Location.City)
	}
	if p.Location.District == "" {
		t.Error("district not extracted")
	}
	if p.Size == nil || p.Size.Area != 420 {
		t.Errorf("size = %+v", p.Size)
	}
	if p.Rooms == nil || p.Rooms.Bedrooms != 3 {
		t.Errorf("rooms = %+v", p.Rooms)
	}
	if p.PropertyType != string(model.TypeVilla) {
		t.Errorf("type = %s; want villa", p.PropertyType)
	}
	if !containsString(p.Features, "parking") || !containsString(p.Features, "pool") {
		t.Errorf("features = %v", p.Features)
	}
}

func TestScrapePropertyDetails(t *testing.T) {
	detail := `<html><body>
		<h2 class="title">Modern apartment</h2>
		<span class="price">SAR 48,000 yearly</span>
		<div class="location">Al Hamra, Jeddah</div>
		<span class="area">130 m²</span>
		<div class="description">2 bedrooms apartment with balcony and elevator.</div>
	</body></html>`

	url := "https://site.test/property/55"
	s := testSite(&stubFetcher{pages: map[string]string{url: detail}}, nil)

	prop, err := s.ScrapePropertyDetails(context.Background(), url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prop.Title != "Modern apartment" {
		t.Errorf("title = %q", prop.Title)
	}
	if prop.Price.Period != "yearly" {
		t.Errorf("period = %q", prop.Price.Period)
	}
	if prop.Location.City != "Jeddah" {
		t.Errorf("city = %q", prop.Location.City)
	}
	if prop.Rooms == nil || prop.Rooms.Bedrooms != 2 {
		t.Errorf("rooms = %+v", prop.Rooms)
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
