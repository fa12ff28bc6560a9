package adapter

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/parse"
)

// Adapter is the extraction contract every source implements.
//
// ScrapeProperties never returns an error for a single failed seed URL; the
// failure is recorded in the result and the run continues. The result carries
// Success=false only when zero properties were extracted across all seeds.
type Adapter interface {
	Source() model.Source
	ScrapeProperties(ctx context.Context) (*model.ScrapingResult, error)
	ScrapePropertyDetails(ctx context.Context, listingURL string) (*model.ScrapedProperty, error)
}

// Fetcher renders a page and returns its HTML. The browser session layer
// implements it; tests inject fixture HTML.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// selectorSet is an ordered list of CSS selector candidates per logical
// field. Candidates are tried in order; the first match wins.
type selectorSet struct {
	card     []string
	title    []string
	price    []string
	location []string
	area     []string
	link     []string
	image    []string
}

// featureKeywords maps bilingual keyword pairs found in element text to
// normalized english feature tags.
var featureKeywords = []struct {
	tag string
	en  string
	ar  string
}{
	{"parking", "parking", "موقف"},
	{"furnished", "furnished", "مفروش"},
	{"pool", "pool", "مسبح"},
	{"garden", "garden", "حديقة"},
	{"balcony", "balcony", "شرفة"},
	{"elevator", "elevator", "مصعد"},
	{"air conditioning", "air condition", "مكيف"},
	{"maid room", "maid", "غرفة خادمة"},
	{"security", "security", "حراسة"},
	{"gym", "gym", "نادي"},
}

// extractFeatures scans full element text for known bilingual keywords and
// emits normalized english tags.
func extractFeatures(text string) []string {
	lower := strings.ToLower(text)
	var features []string
	for _, kw := range featureKeywords {
		if strings.Contains(lower, kw.en) || strings.Contains(text, kw.ar) {
			features = append(features, kw.tag)
		}
	}
	return features
}

// classifyType maps free-form type text to the closed canonical enum.
func classifyType(text string) model.PropertyType {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "villa") || strings.Contains(lower, "house") ||
		strings.Contains(text, "فيلا") || strings.Contains(text, "فلة"):
		return model.TypeVilla
	case strings.Contains(lower, "office") || strings.Contains(text, "مكتب"):
		return model.TypeOffice
	case strings.Contains(lower, "land") || strings.Contains(lower, "plot") ||
		strings.Contains(text, "أرض") || strings.Contains(text, "ارض"):
		return model.TypeLand
	case strings.Contains(lower, "commercial") || strings.Contains(lower, "shop") ||
		strings.Contains(lower, "warehouse") || strings.Contains(text, "محل") ||
		strings.Contains(text, "مستودع"):
		return model.TypeCommercial
	default:
		return model.TypeApartment
	}
}

// firstText returns the cleaned text of the first selector candidate that
// matches inside the selection.
func firstText(sel *goquery.Selection, candidates []string) string {
	for _, c := range candidates {
		if text := parse.CleanText(sel.Find(c).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the named attribute of the first matching candidate.
func firstAttr(sel *goquery.Selection, candidates []string, attr string) string {
	for _, c := range candidates {
		if v, ok := sel.Find(c).First().Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

func collectImages(sel *goquery.Selection, candidates []string) []string {
	var images []string
	for _, c := range candidates {
		sel.Find(c).Each(func(_ int, img *goquery.Selection) {
			src, ok := img.Attr("src")
			if !ok || src == "" {
				src, _ = img.Attr("data-src")
			}
			if src != "" && strings.HasPrefix(src, "http") {
				images = append(images, src)
			}
		})
		if len(images) > 0 {
			break
		}
	}
	return images
}

// absoluteURL resolves href against the seed URL's scheme and host.
func absoluteURL(href, base string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(u).String()
}

// anchorFallback is the generic heuristic used when no card selector
// matches: any anchor whose path looks like a listing detail page.
func anchorFallback(doc *goquery.Document, base, pathMarker string) []string {
	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, pathMarker) {
			return
		}
		abs := absoluteURL(href, base)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})
	return links
}

// delays holds the randomized pacing between items and between seed URLs.
// Anti-detection needs human-like pacing, so extraction is sequential.
type delays struct {
	itemMin time.Duration
	itemMax time.Duration
	seedMin time.Duration
	seedMax time.Duration
	rnd     *rand.Rand
}

func newDelays(cfg *config.ScraperConfig) delays {
	return delays{
		itemMin: cfg.ItemDelayMin,
		itemMax: cfg.ItemDelayMax,
		seedMin: cfg.SeedDelayMin,
		seedMax: cfg.SeedDelayMax,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d delays) betweenItems(ctx context.Context) error {
	return d.sleep(ctx, d.itemMin, d.itemMax)
}

func (d delays) betweenSeeds(ctx context.Context) error {
	return d.sleep(ctx, d.seedMin, d.seedMax)
}

func (d delays) sleep(ctx context.Context, min, max time.Duration) error {
	if max <= 0 {
		return nil
	}
	dur := min
	if max > min {
		dur += time.Duration(d.rnd.Int63n(int64(max - min)))
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
