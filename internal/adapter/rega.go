package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corpix/uarand"
	"github.com/gocolly/colly"
	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/parse"
)

// regaAdapter scrapes the government real-estate registry. The registry
// serves static server-rendered pages, so a plain HTTP collector is enough
// and no browser session is needed.
type regaAdapter struct {
	cfg    *config.ScraperConfig
	log    *slog.Logger
	seeds  []string
	delays delays
}

const regaMaxItems = 30

func NewRega(cfg *config.ScraperConfig, log *slog.Logger) Adapter {
	return &regaAdapter{
		cfg: cfg,
		log: log.With(slog.String("adapter", "rega")),
		seeds: []string{
			"https://rega.gov.sa/ar/listings/residential",
			"https://rega.gov.sa/ar/listings/commercial",
		},
		delays: newDelays(cfg),
	}
}

func (a *regaAdapter) Source() model.Source {
	return model.SourceRega
}

func (a *regaAdapter) collector() *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(uarand.GetRandom()))
	c.SetRequestTimeout(a.cfg.RequestTimeout)
	return c
}

func (a *regaAdapter) ScrapeProperties(ctx context.Context) (*model.ScrapingResult, error) {
	result := &model.ScrapingResult{
		Source:     model.SourceRega,
		ScrapedAt:  time.Now(),
		Properties: []model.ScrapedProperty{},
		Errors:     []string{},
	}

	seen := make(map[string]bool)
	for i, seed := range a.seeds {
		if i > 0 {
			if err := a.delays.betweenSeeds(ctx); err != nil {
				return result, err
			}
		}
		props, err := a.scrapeSeed(seed, seen)
		if err != nil {
			a.log.Warn("seed url failed.", slog.String("url", seed), slog.String("err", err.Error()))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", seed, err))
			continue
		}
		result.Properties = append(result.Properties, props...)
	}

	result.TotalFound = len(result.Properties)
	result.Success = len(result.Properties) > 0
	return result, nil
}

func (a *regaAdapter) scrapeSeed(seed string, seen map[string]bool) ([]model.ScrapedProperty, error) {
	var props []model.ScrapedProperty
	c := a.collector()

	c.OnHTML("div[class*='listing'], tr[class*='record'], article", func(e *colly.HTMLElement) {
		if len(props) >= regaMaxItems {
			return
		}
		link := e.ChildAttr("a[href]", "href")
		listingURL := absoluteURL(link, seed)
		if listingURL == "" || seen[listingURL] {
			return
		}
		seen[listingURL] = true

		fullText := parse.CleanText(e.Text)
		title := parse.CleanText(e.ChildText("h3, h4, [class*='title']"))
		if title == "" {
			title = truncate(fullText, 80)
		}

		prop := model.ScrapedProperty{
			Title:        title,
			ListingURL:   listingURL,
			Source:       model.SourceRega,
			ScrapedAt:    time.Now(),
			Price:        parse.Price(parse.CleanText(e.ChildText("[class*='price']"))),
			PropertyType: string(classifyType(fullText)),
			Features:     extractFeatures(fullText),
			Location: model.Location{
				City: parse.CityEN(parse.CleanText(e.ChildText("[class*='city'], [class*='location']"))),
			},
		}
		if areaText := parse.CleanText(e.ChildText("[class*='area']")); areaText != "" {
			size := parse.Area(areaText)
			prop.Size = &size
		}
		props = append(props, prop)
	})

	if err := c.Visit(seed); err != nil {
		return nil, err
	}
	c.Wait()
	return props, nil
}

func (a *regaAdapter) ScrapePropertyDetails(ctx context.Context, listingURL string) (*model.ScrapedProperty, error) {
	var prop *model.ScrapedProperty
	c := a.collector()

	c.OnHTML("body", func(e *colly.HTMLElement) {
		fullText := parse.CleanText(e.Text)
		p := model.ScrapedProperty{
			Title:        parse.CleanText(e.ChildText("h1, h2")),
			ListingURL:   listingURL,
			Source:       model.SourceRega,
			ScrapedAt:    time.Now(),
			Price:        parse.Price(parse.CleanText(e.ChildText("[class*='price']"))),
			PropertyType: string(classifyType(fullText)),
			Description:  parse.CleanText(e.ChildText("[class*='description'], article p")),
			Features:     extractFeatures(fullText),
			Location: model.Location{
				City: parse.CityEN(parse.CleanText(e.ChildText("[class*='city'], [class*='location']"))),
			},
		}
		if beds, baths := parse.Bedrooms(fullText), parse.Bathrooms(fullText); beds > 0 || baths > 0 {
			p.Rooms = &model.Rooms{Bedrooms: beds, Bathrooms: baths}
		}
		prop = &p
	})

	if err := c.Visit(listingURL); err != nil {
		return nil, err
	}
	c.Wait()
	if prop == nil {
		return nil, fmt.Errorf("no content extracted from %s", listingURL)
	}
	return prop, nil
}
