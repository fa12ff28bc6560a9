package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/parse"
)

// site is the shared extraction engine behind the browser-driven adapters.
// Each source parameterizes it with seed URLs, selector candidates, a type
// classifier and a city normalizer.
type site struct {
	source     model.Source
	fetcher    Fetcher
	log        *slog.Logger
	seeds      []string
	maxItems   int
	sel        selectorSet
	pathMarker string
	classify   func(text, listingURL string) model.PropertyType
	city       func(raw string) string
	delays     delays
}

func (s *site) Source() model.Source {
	return s.source
}

func (s *site) ScrapeProperties(ctx context.Context) (*model.ScrapingResult, error) {
	result := &model.ScrapingResult{
		Source:     s.source,
		ScrapedAt:  time.Now(),
		Properties: []model.ScrapedProperty{},
		Errors:     []string{},
	}

	seen := make(map[string]bool)
	for i, seed := range s.seeds {
		if i > 0 {
			if err := s.delays.betweenSeeds(ctx); err != nil {
				return result, err
			}
		}
		html, err := s.fetcher.FetchPage(ctx, seed)
		if err != nil {
			s.log.Warn("seed url failed.", slog.String("url", seed), slog.String("err", err.Error()))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", seed, err))
			continue
		}
		props, errs := s.parseListingPage(ctx, html, seed, seen)
		result.Properties = append(result.Properties, props...)
		result.Errors = append(result.Errors, errs...)
		s.log.Debug("seed url scraped.", slog.String("url", seed), slog.Int("items", len(props)))
	}

	result.TotalFound = len(result.Properties)
	result.Success = len(result.Properties) > 0
	return result, nil
}

func (s *site) parseListingPage(ctx context.Context, html, seed string,
	seen map[string]bool) ([]model.ScrapedProperty, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, []string{fmt.Sprintf("%s: parse: %v", seed, err)}
	}

	var cards *goquery.Selection
	for _, c := range s.sel.card {
		if found := doc.Find(c); found.Length() > 0 {
			cards = found
			break
		}
	}

	var out []model.ScrapedProperty
	var errs []string

	if cards == nil {
		// Generic anchor heuristic: no card selector matched, so emit
		// minimal records from anything that looks like a detail link.
		for _, link := range anchorFallback(doc, seed, s.pathMarker) {
			if len(out) >= s.maxItems {
				break
			}
			if seen[link] {
				continue
			}
			seen[link] = true
			out = append(out, model.ScrapedProperty{
				Title:        parse.CleanText(strings.ReplaceAll(lastPathSegment(link), "-", " ")),
				ListingURL:   link,
				Source:       s.source,
				ScrapedAt:    time.Now(),
				PropertyType: string(s.classify("", link)),
				Price:        model.Price{Currency: "SAR", Period: "sale"},
			})
		}
		return out, errs
	}

	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if len(out) >= s.maxItems {
			return false
		}
		if i > 0 {
			if err := s.delays.betweenItems(ctx); err != nil {
				return false
			}
		}
		prop, err := s.extractCard(card, seed)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s item %d: %v", seed, i, err))
			return true
		}
		if seen[prop.ListingURL] {
			return true
		}
		seen[prop.ListingURL] = true
		out = append(out, *prop)
		return true
	})

	return out, errs
}

func (s *site) extractCard(card *goquery.Selection, seed string) (*model.ScrapedProperty, error) {
	link := firstAttr(card, s.sel.link, "href")
	if link == "" {
		link, _ = card.Attr("href")
	}
	listingURL := absoluteURL(link, seed)
	if listingURL == "" {
		return nil, fmt.Errorf("no listing link found")
	}

	fullText := parse.CleanText(card.Text())
	title := firstText(card, s.sel.title)
	if title == "" {
		title = truncate(fullText, 80)
	}

	prop := &model.ScrapedProperty{
		Title:        title,
		ListingURL:   listingURL,
		Source:       s.source,
		ScrapedAt:    time.Now(),
		Price:        parse.Price(firstText(card, s.sel.price)),
		PropertyType: string(s.classify(fullText, listingURL)),
		Images:       collectImages(card, s.sel.image),
		Features:     extractFeatures(fullText),
		Location:     s.parseLocation(firstText(card, s.sel.location)),
	}

	if areaText := firstText(card, s.sel.area); areaText != "" {
		size := parse.Area(areaText)
		prop.Size = &size
	}
	if beds, baths := parse.Bedrooms(fullText), parse.Bathrooms(fullText); beds > 0 || baths > 0 {
		prop.Rooms = &model.Rooms{Bedrooms: beds, Bathrooms: baths}
	}

	return prop, nil
}

func (s *site) ScrapePropertyDetails(ctx context.Context, listingURL string) (*model.ScrapedProperty, error) {
	html, err := s.fetcher.FetchPage(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	body := doc.Selection
	fullText := parse.CleanText(doc.Find("body").Text())

	prop := &model.ScrapedProperty{
		Title:        firstText(body, s.sel.title),
		ListingURL:   listingURL,
		Source:       s.source,
		ScrapedAt:    time.Now(),
		Price:        parse.Price(firstText(body, s.sel.price)),
		PropertyType: string(s.classify(fullText, listingURL)),
		Images:       collectImages(body, s.sel.image),
		Features:     extractFeatures(fullText),
		Location:     s.parseLocation(firstText(body, s.sel.location)),
		Description:  firstText(body, []string{"[class*='description']", "meta[name='description']", "article p", "p"}),
	}

	if areaText := firstText(body, s.sel.area); areaText != "" {
		size := parse.Area(areaText)
		prop.Size = &size
	}
	if beds, baths := parse.Bedrooms(fullText), parse.Bathrooms(fullText); beds > 0 || baths > 0 {
		prop.Rooms = &model.Rooms{Bedrooms: beds, Bathrooms: baths}
	}

	return prop, nil
}

// parseLocation splits "district, city" text in either language. The last
// segment is treated as the city.
func (s *site) parseLocation(raw string) model.Location {
	raw = strings.ReplaceAll(raw, "،", ",")
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = parse.CleanText(parts[i])
	}
	loc := model.Location{}
	switch {
	case len(parts) >= 2:
		loc.District = parts[0]
		loc.City = s.city(parts[len(parts)-1])
	case len(parts) == 1 && parts[0] != "":
		loc.City = s.city(parts[0])
	}
	return loc
}

func lastPathSegment(u string) string {
	trimmed := strings.TrimRight(u, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
