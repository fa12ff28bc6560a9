package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Source string

const (
	SourceBayut  Source = "bayut"
	SourceAqar   Source = "aqar"
	SourceWasalt Source = "wasalt"
	SourceRega   Source = "rega"
)

// AllSources returns every configured source in fleet order.
func AllSources() []Source {
	return []Source{SourceBayut, SourceAqar, SourceWasalt, SourceRega}
}

func ParseSource(s string) (Source, bool) {
	switch Source(s) {
	case SourceBayut, SourceAqar, SourceWasalt, SourceRega:
		return Source(s), true
	}
	return "", false
}

type PropertyType string

const (
	TypeApartment  PropertyType = "apartment"
	TypeVilla      PropertyType = "villa"
	TypeOffice     PropertyType = "office"
	TypeLand       PropertyType = "land"
	TypeCommercial PropertyType = "commercial"
)

type Location struct {
	City     string `json:"city"`
	District string `json:"district"`
	Region   string `json:"region,omitempty"`
}

type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Period   string  `json:"period,omitempty"` // monthly, yearly or sale
}

type Size struct {
	Area float64 `json:"area"`
	Unit string  `json:"unit"` // sqm or sqft
}

type Rooms struct {
	Bedrooms  int `json:"bedrooms,omitempty"`
	Bathrooms int `json:"bathrooms,omitempty"`
}

type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// ScrapedProperty is the raw per-source record produced by an adapter.
// ListingURL is the source-of-truth identity: within a single run duplicates
// are dropped before canonicalization, first-seen wins.
type ScrapedProperty struct {
	Title        string    `json:"title"`
	Location     Location  `json:"location"`
	Price        Price     `json:"price"`
	PropertyType string    `json:"property_type"`
	Size         *Size     `json:"size,omitempty"`
	Rooms        *Rooms    `json:"rooms,omitempty"`
	Description  string    `json:"description"`
	Images       []string  `json:"images"`
	ListingURL   string    `json:"listing_url"`
	Source       Source    `json:"source"`
	ScrapedAt    time.Time `json:"scraped_at"`
	Features     []string  `json:"features"`
	Contact      *Contact  `json:"contact,omitempty"`
}

// PropertyDetails holds the structured attributes of a canonical listing.
type PropertyDetails struct {
	Bedrooms  int     `json:"bedrooms"`
	Bathrooms int     `json:"bathrooms"`
	Area      float64 `json:"area"`
	Parking   bool    `json:"parking"`
	Furnished bool    `json:"furnished"`
}

// Property is the canonical, de-duplicated listing served to consumers.
// Created and owned by the canonicalization pipeline; read-only downstream.
type Property struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Price       float64         `json:"price"`
	Currency    string          `json:"currency"`
	Location    Location        `json:"location"`
	Details     PropertyDetails `json:"details"`
	Images      []string        `json:"images"`
	Type        PropertyType    `json:"type"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	Features    []string        `json:"features"`
	ListingURL  string          `json:"listing_url"`
	Source      Source          `json:"source"`
	Contact     *Contact        `json:"contact,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PropertyID derives the stable canonical id for a listing. The same
// (source, listingURL) pair always yields the same id across runs.
func PropertyID(source Source, listingURL string) string {
	hash := sha256.Sum256([]byte(listingURL))
	return string(source) + "-" + hex.EncodeToString(hash[:])[:12]
}

// ScrapingResult is produced once per adapter invocation.
type ScrapingResult struct {
	Success    bool              `json:"success"`
	Properties []ScrapedProperty `json:"properties"`
	Errors     []string          `json:"errors"`
	Source     Source            `json:"source"`
	ScrapedAt  time.Time         `json:"scraped_at"`
	TotalFound int               `json:"total_found"`
}

// ScrapingStats is the fleet-wide rollup computed after all adapters settle.
type ScrapingStats struct {
	TotalScraped  int            `json:"total_scraped"`
	NewProperties int            `json:"new_properties"`
	Updated       int            `json:"updated"`
	Errors        int            `json:"errors"`
	LastRun       time.Time      `json:"last_run"`
	Sources       map[Source]int `json:"sources"`
}

// RunRecord is one entry in the scraping history.
type RunRecord struct {
	ID         string         `json:"id"`
	Scope      string         `json:"scope"` // "fleet" or a single source name
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Success    bool           `json:"success"`
	Sources    map[Source]int `json:"sources"`
	Errors     int            `json:"errors"`
	Note       string         `json:"note,omitempty"`
}
