package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
)

func testStore(cfg *config.StoreConfig) *PropertyStore {
	if cfg == nil {
		cfg = &config.StoreConfig{}
	}
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func prop(src model.Source, url, city string, price float64, pt model.PropertyType) model.Property {
	return model.Property{
		ID:         model.PropertyID(src, url),
		Title:      "Listing",
		Price:      price,
		Currency:   "SAR",
		Location:   model.Location{City: city},
		Type:       pt,
		Status:     "available",
		ListingURL: url,
		Source:     src,
	}
}

func seedProps() []model.Property {
	return []model.Property{
		prop(model.SourceBayut, "https://bayut.test/1", "Riyadh", 2_000_000, model.TypeVilla),
		prop(model.SourceAqar, "https://aqar.test/1", "Jeddah", 45_000, model.TypeApartment),
		prop(model.SourceAqar, "https://aqar.test/2", "Riyadh", 650_000, model.TypeLand),
	}
}

func TestProperties_Pagination(t *testing.T) {
	s := testStore(nil)
	s.ReplaceAll(seedProps())

	page, total := s.Properties(Filter{Limit: 1, Offset: 0})
	if len(page) != 1 {
		t.Errorf("page size = %d; want 1", len(page))
	}
	if total != 3 {
		t.Errorf("total = %d; want 3", total)
	}
	if hasMore := 0+len(page) < total; !hasMore {
		t.Error("expected more pages after the first")
	}

	page, total = s.Properties(Filter{Limit: 2, Offset: 2})
	if len(page) != 1 || total != 3 {
		t.Errorf("last page = %d items, total %d; want 1 and 3", len(page), total)
	}

	page, total = s.Properties(Filter{Limit: 10, Offset: 10})
	if len(page) != 0 || total != 3 {
		t.Errorf("offset past the end = %d items, total %d; want 0 and 3", len(page), total)
	}
}

func TestProperties_Filters(t *testing.T) {
	s := testStore(nil)
	s.ReplaceAll(seedProps())

	testCases := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"By Source", Filter{Source: model.SourceAqar}, 2},
		{"By City Case Insensitive", Filter{City: "riyadh"}, 2},
		{"By Min Price", Filter{MinPrice: 100_000}, 2},
		{"By Max Price", Filter{MaxPrice: 100_000}, 1},
		{"By Type", Filter{PropertyType: model.TypeVilla}, 1},
		{"Combined", Filter{Source: model.SourceAqar, City: "Riyadh"}, 1},
		{"No Match", Filter{City: "Dammam"}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, total := s.Properties(tc.filter)
			if total != tc.want {
				t.Errorf("total = %d; want %d", total, tc.want)
			}
		})
	}
}

func TestReplaceSource_KeepsOtherSources(t *testing.T) {
	s := testStore(nil)
	s.ReplaceAll(seedProps())

	s.ReplaceSource(model.SourceAqar, []model.Property{
		prop(model.SourceAqar, "https://aqar.test/new", "Dammam", 300_000, model.TypeApartment),
	})

	counts := s.SourceCounts()
	if counts[model.SourceAqar] != 1 {
		t.Errorf("aqar count = %d; want 1", counts[model.SourceAqar])
	}
	if counts[model.SourceBayut] != 1 {
		t.Errorf("bayut count = %d; want 1 untouched", counts[model.SourceBayut])
	}
}

func TestClear(t *testing.T) {
	s := testStore(nil)
	s.ReplaceAll(seedProps())
	s.AddRun(model.RunRecord{ID: "r1", Scope: "fleet", Success: true})

	s.Clear(false, true)
	if s.Count() != 0 {
		t.Errorf("properties survived clear: %d", s.Count())
	}
	if !s.LastRun().IsZero() {
		t.Error("last run timestamp survived clear")
	}
	if s.TotalRuns() != 1 {
		t.Error("history cleared when only properties were requested")
	}

	s.Clear(true, false)
	if s.TotalRuns() != 0 {
		t.Errorf("history survived clear: %d", s.TotalRuns())
	}
}

func TestHistory_NewestFirstAndEviction(t *testing.T) {
	s := testStore(&config.StoreConfig{HistorySize: 3})
	for i := 1; i <= 5; i++ {
		s.AddRun(model.RunRecord{
			ID:    fmt.Sprintf("r%d", i),
			Scope: "fleet",
		})
	}

	if s.TotalRuns() != 3 {
		t.Fatalf("TotalRuns = %d; want 3 after eviction", s.TotalRuns())
	}
	records := s.History(0, "")
	if len(records) != 3 {
		t.Fatalf("got %d records; want 3", len(records))
	}
	if records[0].ID != "r5" || records[2].ID != "r3" {
		t.Errorf("order = %s..%s; want r5..r3", records[0].ID, records[2].ID)
	}
}

func TestHistory_ScopeFilterAndLimit(t *testing.T) {
	s := testStore(nil)
	s.AddRun(model.RunRecord{ID: "f1", Scope: "fleet"})
	s.AddRun(model.RunRecord{ID: "b1", Scope: "bayut"})
	s.AddRun(model.RunRecord{ID: "f2", Scope: "fleet"})

	records := s.History(0, "fleet")
	if len(records) != 2 || records[0].ID != "f2" {
		t.Errorf("fleet scope = %+v", records)
	}
	if records := s.History(1, ""); len(records) != 1 || records[0].ID != "f2" {
		t.Errorf("limit 1 = %+v", records)
	}
}

func TestImportJSON(t *testing.T) {
	s := testStore(nil)

	payload := []byte(`[
		{"title":"Imported","listing_url":"https://bayut.test/9","source":"bayut","price":100000},
		{"id":"custom-id","title":"Kept","listing_url":"https://aqar.test/9","source":"aqar","price":50000}
	]`)
	n, err := s.ImportJSON(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d; want 2", n)
	}

	props, _ := s.Properties(Filter{})
	if props[0].ID == "" {
		t.Error("missing id not backfilled")
	}
	if props[0].ID != model.PropertyID(model.SourceBayut, "https://bayut.test/9") {
		t.Errorf("backfilled id = %s", props[0].ID)
	}
	if props[1].ID != "custom-id" {
		t.Errorf("explicit id overwritten: %s", props[1].ID)
	}
}

func TestImportJSON_Invalid(t *testing.T) {
	s := testStore(nil)
	s.ReplaceAll(seedProps())

	testCases := []struct {
		name    string
		payload string
	}{
		{"Malformed JSON", `{"title": "not an array"`},
		{"Wrong Shape", `{"title": "object not array"}`},
		{"Missing Listing URL", `[{"title":"no identity","source":"bayut"}]`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.ImportJSON([]byte(tc.payload)); !errors.Is(err, ErrInvalidImport) {
				t.Errorf("err = %v; want ErrInvalidImport", err)
			}
		})
	}
	// A rejected import leaves the existing feed untouched.
	if s.Count() != 3 {
		t.Errorf("feed mutated by rejected import: %d", s.Count())
	}
}

func TestExportJSON(t *testing.T) {
	s := testStore(nil)
	s.ReplaceAll(seedProps())

	data, n, err := s.ExportJSON("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("exported %d; want 3", n)
	}
	var roundTrip []model.Property
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		t.Fatalf("export is not valid json: %v", err)
	}

	_, n, err = s.ExportJSON(model.SourceAqar)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("source export %d; want 2", n)
	}

	data, n, _ = s.ExportJSON(model.SourceRega)
	if n != 0 || string(data) != "[]" {
		t.Errorf("empty source export = %q, %d; want [] and 0", data, n)
	}
}

func TestDataInfo(t *testing.T) {
	s := testStore(nil)
	props := seedProps()
	props = append(props, model.Property{
		ID:         "x",
		Source:     model.SourceWasalt,
		Type:       model.TypeApartment,
		ListingURL: "https://wasalt.test/1",
		// no city, no price, no images
	})
	s.ReplaceAll(props)

	info := s.DataInfo()
	if info.Total != 4 {
		t.Errorf("Total = %d; want 4", info.Total)
	}
	if info.Sources["aqar"] != 2 {
		t.Errorf("sources = %v", info.Sources)
	}
	if info.Cities["Riyadh"] != 2 {
		t.Errorf("cities = %v", info.Cities)
	}
	if info.PriceBuckets["1m-5m"] != 1 || info.PriceBuckets["<100k"] != 1 ||
		info.PriceBuckets["500k-1m"] != 1 || info.PriceBuckets["unknown"] != 1 {
		t.Errorf("price buckets = %v", info.PriceBuckets)
	}
	if info.Quality.MissingPrice != 1 || info.Quality.MissingLocation != 1 {
		t.Errorf("quality = %+v", info.Quality)
	}
	if info.Quality.MissingImages != 4 {
		t.Errorf("MissingImages = %d; want 4", info.Quality.MissingImages)
	}
}

func TestLastRunAdvances(t *testing.T) {
	s := testStore(nil)
	if !s.LastRun().IsZero() {
		t.Error("fresh store has a last run")
	}
	before := time.Now()
	s.ReplaceAll(seedProps())
	if s.LastRun().Before(before) {
		t.Error("last run not advanced by ReplaceAll")
	}
}
