package store

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/patrickmn/go-cache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrInvalidImport = errors.New("invalid import payload")

// PropertyStore keeps the canonical feed and the run history in process
// memory. The property set is replaced wholesale by the orchestration
// manager after each run; nothing mutates it incrementally.
type PropertyStore struct {
	cfg *config.StoreConfig
	log *slog.Logger

	mu         sync.RWMutex
	properties []model.Property
	lastRun    time.Time

	history    *cache.Cache
	historyIDs []string
}

// Filter narrows and pages the property feed.
type Filter struct {
	Limit        int
	Offset       int
	Source       model.Source
	City         string
	MinPrice     float64
	MaxPrice     float64
	PropertyType model.PropertyType
}

// DataInfo is the aggregate analytics snapshot.
type DataInfo struct {
	Total        int            `json:"total"`
	Sources      map[string]int `json:"sources"`
	Cities       map[string]int `json:"cities"`
	Types        map[string]int `json:"types"`
	PriceBuckets map[string]int `json:"price_buckets"`
	Quality      DataQuality    `json:"quality"`
}

type DataQuality struct {
	MissingPrice    int `json:"missing_price"`
	MissingLocation int `json:"missing_location"`
	MissingImages   int `json:"missing_images"`
}

func New(cfg *config.StoreConfig, log *slog.Logger) *PropertyStore {
	ttl := cfg.HistoryTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PropertyStore{
		cfg:     cfg,
		log:     log,
		history: cache.New(ttl, ttl),
	}
}

// ReplaceAll swaps the whole property set for a new fleet-run result.
func (s *PropertyStore) ReplaceAll(props []model.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties = append([]model.Property(nil), props...)
	s.lastRun = time.Now()
}

// ReplaceSource swaps only one source's slice, preserving the others.
func (s *PropertyStore) ReplaceSource(source model.Source, props []model.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]model.Property, 0, len(s.properties)+len(props))
	for _, p := range s.properties {
		if p.Source != source {
			kept = append(kept, p)
		}
	}
	s.properties = append(kept, props...)
	s.lastRun = time.Now()
}

// Properties returns one page of the feed plus the total matching count.
func (s *PropertyStore) Properties(f Filter) ([]model.Property, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.Property
	for _, p := range s.properties {
		if !f.matches(p) {
			continue
		}
		matched = append(matched, p)
	}

	total := len(matched)
	if f.Offset >= total {
		return []model.Property{}, total
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total
}

func (f Filter) matches(p model.Property) bool {
	if f.Source != "" && p.Source != f.Source {
		return false
	}
	if f.City != "" && !strings.EqualFold(p.Location.City, f.City) {
		return false
	}
	if f.MinPrice > 0 && p.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.Price > f.MaxPrice {
		return false
	}
	if f.PropertyType != "" && p.Type != f.PropertyType {
		return false
	}
	return true
}

func (s *PropertyStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.properties)
}

func (s *PropertyStore) LastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// SourceCounts returns the number of stored properties per source.
func (s *PropertyStore) SourceCounts() map[model.Source]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[model.Source]int)
	for _, p := range s.properties {
		counts[p.Source]++
	}
	return counts
}

// AddRun appends a run record to the TTL'd history, evicting the oldest
// entries beyond the configured size.
func (s *PropertyStore) AddRun(rec model.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.SetDefault(rec.ID, rec)
	s.historyIDs = append(s.historyIDs, rec.ID)

	max := s.cfg.HistorySize
	if max <= 0 {
		max = 50
	}
	for len(s.historyIDs) > max {
		s.history.Delete(s.historyIDs[0])
		s.historyIDs = s.historyIDs[1:]
	}
}

// History returns run records newest first, optionally filtered by source
// scope. Expired entries are skipped.
func (s *PropertyStore) History(limit int, scope string) []model.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []model.RunRecord{}
	for i := len(s.historyIDs) - 1; i >= 0; i-- {
		if limit > 0 && len(records) >= limit {
			break
		}
		v, ok := s.history.Get(s.historyIDs[i])
		if !ok {
			continue
		}
		rec := v.(model.RunRecord)
		if scope != "" && rec.Scope != scope {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (s *PropertyStore) TotalRuns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.historyIDs)
}

// Clear drops the requested state. Both flags false is a no-op.
func (s *PropertyStore) Clear(clearHistory, clearProperties bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clearProperties {
		s.properties = nil
		s.lastRun = time.Time{}
	}
	if clearHistory {
		s.history.Flush()
		s.historyIDs = nil
	}
}

// ImportJSON replaces the property set from a raw JSON array of canonical
// properties. Malformed input is a structured failure, not a panic.
func (s *PropertyStore) ImportJSON(data []byte) (int, error) {
	var props []model.Property
	if err := json.Unmarshal(data, &props); err != nil {
		return 0, ErrInvalidImport
	}
	for i := range props {
		if props[i].ListingURL == "" {
			return 0, ErrInvalidImport
		}
		if props[i].ID == "" {
			props[i].ID = model.PropertyID(props[i].Source, props[i].ListingURL)
		}
	}
	s.ReplaceAll(props)
	return len(props), nil
}

// ExportJSON serializes the feed, optionally narrowed to one source.
func (s *PropertyStore) ExportJSON(source model.Source) ([]byte, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	props := s.properties
	if source != "" {
		props = nil
		for _, p := range s.properties {
			if p.Source == source {
				props = append(props, p)
			}
		}
	}
	if props == nil {
		props = []model.Property{}
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, 0, err
	}
	return data, len(props), nil
}

// DataInfo computes source/city/type distributions, a price-bucket
// histogram and data-quality counters over the current feed.
func (s *PropertyStore) DataInfo() DataInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := DataInfo{
		Total:        len(s.properties),
		Sources:      make(map[string]int),
		Cities:       make(map[string]int),
		Types:        make(map[string]int),
		PriceBuckets: make(map[string]int),
	}
	for _, p := range s.properties {
		info.Sources[string(p.Source)]++
		info.Types[string(p.Type)]++
		if p.Location.City != "" {
			info.Cities[p.Location.City]++
		} else {
			info.Quality.MissingLocation++
		}
		if p.Price <= 0 {
			info.Quality.MissingPrice++
		}
		if len(p.Images) == 0 {
			info.Quality.MissingImages++
		}
		info.PriceBuckets[priceBucket(p.Price)]++
	}
	return info
}

func priceBucket(price float64) string {
	switch {
	case price <= 0:
		return "unknown"
	case price < 100_000:
		return "<100k"
	case price < 500_000:
		return "100k-500k"
	case price < 1_000_000:
		return "500k-1m"
	case price < 5_000_000:
		return "1m-5m"
	default:
		return ">5m"
	}
}

