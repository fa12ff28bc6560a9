package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/adapter"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/pipeline"
	"github.com/mwahhasnft-alt/rork-sub000/internal/store"
)

type fakeAdapter struct {
	source  model.Source
	result  *model.ScrapingResult
	err     error
	panics  bool
	release chan struct{}
}

func (a *fakeAdapter) Source() model.Source { return a.source }

func (a *fakeAdapter) ScrapeProperties(ctx context.Context) (*model.ScrapingResult, error) {
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.panics {
		panic("selector table corrupted")
	}
	return a.result, a.err
}

func (a *fakeAdapter) ScrapePropertyDetails(_ context.Context, _ string) (*model.ScrapedProperty, error) {
	return nil, errors.New("not implemented")
}

func rawProps(src model.Source, n int) []model.ScrapedProperty {
	out := make([]model.ScrapedProperty, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.ScrapedProperty{
			Title:        fmt.Sprintf("Listing %d", i+1),
			ListingURL:   fmt.Sprintf("https://%s.test/property/%d", src, i+1),
			Source:       src,
			ScrapedAt:    time.Now(),
			PropertyType: "apartment",
			Price:        model.Price{Amount: 50000, Currency: "SAR", Period: "yearly"},
		})
	}
	return out
}

func okResult(src model.Source, n int) *model.ScrapingResult {
	props := rawProps(src, n)
	return &model.ScrapingResult{
		Source:     src,
		Success:    true,
		Properties: props,
		TotalFound: len(props),
		ScrapedAt:  time.Now(),
	}
}

func testManager(fakes []*fakeAdapter, feed chan<- model.Property) (*Manager, *store.PropertyStore) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(&config.StoreConfig{}, log)
	pipe := pipeline.New(log)

	adapters := make([]adapter.Adapter, 0, len(fakes))
	for _, f := range fakes {
		adapters = append(adapters, f)
	}
	cfg := &config.ScraperConfig{StaggerDelay: 0}
	return New(cfg, log, adapters, st, pipe, NewSyntheticGenerator(3), feed), st
}

func TestScrapeAllSources_MergesInFleetOrder(t *testing.T) {
	adapters := []*fakeAdapter{
		{source: model.SourceBayut, result: okResult(model.SourceBayut, 2)},
		{source: model.SourceAqar, result: okResult(model.SourceAqar, 3)},
	}
	m, st := testManager(adapters, nil)

	stats, err := m.ScrapeAllSources(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalScraped != 5 {
		t.Errorf("TotalScraped = %d; want 5", stats.TotalScraped)
	}
	if stats.Sources[model.SourceBayut] != 2 || stats.Sources[model.SourceAqar] != 3 {
		t.Errorf("per-source counts = %v", stats.Sources)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d; want 0", stats.Errors)
	}

	props, total := st.Properties(store.Filter{})
	if total != 5 {
		t.Fatalf("stored %d properties; want 5", total)
	}
	// Bayut's properties come first regardless of goroutine completion order.
	if props[0].Source != model.SourceBayut || props[4].Source != model.SourceAqar {
		t.Errorf("merge order not deterministic: first=%s last=%s", props[0].Source, props[4].Source)
	}
	if st.TotalRuns() != 1 {
		t.Errorf("TotalRuns = %d; want 1", st.TotalRuns())
	}
}

func TestScrapeAllSources_FallbackOnTotalFailure(t *testing.T) {
	adapters := []*fakeAdapter{
		{source: model.SourceBayut, err: errors.New("net::ERR_CONNECTION_REFUSED")},
		{source: model.SourceAqar, result: okResult(model.SourceAqar, 2)},
	}
	m, st := testManager(adapters, nil)

	stats, err := m.ScrapeAllSources(context.Background())
	if err != nil {
		t.Fatalf("fleet run must not fail when one source does: %v", err)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d; want exactly 1 for the failed source", stats.Errors)
	}
	if stats.Sources[model.SourceBayut] != 3 {
		t.Errorf("failed source count = %d; want fallback size 3", stats.Sources[model.SourceBayut])
	}

	props, _ := st.Properties(store.Filter{Source: model.SourceBayut})
	for _, p := range props {
		if p.Source != model.SourceBayut {
			t.Errorf("fallback property attributed to %s", p.Source)
		}
	}
}

func TestScrapeAllSources_PanicIsolated(t *testing.T) {
	adapters := []*fakeAdapter{
		{source: model.SourceBayut, panics: true},
		{source: model.SourceAqar, result: okResult(model.SourceAqar, 1)},
	}
	m, _ := testManager(adapters, nil)

	stats, err := m.ScrapeAllSources(context.Background())
	if err != nil {
		t.Fatalf("panic in one adapter must not kill the fleet: %v", err)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d; want 1", stats.Errors)
	}
	if stats.Sources[model.SourceBayut] != 3 {
		t.Errorf("panicked source count = %d; want fallback size 3", stats.Sources[model.SourceBayut])
	}
}

func TestScrapeAllSources_RejectsConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	adapters := []*fakeAdapter{
		{source: model.SourceBayut, result: okResult(model.SourceBayut, 1), release: release},
	}
	m, st := testManager(adapters, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.ScrapeAllSources(context.Background())
		done <- err
	}()

	waitFor(t, func() bool { return m.Status().IsScrapingAll })

	if _, err := m.ScrapeAllSources(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second fleet run: err = %v; want ErrAlreadyRunning", err)
	}
	if _, err := m.ScrapeSource(context.Background(), model.SourceBayut); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("source run during fleet: err = %v; want ErrAlreadyRunning", err)
	}
	// The rejected attempts must not have touched the store.
	if st.TotalRuns() != 0 {
		t.Errorf("rejected runs recorded history: %d", st.TotalRuns())
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("original run failed: %v", err)
	}
	if m.Status().IsScrapingAll {
		t.Error("guard not released after the run")
	}
}

func TestScrapeSource_ReplacesOnlyThatSource(t *testing.T) {
	adapters := []*fakeAdapter{
		{source: model.SourceBayut, result: okResult(model.SourceBayut, 2)},
		{source: model.SourceAqar, result: okResult(model.SourceAqar, 2)},
	}
	m, st := testManager(adapters, nil)

	if _, err := m.ScrapeAllSources(context.Background()); err != nil {
		t.Fatal(err)
	}

	adapters[0].result = okResult(model.SourceBayut, 4)
	run, err := m.ScrapeSource(context.Background(), model.SourceBayut)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Count != 4 {
		t.Errorf("run.Count = %d; want 4", run.Count)
	}
	if run.FallbackUsed {
		t.Error("fallback flagged on a healthy run")
	}

	counts := st.SourceCounts()
	if counts[model.SourceBayut] != 4 || counts[model.SourceAqar] != 2 {
		t.Errorf("counts after single-source run = %v", counts)
	}
}

func TestScrapeSource_FallbackAnnotated(t *testing.T) {
	adapters := []*fakeAdapter{
		{source: model.SourceWasalt, err: errors.New("timeout")},
	}
	m, _ := testManager(adapters, nil)

	run, err := m.ScrapeSource(context.Background(), model.SourceWasalt)
	if err != nil {
		t.Fatalf("total failure must degrade, not error: %v", err)
	}
	if !run.FallbackUsed {
		t.Error("FallbackUsed not set")
	}
	if run.Note == "" {
		t.Error("degraded run carries no note")
	}
	if run.Count != 3 {
		t.Errorf("run.Count = %d; want fallback size 3", run.Count)
	}
}

func TestScrapeSource_UnknownSource(t *testing.T) {
	m, _ := testManager(nil, nil)
	if _, err := m.ScrapeSource(context.Background(), model.Source("zillow")); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestPublish_NeverBlocks(t *testing.T) {
	feed := make(chan model.Property, 1)
	adapters := []*fakeAdapter{
		{source: model.SourceBayut, result: okResult(model.SourceBayut, 3)},
	}
	m, _ := testManager(adapters, feed)

	// No consumer is draining: one property fits the buffer, the rest
	// must be dropped rather than block the run.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := m.ScrapeAllSources(context.Background()); err != nil {
			t.Error(err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run blocked on a full feed channel")
	}
	if len(feed) != 1 {
		t.Errorf("feed length = %d; want 1 buffered property", len(feed))
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
