package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/adapter"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/pipeline"
	"github.com/mwahhasnft-alt/rork-sub000/internal/store"
)

// ErrAlreadyRunning is returned when a run is requested while a fleet run
// holds the guard. It is surfaced to the caller and never retried here.
var ErrAlreadyRunning = errors.New("a scraping run is already in progress")

// Manager orchestrates adapter runs. It is the only component allowed to
// mutate the run guard, the per-source status map and the stored feed.
type Manager struct {
	cfg      *config.ScraperConfig
	log      *slog.Logger
	adapters map[model.Source]adapter.Adapter
	order    []model.Source
	store    *store.PropertyStore
	pipe     *pipeline.Canonicalizer
	fallback FallbackGenerator
	feed     chan<- model.Property

	mu            sync.Mutex
	fleetRunning  bool
	sourceRunning map[model.Source]bool
}

// Status is the live view of the run guard.
type Status struct {
	IsScrapingAll  bool                  `json:"is_scraping_all"`
	CurrentSources map[model.Source]bool `json:"current_sources"`
}

// SourceRun is the outcome of a single-source run.
type SourceRun struct {
	Source       model.Source `json:"source"`
	Count        int          `json:"count"`
	Errors       []string     `json:"errors,omitempty"`
	FallbackUsed bool         `json:"fallback_used"`
	Note         string       `json:"note,omitempty"`
}

type outcome struct {
	source   model.Source
	props    []model.Property
	errs     []string
	failed   bool
	fallback bool
}

// New wires the manager. The feed channel is optional; when nil, canonical
// properties are not published downstream.
func New(cfg *config.ScraperConfig, log *slog.Logger, adapters []adapter.Adapter,
	st *store.PropertyStore, pipe *pipeline.Canonicalizer, fallback FallbackGenerator,
	feed chan<- model.Property) *Manager {
	m := &Manager{
		cfg:           cfg,
		log:           log,
		adapters:      make(map[model.Source]adapter.Adapter, len(adapters)),
		store:         st,
		pipe:          pipe,
		fallback:      fallback,
		feed:          feed,
		sourceRunning: make(map[model.Source]bool),
	}
	for _, a := range adapters {
		m.adapters[a.Source()] = a
		m.order = append(m.order, a.Source())
	}
	return m
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := make(map[model.Source]bool, len(m.sourceRunning))
	for src, running := range m.sourceRunning {
		current[src] = running
	}
	return Status{IsScrapingAll: m.fleetRunning, CurrentSources: current}
}

// ScrapeAllSources runs every adapter concurrently with staggered starts,
// merges the per-source results deterministically and replaces the stored
// feed. A second fleet run while one is active is rejected outright.
func (m *Manager) ScrapeAllSources(ctx context.Context) (*model.ScrapingStats, error) {
	if !m.acquireFleet() {
		return nil, ErrAlreadyRunning
	}
	defer m.releaseFleet()

	started := time.Now()
	m.log.Info("fleet run started.", slog.Int("sources", len(m.order)))

	results := make(chan outcome, len(m.order))
	wg := &sync.WaitGroup{}
	for i, src := range m.order {
		wg.Add(1)
		go func(idx int, src model.Source) {
			defer wg.Done()
			// Stagger the start so sources are not hit simultaneously.
			if idx > 0 {
				if err := sleepCtx(ctx, time.Duration(idx)*m.cfg.StaggerDelay); err != nil {
					results <- m.fallbackOutcome(src, err.Error())
					return
				}
			}
			m.setSourceRunning(src, true)
			defer m.setSourceRunning(src, false)
			results <- m.runAdapter(ctx, src)
		}(i, src)
	}
	wg.Wait()
	close(results)

	bySource := make(map[model.Source]outcome, len(m.order))
	for out := range results {
		bySource[out.source] = out
	}

	stats := &model.ScrapingStats{
		LastRun: time.Now(),
		Sources: make(map[model.Source]int, len(m.order)),
	}
	var all []model.Property
	note := ""
	// Merge in fleet order so the result is deterministic once all
	// per-source tasks have settled.
	for _, src := range m.order {
		out := bySource[src]
		all = append(all, out.props...)
		stats.Sources[src] = len(out.props)
		if out.failed {
			stats.Errors++
		}
		if out.fallback {
			note = "fallback data used for one or more sources"
		}
	}
	stats.TotalScraped = len(all)
	stats.NewProperties = len(all)

	m.store.ReplaceAll(all)
	m.publish(all)
	m.store.AddRun(model.RunRecord{
		ID:         uuid.NewString(),
		Scope:      "fleet",
		StartedAt:  started,
		FinishedAt: time.Now(),
		Success:    true,
		Sources:    stats.Sources,
		Errors:     stats.Errors,
		Note:       note,
	})

	m.log.Info("fleet run finished.", slog.Int("total", stats.TotalScraped),
		slog.Int("errors", stats.Errors), slog.String("took", time.Since(started).String()))
	return stats, nil
}

// ScrapeSource runs a single adapter, serialized against a fleet run.
// A total adapter failure degrades to fallback data and is still reported
// as a successful run with an annotated note.
func (m *Manager) ScrapeSource(ctx context.Context, src model.Source) (*SourceRun, error) {
	if _, ok := m.adapters[src]; !ok {
		return nil, fmt.Errorf("unknown source %q", src)
	}
	if !m.acquireSource(src) {
		return nil, ErrAlreadyRunning
	}
	defer m.releaseSource(src)

	started := time.Now()
	out := m.runAdapter(ctx, src)
	m.store.ReplaceSource(src, out.props)
	m.publish(out.props)

	run := &SourceRun{
		Source:       src,
		Count:        len(out.props),
		Errors:       out.errs,
		FallbackUsed: out.fallback,
	}
	if out.fallback {
		run.Note = "source unreachable, synthetic fallback data served"
	}
	m.store.AddRun(model.RunRecord{
		ID:         uuid.NewString(),
		Scope:      string(src),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Success:    true,
		Sources:    map[model.Source]int{src: run.Count},
		Errors:     boolToInt(out.failed),
		Note:       run.Note,
	})
	return run, nil
}

// Sources lists the sources this manager can run, in fleet order.
func (m *Manager) Sources() []model.Source {
	return append([]model.Source(nil), m.order...)
}

// runAdapter executes one adapter with full isolation: a panic or total
// failure is converted into synthetic fallback data for that source.
func (m *Manager) runAdapter(ctx context.Context, src model.Source) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("adapter panicked.", slog.String("source", string(src)), slog.Any("err", r))
			out = m.fallbackOutcome(src, fmt.Sprintf("panic: %v", r))
		}
	}()

	res, err := m.adapters[src].ScrapeProperties(ctx)
	if err != nil {
		m.log.Error("adapter failed.", slog.String("source", string(src)), slog.String("err", err.Error()))
		return m.fallbackOutcome(src, err.Error())
	}
	if res == nil || !res.Success {
		m.log.Warn("adapter extracted nothing.", slog.String("source", string(src)))
		errs := []string{"no properties extracted"}
		if res != nil {
			errs = res.Errors
		}
		o := m.fallbackOutcome(src, "")
		o.errs = append(errs, o.errs...)
		return o
	}

	return outcome{
		source: src,
		props:  m.pipe.Process(res.Properties),
		errs:   res.Errors,
	}
}

func (m *Manager) fallbackOutcome(src model.Source, reason string) outcome {
	out := outcome{
		source:   src,
		props:    m.pipe.Process(m.fallback.Generate(src)),
		failed:   true,
		fallback: true,
	}
	if reason != "" {
		out.errs = []string{reason}
	}
	return out
}

// publish forwards canonical properties to the downstream feed without ever
// blocking a run on a slow consumer.
func (m *Manager) publish(props []model.Property) {
	if m.feed == nil {
		return
	}
	for _, p := range props {
		select {
		case m.feed <- p:
		default:
			m.log.Warn("feed channel full. dropping property.", slog.String("id", p.ID))
		}
	}
}

func (m *Manager) acquireFleet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fleetRunning {
		return false
	}
	m.fleetRunning = true
	return true
}

func (m *Manager) releaseFleet() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fleetRunning = false
}

func (m *Manager) acquireSource(src model.Source) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fleetRunning || m.sourceRunning[src] {
		return false
	}
	m.sourceRunning[src] = true
	return true
}

func (m *Manager) releaseSource(src model.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sourceRunning, src)
}

func (m *Manager) setSourceRunning(src model.Source, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if running {
		m.sourceRunning[src] = true
	} else {
		delete(m.sourceRunning, src)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
