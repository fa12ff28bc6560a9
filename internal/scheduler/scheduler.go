package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/manager"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/robfig/cron/v3"
)

// CronRunner abstracts the calendar scheduler so the registration logic can
// be tested without real time parsing or real clocks.
type CronRunner interface {
	Schedule(spec string, task func()) error
	Start()
	Stop()
}

type cronRunner struct {
	c *cron.Cron
}

func (r *cronRunner) Schedule(spec string, task func()) error {
	_, err := r.c.AddFunc(spec, task)
	return err
}

func (r *cronRunner) Start() { r.c.Start() }
func (r *cronRunner) Stop()  { r.c.Stop() }

// Entry records one registered trigger for status reporting.
type Entry struct {
	Scope string `json:"scope"`
	Spec  string `json:"spec"`
}

// Scheduler registers one recurring trigger per source plus one for the
// full fleet, each at a distinct offset so sources stay decorrelated.
// Trigger failures are logged and never deregister the trigger.
type Scheduler struct {
	cfg *config.SchedulerConfig
	log *slog.Logger
	mgr *manager.Manager
	run CronRunner

	mu      sync.Mutex
	running bool
	entries []Entry
}

func New(cfg *config.SchedulerConfig, log *slog.Logger, mgr *manager.Manager, run CronRunner) *Scheduler {
	if run == nil {
		run = &cronRunner{c: cron.New()}
	}
	return &Scheduler{cfg: cfg, log: log, mgr: mgr, run: run}
}

// Register wires the per-source and fleet triggers. Sources fire hourly at
// staggered minute offsets; the fleet spec comes from configuration.
func (s *Scheduler) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := s.cfg.SourceOffsetMinutes
	if offset <= 0 {
		offset = 10
	}
	for i, src := range s.mgr.Sources() {
		spec := fmt.Sprintf("%d * * * *", (i*offset)%60)
		if err := s.run.Schedule(spec, s.sourceTask(src)); err != nil {
			return fmt.Errorf("schedule %s: %w", src, err)
		}
		s.entries = append(s.entries, Entry{Scope: string(src), Spec: spec})
	}

	fleetSpec := s.cfg.FleetSpec
	if fleetSpec == "" {
		fleetSpec = "0 3 * * *"
	}
	if err := s.run.Schedule(fleetSpec, s.fleetTask()); err != nil {
		return fmt.Errorf("schedule fleet: %w", err)
	}
	s.entries = append(s.entries, Entry{Scope: "fleet", Spec: fleetSpec})
	return nil
}

func (s *Scheduler) sourceTask(src model.Source) func() {
	return func() {
		if _, err := s.mgr.ScrapeSource(context.Background(), src); err != nil {
			s.log.Warn("scheduled source run skipped.", slog.String("source", string(src)),
				slog.String("err", err.Error()))
		}
	}
}

func (s *Scheduler) fleetTask() func() {
	return func() {
		if _, err := s.mgr.ScrapeAllSources(context.Background()); err != nil {
			s.log.Warn("scheduled fleet run skipped.", slog.String("err", err.Error()))
		}
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.run.Start()
	s.running = true
	s.log.Info("scheduler started.", slog.Int("triggers", len(s.entries)))
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.run.Stop()
	s.running = false
	s.log.Info("scheduler stopped.")
}

// Status reports whether the scheduler is running and which triggers exist.
func (s *Scheduler) Status() (bool, []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, append([]Entry(nil), s.entries...)
}
