package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/adapter"
	"github.com/mwahhasnft-alt/rork-sub000/internal/api"
	"github.com/mwahhasnft-alt/rork-sub000/internal/broker"
	"github.com/mwahhasnft-alt/rork-sub000/internal/browser"
	"github.com/mwahhasnft-alt/rork-sub000/internal/manager"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/pipeline"
	"github.com/mwahhasnft-alt/rork-sub000/internal/scheduler"
	"github.com/mwahhasnft-alt/rork-sub000/internal/store"
)

var (
	cfg *config.Config
	log *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg = config.MustLoad()
	log = setupLogger()
	log.Info("starting application on port "+cfg.Port, slog.String("env", cfg.Env))

	propertyStore := store.New(cfg.StoreSettings, log)
	canonicalizer := pipeline.New(log)
	fallback := manager.NewSyntheticGenerator(cfg.ScraperSettings.FallbackSize)

	// Each browser-driven adapter owns its browser session and cookie jar
	// exclusively; sessions are never shared across adapters.
	bayutSession := browser.NewSession(model.SourceBayut, cfg.BrowserSettings, log)
	aqarSession := browser.NewSession(model.SourceAqar, cfg.BrowserSettings, log)
	wasaltSession := browser.NewSession(model.SourceWasalt, cfg.BrowserSettings, log)
	defer bayutSession.Close()
	defer aqarSession.Close()
	defer wasaltSession.Close()

	adapters := []adapter.Adapter{
		adapter.NewBayut(bayutSession, cfg.ScraperSettings, log),
		adapter.NewAqar(aqarSession, cfg.ScraperSettings, log),
		adapter.NewWasalt(wasaltSession, cfg.ScraperSettings, log),
		adapter.NewRega(cfg.ScraperSettings, log),
	}

	feedWg := &sync.WaitGroup{}
	var feedChan chan model.Property
	if cfg.FeedSettings != nil && cfg.FeedSettings.Enabled {
		feedChan = make(chan model.Property, 500)
		feedWg.Add(1)
		go broker.NewFeedPublisher(feedWg, feedChan, log, cfg.FeedSettings)
	}

	mgr := manager.New(cfg.ScraperSettings, log, adapters, propertyStore, canonicalizer,
		fallback, feedChan)

	sched := scheduler.New(cfg.SchedulerSettings, log, mgr, nil)
	if cfg.SchedulerSettings != nil && cfg.SchedulerSettings.Enabled {
		if err := sched.Register(); err != nil {
			log.Error("failed to register schedules.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	handlers := api.NewHandlers(mgr, propertyStore, sched, log)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(handlers, log),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed.", slog.String("err", err.Error()))
			stop()
		}
	}()

	// Graceful shutdown.
	// 1. Stop accepting http requests
	// 2. Stop the scheduler so no new runs start
	// 3. Close feedChan and wait till the publisher drains remaining properties
	<-ctx.Done()
	log.Info("stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed.", slog.String("err", err.Error()))
	}
	if feedChan != nil {
		close(feedChan)
		log.Info("close feedChan.")
	}
	feedWg.Wait()
}

func setupLogger() *slog.Logger {
	resolvedLogLevel := func() slog.Level {
		envLogLevel := strings.ToLower(cfg.LogLevel)
		switch envLogLevel {
		case "info":
			return slog.LevelInfo
		case "error":
			return slog.LevelError
		default:
			return slog.LevelDebug
		}
	}

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	var logger *slog.Logger
	if strings.ToLower(cfg.LogType) == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource:   true,
			Level:       resolvedLogLevel(),
			ReplaceAttr: replaceAttrs}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:   true,
			Level:       resolvedLogLevel(),
			ReplaceAttr: replaceAttrs,
			NoColor:     false}))
	}

	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled.")

	return logger
}
