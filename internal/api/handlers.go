package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/mwahhasnft-alt/rork-sub000/internal/manager"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/mwahhasnft-alt/rork-sub000/internal/scheduler"
	"github.com/mwahhasnft-alt/rork-sub000/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const statusHistorySize = 5

// Handlers exposes the crawler core to the RPC boundary. Every query-style
// handler returns a structurally valid body even on internal failure.
type Handlers struct {
	mgr   *manager.Manager
	store *store.PropertyStore
	sched *scheduler.Scheduler
	log   *slog.Logger
}

func NewHandlers(mgr *manager.Manager, st *store.PropertyStore, sched *scheduler.Scheduler,
	log *slog.Logger) *Handlers {
	return &Handlers{mgr: mgr, store: st, sched: sched, log: log}
}

type startRequest struct {
	Sources []string `json:"sources"`
}

// Start handles POST /api/scrape/start: a fleet run when no sources are
// given, otherwise sequential runs of the chosen subset.
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{
					"success": false,
					"message": "invalid request body",
				})
				return
			}
		}
	}

	if len(req.Sources) == 0 {
		stats, err := h.mgr.ScrapeAllSources(r.Context())
		if err != nil {
			h.writeRunError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":       true,
			"message":       "fleet scrape completed",
			"stats":         stats,
			"history_entry": h.latestRun(),
		})
		return
	}

	results := make(map[string]*manager.SourceRun, len(req.Sources))
	for _, raw := range req.Sources {
		src, ok := model.ParseSource(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"message": "unknown source: " + raw,
			})
			return
		}
		run, err := h.mgr.ScrapeSource(r.Context(), src)
		if err != nil {
			h.writeRunError(w, err)
			return
		}
		results[raw] = run
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       "source scrape completed",
		"results":       results,
		"history_entry": h.latestRun(),
	})
}

// GetStatus handles GET /api/scrape/status.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.mgr.Status()
	schedRunning, triggers := h.sched.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_scraping_all": status.IsScrapingAll,
		"current_sources": status.CurrentSources,
		"history":         h.store.History(statusHistorySize, ""),
		"scheduler": map[string]interface{}{
			"running":  schedRunning,
			"triggers": triggers,
		},
		"summary": map[string]interface{}{
			"total_properties": h.store.Count(),
			"last_run":         h.store.LastRun(),
			"sources":          h.store.SourceCounts(),
		},
	})
}

// GetProperties handles GET /api/properties with filter query params.
func (h *Handlers) GetProperties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{
		Limit:  intParam(q.Get("limit"), 20),
		Offset: intParam(q.Get("offset"), 0),
		City:   q.Get("city"),
	}
	if src, ok := model.ParseSource(q.Get("source")); ok {
		filter.Source = src
	}
	if v := q.Get("minPrice"); v != "" {
		filter.MinPrice, _ = strconv.ParseFloat(v, 64)
	}
	if v := q.Get("maxPrice"); v != "" {
		filter.MaxPrice, _ = strconv.ParseFloat(v, 64)
	}
	if v := q.Get("propertyType"); v != "" {
		filter.PropertyType = model.PropertyType(v)
	}

	props, total := h.store.Properties(filter)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"properties": props,
		"count":      len(props),
		"total":      total,
		"has_more":   filter.Offset+len(props) < total,
		"filters":    filter,
	})
}

// GetHistory handles GET /api/scrape/history.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), 10)
	source := q.Get("source")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history":    h.store.History(limit, source),
		"total_runs": h.store.TotalRuns(),
		"filtered":   source != "",
		"source":     source,
	})
}

type clearRequest struct {
	ClearHistory    bool `json:"clear_history"`
	ClearProperties bool `json:"clear_properties"`
}

// ClearCache handles POST /api/cache/clear.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	body, _ := io.ReadAll(r.Body)
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"message": "invalid request body",
			})
			return
		}
	}
	h.store.Clear(req.ClearHistory, req.ClearProperties)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "cache cleared",
	})
}

// ImportJSON handles POST /api/data/import with a raw property array.
func (h *Handlers) ImportJSON(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"count":   0,
			"message": "failed to read request body",
		})
		return
	}
	count, err := h.store.ImportJSON(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"count":   0,
			"message": "invalid json payload",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   count,
	})
}

// ExportJSON handles GET /api/data/export with an optional source filter.
func (h *Handlers) ExportJSON(w http.ResponseWriter, r *http.Request) {
	var source model.Source
	if src, ok := model.ParseSource(r.URL.Query().Get("source")); ok {
		source = src
	}
	data, count, err := h.store.ExportJSON(source)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"data":    "[]",
			"count":   0,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    string(data),
		"count":   count,
	})
}

// GetDataInfo handles GET /api/data/info.
func (h *Handlers) GetDataInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"info":    h.store.DataInfo(),
	})
}

func (h *Handlers) writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, manager.ErrAlreadyRunning) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"success": false,
			"message": "a scraping run is already in progress, try again later",
		})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"message": err.Error(),
	})
}

func (h *Handlers) latestRun() interface{} {
	if history := h.store.History(1, ""); len(history) > 0 {
		return history[0]
	}
	return nil
}

func intParam(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
