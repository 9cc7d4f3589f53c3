package main

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bitget-pnl-tracker-go/internal/database"
	"bitget-pnl-tracker-go/internal/fills"
	"bitget-pnl-tracker-go/internal/pairing"
	"bitget-pnl-tracker-go/internal/performance"
	"bitget-pnl-tracker-go/internal/tracker"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log *zap.Logger
	db  *gorm.DB
	now func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB) *APIHandler {
	return &APIHandler{log: log, db: db, now: time.Now}
}

// Routes registers the API endpoints on mux.
func (h *APIHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.StatusHandler)
	mux.HandleFunc("/api/fills", h.FillsHandler)
	mux.HandleFunc("/api/pairs", h.PairsHandler)
	mux.HandleFunc("/api/statistics", h.StatisticsHandler)
}

// parseFilter reads the optional ?symbol= and ?days= parameters.
// days=0 or no days parameter means the whole cache.
func (h *APIHandler) parseFilter(r *http.Request) (database.FillFilter, error) {
	q := r.URL.Query()
	filter := database.FillFilter{Symbol: strings.ToUpper(strings.TrimSpace(q.Get("symbol")))}

	if v := q.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			return filter, fmt.Errorf("invalid days %q, expected a non-negative integer", v)
		}
		if days > 0 {
			filter.Since = tracker.Cutoff(h.now(), days)
		}
	}
	return filter, nil
}

func (h *APIHandler) loadFills(w http.ResponseWriter, r *http.Request) ([]fills.Fill, bool) {
	filter, err := h.parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	fs, err := database.LoadFills(h.db, filter)
	if err != nil {
		h.log.Error("Failed to get fills from database", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to get fills")
		return nil, false
	}
	return fs, true
}

// FillsHandler returns cached fills, most recent first.
func (h *APIHandler) FillsHandler(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.loadFills(w, r)
	if !ok {
		return
	}
	slices.Reverse(fs)
	h.writeJSON(w, fs)
}

type symbolPairs struct {
	Symbol  string          `json:"symbol"`
	Summary pairing.Summary `json:"summary"`
	Pairs   []pairing.Pair  `json:"pairs"`
}

// PairsHandler returns the reconstructed pairs per symbol, most recent first.
func (h *APIHandler) PairsHandler(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.loadFills(w, r)
	if !ok {
		return
	}

	groups := pairing.GroupBySymbol(fs)
	out := make([]symbolPairs, len(groups))
	for i, g := range groups {
		out[i] = symbolPairs{Symbol: g.Symbol, Summary: g.Summary, Pairs: pairing.Latest(g.Pairs)}
	}
	h.writeJSON(w, out)
}

// StatisticsHandler calculates and returns trading statistics.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.loadFills(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, performance.Analyze(pairing.GroupBySymbol(fs), h.now()))
}

// StatusHandler returns the most recent refresh run recorded by the tracker.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	run, err := database.LatestRun(h.db)
	if err != nil {
		h.log.Error("Failed to get refresh status", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to get status")
		return
	}
	if run == nil {
		h.writeError(w, http.StatusNotFound, "no refresh recorded yet")
		return
	}
	h.writeJSON(w, run)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		h.log.Error("Failed to write error response", zap.Error(err))
	}
}
