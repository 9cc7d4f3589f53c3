package tracker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// APIServer exposes the engine's status and a manual refresh trigger.
type APIServer struct {
	server *http.Server
	engine *Engine
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer listening on port.
func NewAPIServer(engine *Engine, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine: engine,
		logger: logger.Named("api-server"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routes served by the status API.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/refresh", s.refreshHandler)
	return mux
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

type lastRefresh struct {
	RunID      string `json:"run_id"`
	FinishedAt string `json:"finished_at"`
	Pages      int    `json:"pages"`
	Fills      int    `json:"fills"`
	Rejected   int    `json:"rejected"`
	Symbols    int    `json:"symbols"`
	TotalPnL   string `json:"total_pnl"`
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := struct {
		UUID        string       `json:"uuid"`
		StartTime   string       `json:"start_time"`
		Uptime      string       `json:"uptime"`
		LastRefresh *lastRefresh `json:"last_refresh"`
	}{
		UUID:      s.engine.UUID,
		StartTime: s.engine.StartTime.Format(time.RFC3339),
		Uptime:    time.Since(s.engine.StartTime).String(),
	}
	if snap := s.engine.Snapshot(); snap != nil {
		status.LastRefresh = &lastRefresh{
			RunID:      snap.Run.ID,
			FinishedAt: snap.Run.FinishedAt.Format(time.RFC3339),
			Pages:      snap.Run.Pages,
			Fills:      snap.Run.Fetched - snap.Run.Rejected,
			Rejected:   snap.Run.Rejected,
			Symbols:    len(snap.Groups),
			TotalPnL:   snap.Statistics.AllTime.TotalPnL.String(),
		}
	}

	s.writeJSON(w, http.StatusOK, status)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := s.engine.Refresh(r.Context())
	if err != nil {
		s.logger.Error("Manual refresh failed", zap.Error(err))
		http.Error(w, "refresh failed", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}
