package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bitget-pnl-tracker-go/internal/bitget"
	"bitget-pnl-tracker-go/internal/config"
	"bitget-pnl-tracker-go/internal/database"
	"bitget-pnl-tracker-go/internal/fills"
	"bitget-pnl-tracker-go/internal/models"
	"bitget-pnl-tracker-go/internal/pairing"
	"bitget-pnl-tracker-go/internal/performance"
	"bitget-pnl-tracker-go/internal/tracing"
)

// Snapshot is the result of the latest successful refresh.
type Snapshot struct {
	Run        models.RefreshRun      `json:"run"`
	Groups     []pairing.SymbolGroup  `json:"groups"`
	Statistics performance.Statistics `json:"statistics"`
	// Rejected lists fills that failed validation, one message each.
	Rejected []string `json:"rejected"`
}

// Engine periodically pulls the trade history, caches it and rebuilds the
// pairs and statistics.
type Engine struct {
	UUID      string
	StartTime time.Time

	logger  *zap.Logger
	cfg     *config.Config
	fetcher *Fetcher
	db      *gorm.DB
	quotes  fills.QuoteAssets
	now     func() time.Time

	// refreshMu serialises refreshes; a second caller waits for the first.
	refreshMu sync.Mutex
	// snapshot is replaced only when a refresh succeeds, so readers never
	// wait on a refresh in flight.
	snapshot atomic.Pointer[Snapshot]
}

// NewEngine creates a new tracking engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, client bitget.RestClientInterface, db *gorm.DB) *Engine {
	quotes := fills.QuoteAssets(cfg.History.QuoteAssets)
	if len(quotes) == 0 {
		quotes = fills.DefaultQuoteAssets
	}
	return &Engine{
		UUID:      uuid.NewString(),
		StartTime: time.Now(),
		logger:    logger.Named("engine"),
		cfg:       cfg,
		fetcher:   NewFetcher(client, cfg.History, logger),
		db:        db,
		quotes:    quotes,
		now:       time.Now,
	}
}

// Run refreshes once, then on every refresh interval until ctx is done.
// A non-positive interval means a single refresh.
func (e *Engine) Run(ctx context.Context) {
	if _, err := e.Refresh(ctx); err != nil {
		e.logger.Error("Refresh failed", zap.Error(err))
	}

	interval := time.Duration(e.cfg.History.RefreshInterval) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting refresh loop", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping tracking engine...")
			return
		case <-ticker.C:
			if _, err := e.Refresh(ctx); err != nil {
				e.logger.Error("Refresh failed", zap.Error(err))
			}
		}
	}
}

// Snapshot returns the latest successful refresh, or nil before the first.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Refresh fetches the lookback window, caches valid fills and rebuilds
// pairs and statistics from them.
func (e *Engine) Refresh(ctx context.Context) (*Snapshot, error) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	now := e.now()
	days := e.cfg.History.LookbackDays
	run := models.RefreshRun{ID: uuid.NewString(), StartedAt: now, LookbackDays: days}
	l := e.logger.With(zap.String("run_id", run.ID))

	ctx, span := tracing.StartSpan(ctx, "refresh",
		attribute.String("run_id", run.ID),
		attribute.Int("lookback_days", days),
	)
	defer span.End()

	fail := func(err error) (*Snapshot, error) {
		run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.finish(&run, l)
		return nil, err
	}

	l.Info("Refreshing trade history", zap.Int("lookback_days", days))
	res, err := e.fetcher.Fetch(ctx, days, now)
	run.Pages, run.Cutoff, run.Fetched = res.Pages, res.Cutoff, len(res.Fills)
	if err != nil {
		return fail(fmt.Errorf("could not fetch trade history: %w", err))
	}

	parsed, perr := fills.ParseAll(res.Fills, e.quotes)
	rejected := multierr.Errors(perr)
	run.Rejected = len(rejected)
	messages := make([]string, 0, len(rejected))
	for _, r := range rejected {
		l.Warn("Rejected malformed fill", zap.Error(r))
		messages = append(messages, r.Error())
	}

	stored, err := database.SaveFills(e.db, parsed)
	if err != nil {
		return fail(err)
	}
	run.Stored = stored

	groups := pairing.GroupBySymbol(parsed)
	stats := performance.Analyze(groups, now)
	for _, g := range groups {
		l.Debug("Reconstructed pairs",
			zap.String("symbol", g.Symbol),
			zap.Int("pairs", len(g.Pairs)),
			zap.Int("completed", g.Summary.CompletedPairs),
		)
	}

	e.finish(&run, l)
	span.SetAttributes(attribute.Int("pages", run.Pages), attribute.Int("fills", len(parsed)))

	snap := &Snapshot{Run: run, Groups: groups, Statistics: stats, Rejected: messages}
	e.snapshot.Store(snap)
	l.Info("Refresh complete",
		zap.Int("pages", run.Pages),
		zap.Int("fills", len(parsed)),
		zap.Int64("new_fills", stored),
		zap.Int("rejected", run.Rejected),
		zap.Int("dropped_before_cutoff", res.Dropped),
		zap.Int("symbols", len(groups)),
		zap.String("total_pnl", stats.AllTime.TotalPnL.String()),
	)
	return snap, nil
}

func (e *Engine) finish(run *models.RefreshRun, l *zap.Logger) {
	run.FinishedAt = e.now()
	if err := database.SaveRun(e.db, run); err != nil {
		l.Error("Failed to record refresh run", zap.Error(err))
	}
}
