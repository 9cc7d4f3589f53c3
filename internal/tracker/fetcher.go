package tracker

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"bitget-pnl-tracker-go/internal/bitget"
	"bitget-pnl-tracker-go/internal/config"
	"bitget-pnl-tracker-go/internal/fills"
	"bitget-pnl-tracker-go/internal/tracing"
)

const dayMillis = int64(24 * time.Hour / time.Millisecond)

// FetchResult is the raw history collected by one Fetch call.
type FetchResult struct {
	// Fills are ordered oldest first.
	Fills  []fills.RawFill
	Pages  int
	Cutoff int64
	// Dropped counts fills discarded for being older than Cutoff.
	Dropped int
}

// Fetcher walks the backend's trade-fill pages backwards in time.
type Fetcher struct {
	client       bitget.RestClientInterface
	logger       *zap.Logger
	pageSize     int
	maxPages     int
	strictCutoff bool
}

// NewFetcher creates a Fetcher using the history settings.
func NewFetcher(client bitget.RestClientInterface, cfg config.History, logger *zap.Logger) *Fetcher {
	logger = logger.Named("fetcher")
	pageSize := cfg.PageSize
	switch {
	case pageSize <= 0:
		pageSize = bitget.DefaultPageSize
	case pageSize > bitget.DefaultPageSize:
		// A larger limit would make every full page look short.
		logger.Warn("Page size above backend maximum, clamping",
			zap.Int("page_size", pageSize),
			zap.Int("max", bitget.DefaultPageSize),
		)
		pageSize = bitget.DefaultPageSize
	}
	return &Fetcher{
		client:       client,
		logger:       logger,
		pageSize:     pageSize,
		maxPages:     cfg.MaxPages,
		strictCutoff: cfg.StrictCutoff,
	}
}

// Cutoff returns the oldest timestamp (ms) inside a lookback of days.
func Cutoff(now time.Time, days int) int64 {
	return now.UnixMilli() - int64(days)*dayMillis
}

// Fetch collects every fill newer than now minus days. Pages are requested
// one after another, each cursor taken from the previous page. Paging stops
// on a short page, when a page reaches past the cutoff, or at maxPages.
func (f *Fetcher) Fetch(ctx context.Context, days int, now time.Time) (FetchResult, error) {
	res := FetchResult{Cutoff: Cutoff(now, days)}
	var (
		all    []fills.RawFill
		cursor string
	)

	for {
		if f.maxPages > 0 && res.Pages >= f.maxPages {
			f.logger.Warn("Page limit reached, history may be incomplete", zap.Int("max_pages", f.maxPages))
			break
		}

		pageCtx, span := tracing.StartSpan(ctx, "fetch_page",
			attribute.Int("page", res.Pages+1),
			attribute.String("id_less_than", cursor),
		)
		page, err := f.client.GetTradeFills(pageCtx, bitget.FillsQuery{Limit: f.pageSize, IDLessThan: cursor})
		span.End()
		if err != nil {
			return res, fmt.Errorf("failed to fetch page %d: %w", res.Pages+1, err)
		}
		res.Pages++
		all = append(all, page...)

		f.logger.Debug("Fetched page",
			zap.Int("page", res.Pages),
			zap.Int("fills", len(page)),
			zap.String("id_less_than", cursor),
		)

		if len(page) < f.pageSize {
			break
		}
		next := strings.TrimSpace(string(page[len(page)-1].TradeID))
		if next == "" || next == cursor {
			f.logger.Warn("Cursor did not advance, stopping pagination", zap.String("cursor", next))
			break
		}
		if reachesCutoff(page, res.Cutoff) {
			break
		}
		cursor = next
	}

	if f.strictCutoff {
		kept := make([]fills.RawFill, 0, len(all))
		for _, raw := range all {
			// Unparseable timestamps are kept so validation can report them.
			if ts, err := fills.ParseMillis(raw.CTime); err == nil && ts < res.Cutoff {
				res.Dropped++
				continue
			}
			kept = append(kept, raw)
		}
		all = kept
	} else if n := countBefore(all, res.Cutoff); n > 0 {
		f.logger.Info("Loose cutoff: keeping fills older than the lookback window",
			zap.Int("older_fills", n),
			zap.Int64("cutoff", res.Cutoff),
		)
	}

	// The backend serves newest first.
	slices.Reverse(all)
	res.Fills = all
	return res, nil
}

func reachesCutoff(page []fills.RawFill, cutoff int64) bool {
	return countBefore(page, cutoff) > 0
}

func countBefore(raws []fills.RawFill, cutoff int64) int {
	n := 0
	for _, raw := range raws {
		if ts, err := fills.ParseMillis(raw.CTime); err == nil && ts < cutoff {
			n++
		}
	}
	return n
}
