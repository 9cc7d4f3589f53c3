// Package performance turns reconstructed pairs into the summary figures the
// dashboard shows: win rate, realised PnL per symbol and per day.
package performance

import (
	"sort"
	"time"

	"bitget-pnl-tracker-go/internal/pairing"
	"github.com/shopspring/decimal"
)

// Detail holds calculated statistics for a given period.
type Detail struct {
	TotalPairs      int             `json:"total_pairs"`
	ProfitablePairs int             `json:"profitable_pairs"`
	LosingPairs     int             `json:"losing_pairs"`
	BreakevenPairs  int             `json:"breakeven_pairs"`
	WinRate         decimal.Decimal `json:"win_rate"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
}

// SymbolPnL is the realised result of a single symbol.
type SymbolPnL struct {
	Symbol  string          `json:"symbol"`
	Summary pairing.Summary `json:"summary"`
	Detail
}

// DailyPnL is the PnL realised by pairs closed on Date (UTC).
type DailyPnL struct {
	Date       string          `json:"date"`
	Pairs      int             `json:"pairs"`
	PnL        decimal.Decimal `json:"pnl"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// Statistics is the full performance report.
type Statistics struct {
	Since24h Detail      `json:"since_24h"`
	AllTime  Detail      `json:"all_time"`
	BySymbol []SymbolPnL `json:"by_symbol"`
	Daily    []DailyPnL  `json:"daily"`
}

// Add counts p into the detail. Pairs without a PnL are ignored.
func (d *Detail) Add(p pairing.Pair) {
	switch p.Outcome() {
	case pairing.OutcomeNoData:
		return
	case pairing.OutcomeProfit:
		d.ProfitablePairs++
	case pairing.OutcomeLoss:
		d.LosingPairs++
	case pairing.OutcomeBreakeven:
		d.BreakevenPairs++
	}
	d.TotalPairs++
	d.TotalPnL = d.TotalPnL.Add(*p.PnL)
	d.WinRate = decimal.NewFromInt(int64(d.ProfitablePairs)).Div(decimal.NewFromInt(int64(d.TotalPairs)))
}

// Analyze computes the statistics for groups as of now.
func Analyze(groups []pairing.SymbolGroup, now time.Time) Statistics {
	since24h := now.Add(-24 * time.Hour).UnixMilli()

	stats := Statistics{
		BySymbol: make([]SymbolPnL, 0, len(groups)),
		Daily:    []DailyPnL{},
	}
	daily := make(map[string]*DailyPnL)

	for _, g := range groups {
		sym := SymbolPnL{Symbol: g.Symbol, Summary: g.Summary}
		for _, p := range g.Pairs {
			if p.PnL == nil {
				continue
			}
			sym.Add(p)
			stats.AllTime.Add(p)

			closed := p.ClosedAt()
			if closed >= since24h {
				stats.Since24h.Add(p)
			}

			day := time.UnixMilli(closed).UTC().Format(time.DateOnly)
			entry, ok := daily[day]
			if !ok {
				entry = &DailyPnL{Date: day}
				daily[day] = entry
			}
			entry.Pairs++
			entry.PnL = entry.PnL.Add(*p.PnL)
		}
		stats.BySymbol = append(stats.BySymbol, sym)
	}

	for _, entry := range daily {
		stats.Daily = append(stats.Daily, *entry)
	}
	sort.Slice(stats.Daily, func(i, j int) bool { return stats.Daily[i].Date < stats.Daily[j].Date })

	running := decimal.Zero
	for i := range stats.Daily {
		running = running.Add(stats.Daily[i].PnL)
		stats.Daily[i].Cumulative = running
	}
	return stats
}
