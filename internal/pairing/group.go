package pairing

import (
	"sort"

	"bitget-pnl-tracker-go/internal/fills"
	"github.com/sourcegraph/conc/iter"
)

// Summary holds the per-symbol counts shown next to the pair list.
// PendingBuys and UnmatchedSells count fills, not pairs.
type Summary struct {
	TotalBuys      int `json:"totalBuys"`
	TotalSells     int `json:"totalSells"`
	CompletedPairs int `json:"completedPairs"`
	PendingBuys    int `json:"pendingBuys"`
	UnmatchedSells int `json:"unmatchedSells"`
}

// SymbolGroup is everything derived from one symbol's fills.
type SymbolGroup struct {
	Symbol  string       `json:"symbol"`
	Fills   []fills.Fill `json:"fills"`
	Pairs   []Pair       `json:"pairs"`
	Summary Summary      `json:"summary"`
}

// Summarize counts fills and pair states.
func Summarize(fs []fills.Fill, pairs []Pair) Summary {
	var s Summary
	for _, f := range fs {
		if f.Side == fills.SideBuy {
			s.TotalBuys++
		} else {
			s.TotalSells++
		}
	}
	for _, p := range pairs {
		switch p.Status() {
		case StatusCompleted:
			s.CompletedPairs++
		case StatusPendingBuy:
			s.PendingBuys += len(p.Buys)
		case StatusUnmatchedSell:
			s.UnmatchedSells += len(p.Sells)
		}
	}
	return s
}

// GroupBySymbol splits fills by symbol and reconstructs the pairs of each
// symbol. Groups are returned sorted by symbol.
func GroupBySymbol(fs []fills.Fill) []SymbolGroup {
	bySymbol := make(map[string][]fills.Fill)
	for _, f := range fs {
		bySymbol[f.Symbol] = append(bySymbol[f.Symbol], f)
	}

	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	// Reconstruct is pure, so symbols can be processed in parallel.
	return iter.Map(symbols, func(symbol *string) SymbolGroup {
		ordered := fills.SortChronological(bySymbol[*symbol])
		pairs := Reconstruct(ordered)
		return SymbolGroup{
			Symbol:  *symbol,
			Fills:   ordered,
			Pairs:   pairs,
			Summary: Summarize(ordered, pairs),
		}
	})
}
