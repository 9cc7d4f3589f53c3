// Package pairing rebuilds buy/sell round trips from a symbol's fill history
// and computes the realised PnL of each one.
package pairing

import (
	"slices"

	"bitget-pnl-tracker-go/internal/fills"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Status classifies a pair by which sides it holds.
type Status string

const (
	StatusCompleted     Status = "completed"
	StatusPendingBuy    Status = "pending_buy"
	StatusUnmatchedSell Status = "unmatched_sell"
)

// Outcome classifies a pair by its realised PnL.
type Outcome string

const (
	OutcomeNoData    Outcome = "no_data"
	OutcomeProfit    Outcome = "profit"
	OutcomeLoss      Outcome = "loss"
	OutcomeBreakeven Outcome = "breakeven"
)

// Pair is one buy run matched with the sell run that followed it. Either side
// may be empty. Aggregate fields are nil when their side is empty, PnL fields
// are nil when there is not enough data to compute them.
type Pair struct {
	Buys  []fills.Fill `json:"buys"`
	Sells []fills.Fill `json:"sells"`

	AvgBuyPrice  *decimal.Decimal `json:"avgBuyPrice"`
	TotalBuySize *decimal.Decimal `json:"totalBuySize"`
	TotalBuyCost *decimal.Decimal `json:"totalBuyCost"`

	AvgSellPrice     *decimal.Decimal `json:"avgSellPrice"`
	TotalSellSize    *decimal.Decimal `json:"totalSellSize"`
	TotalSellRevenue *decimal.Decimal `json:"totalSellRevenue"`

	PnL        *decimal.Decimal `json:"pnl"`
	PnLPercent *decimal.Decimal `json:"pnlPercent"`
}

// Status reports which sides of the pair are filled.
func (p Pair) Status() Status {
	switch {
	case len(p.Buys) > 0 && len(p.Sells) > 0:
		return StatusCompleted
	case len(p.Buys) > 0:
		return StatusPendingBuy
	default:
		return StatusUnmatchedSell
	}
}

// Outcome reports whether the pair realised a profit, a loss or nothing.
// A zero PnL is breakeven; only a missing PnL means no data.
func (p Pair) Outcome() Outcome {
	switch {
	case p.PnL == nil:
		return OutcomeNoData
	case p.PnL.IsPositive():
		return OutcomeProfit
	case p.PnL.IsNegative():
		return OutcomeLoss
	default:
		return OutcomeBreakeven
	}
}

// ClosedAt is the timestamp (ms) of the last fill in the pair.
func (p Pair) ClosedAt() int64 {
	if n := len(p.Sells); n > 0 {
		return p.Sells[n-1].CTime
	}
	if n := len(p.Buys); n > 0 {
		return p.Buys[n-1].CTime
	}
	return 0
}

// Reconstruct folds a single symbol's fills into pairs. Fills are scanned in
// ascending CTime order; consecutive buys form a buy run, consecutive sells a
// sell run, and a buy arriving after a sell run closes the current pair.
// The returned pairs are in the order they were closed.
func Reconstruct(fs []fills.Fill) []Pair {
	var (
		pairs []Pair
		buys  []fills.Fill
		sells []fills.Fill
	)
	for _, f := range fills.SortChronological(fs) {
		if f.Side == fills.SideSell {
			sells = append(sells, f)
			continue
		}
		switch {
		case len(buys) > 0 && len(sells) > 0:
			pairs = append(pairs, closePair(buys, sells))
			buys, sells = nil, nil
		case len(sells) > 0:
			// Position opened before the history window: sells with no buys.
			pairs = append(pairs, closePair(nil, sells))
			sells = nil
		}
		buys = append(buys, f)
	}
	if len(buys) > 0 || len(sells) > 0 {
		pairs = append(pairs, closePair(buys, sells))
	}
	return pairs
}

// Latest returns pairs most recent first, as the dashboard lists them.
func Latest(pairs []Pair) []Pair {
	out := slices.Clone(pairs)
	slices.Reverse(out)
	return out
}

func closePair(buys, sells []fills.Fill) Pair {
	p := Pair{Buys: buys, Sells: sells}
	if p.Buys == nil {
		p.Buys = []fills.Fill{}
	}
	if p.Sells == nil {
		p.Sells = []fills.Fill{}
	}

	buySize, buyCost := decimal.Zero, decimal.Zero
	avgBuy := decimal.Zero
	if len(buys) > 0 {
		for _, b := range buys {
			size := b.Size
			buyCost = buyCost.Add(b.Price.Mul(b.Size))
			switch b.Fee.Kind {
			case fills.FeeBase:
				size = size.Sub(b.Fee.Amount)
			default:
				buyCost = buyCost.Add(b.Fee.Amount)
			}
			buySize = buySize.Add(size)
		}
		if !buySize.IsZero() {
			avgBuy = buyCost.Div(buySize)
		}
		p.TotalBuySize, p.TotalBuyCost, p.AvgBuyPrice = ptr(buySize), ptr(buyCost), ptr(avgBuy)
	}

	sellSize, revenue := decimal.Zero, decimal.Zero
	if len(sells) > 0 {
		for _, s := range sells {
			sellSize = sellSize.Add(s.Size)
			revenue = revenue.Add(s.Price.Mul(s.Size))
			switch s.Fee.Kind {
			case fills.FeeBase:
				revenue = revenue.Sub(s.Fee.Amount.Mul(s.Price))
			default:
				revenue = revenue.Sub(s.Fee.Amount)
			}
		}
		avgSell := decimal.Zero
		if !sellSize.IsZero() {
			avgSell = revenue.Div(sellSize)
		}
		p.TotalSellSize, p.TotalSellRevenue, p.AvgSellPrice = ptr(sellSize), ptr(revenue), ptr(avgSell)
	}

	if buySize.IsPositive() && sellSize.IsPositive() && avgBuy.IsPositive() {
		basis := decimal.Min(buySize, sellSize).Mul(avgBuy)
		pnl := revenue.Sub(basis)
		p.PnL = ptr(pnl)
		p.PnLPercent = ptr(pnl.Div(basis).Mul(hundred))
	}
	return p
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }
