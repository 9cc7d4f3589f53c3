package performance

import (
	"testing"
	"time"

	"bitget-pnl-tracker-go/internal/fills"
	"bitget-pnl-tracker-go/internal/pairing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFill(id, symbol string, side fills.Side, price string, at time.Time) fills.Fill {
	p := decimal.RequireFromString(price)
	return fills.Fill{
		TradeID: id,
		Symbol:  symbol,
		Side:    side,
		Price:   p,
		Size:    decimal.NewFromInt(1),
		Amount:  p,
		Fee:     fills.Fee{Kind: fills.FeeQuote, Coin: "USDT"},
		CTime:   at.UnixMilli(),
	}
}

func TestAnalyze(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	twoDaysAgo := now.Add(-48 * time.Hour)
	hourAgo := now.Add(-time.Hour)

	in := []fills.Fill{
		// BTC: +10 two days ago, -5 an hour ago, then an open buy.
		newFill("1", "BTCUSDT", fills.SideBuy, "100", twoDaysAgo),
		newFill("2", "BTCUSDT", fills.SideSell, "110", twoDaysAgo.Add(time.Minute)),
		newFill("3", "BTCUSDT", fills.SideBuy, "100", hourAgo),
		newFill("4", "BTCUSDT", fills.SideSell, "95", hourAgo.Add(time.Minute)),
		newFill("5", "BTCUSDT", fills.SideBuy, "90", hourAgo.Add(2*time.Minute)),
		// ETH: breakeven an hour ago, preceded by an unmatched sell.
		newFill("6", "ETHUSDT", fills.SideSell, "50", twoDaysAgo),
		newFill("7", "ETHUSDT", fills.SideBuy, "40", hourAgo),
		newFill("8", "ETHUSDT", fills.SideSell, "40", hourAgo.Add(time.Minute)),
	}

	stats := Analyze(pairing.GroupBySymbol(in), now)

	assert.Equal(t, 3, stats.AllTime.TotalPairs)
	assert.Equal(t, 1, stats.AllTime.ProfitablePairs)
	assert.Equal(t, 1, stats.AllTime.LosingPairs)
	assert.Equal(t, 1, stats.AllTime.BreakevenPairs)
	assert.True(t, decimal.NewFromInt(5).Equal(stats.AllTime.TotalPnL), stats.AllTime.TotalPnL.String())
	assert.InDelta(t, 1.0/3.0, stats.AllTime.WinRate.InexactFloat64(), 1e-9)

	assert.Equal(t, 2, stats.Since24h.TotalPairs)
	assert.Equal(t, 0, stats.Since24h.ProfitablePairs)
	assert.True(t, decimal.NewFromInt(-5).Equal(stats.Since24h.TotalPnL))
	assert.True(t, stats.Since24h.WinRate.IsZero())

	require.Len(t, stats.BySymbol, 2)
	assert.Equal(t, "BTCUSDT", stats.BySymbol[0].Symbol)
	assert.Equal(t, 2, stats.BySymbol[0].TotalPairs)
	assert.Equal(t, 1, stats.BySymbol[0].Summary.PendingBuys)
	assert.Equal(t, "ETHUSDT", stats.BySymbol[1].Symbol)
	assert.Equal(t, 1, stats.BySymbol[1].Summary.UnmatchedSells)

	require.Len(t, stats.Daily, 2)
	assert.Equal(t, "2024-03-08", stats.Daily[0].Date)
	assert.True(t, decimal.NewFromInt(10).Equal(stats.Daily[0].PnL))
	assert.Equal(t, "2024-03-10", stats.Daily[1].Date)
	assert.Equal(t, 2, stats.Daily[1].Pairs)
	assert.True(t, decimal.NewFromInt(-5).Equal(stats.Daily[1].PnL))
	assert.True(t, decimal.NewFromInt(5).Equal(stats.Daily[1].Cumulative))
}

func TestAnalyze_NoPairs(t *testing.T) {
	stats := Analyze(nil, time.Now())
	assert.Zero(t, stats.AllTime.TotalPairs)
	assert.True(t, stats.AllTime.WinRate.IsZero())
	assert.Empty(t, stats.Daily)
	assert.Empty(t, stats.BySymbol)
}
