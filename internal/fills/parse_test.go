package fills

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func rawFill(id, side, price, size, feeCoin, fee string) RawFill {
	return RawFill{
		TradeID:   LooseString(id),
		OrderID:   LooseString("o-" + id),
		Symbol:    "BTCUSDT",
		Side:      side,
		Price:     LooseString(price),
		Size:      LooseString(size),
		FeeDetail: RawFeeDetail{FeeCoin: feeCoin, TotalFee: LooseString(fee)},
		CTime:     "1700000000000",
	}
}

func TestRawFill_UnmarshalJSON(t *testing.T) {
	body := `{"tradeId": 123, "orderId": "9", "symbol": "BTCUSDT", "side": "buy",
		"price": "100.5", "size": 0.25, "feeDetail": {"feeCoin": "BTC", "totalFee": "-0.0001"},
		"cTime": 1700000000000}`

	var raw RawFill
	require.NoError(t, json.Unmarshal([]byte(body), &raw))

	assert.Equal(t, LooseString("123"), raw.TradeID)
	assert.Equal(t, LooseString("0.25"), raw.Size)
	assert.Equal(t, LooseString(""), raw.Amount)
	assert.Equal(t, LooseString("1700000000000"), raw.CTime)
	assert.Equal(t, LooseString("-0.0001"), raw.FeeDetail.TotalFee)
}

func TestParse(t *testing.T) {
	t.Run("DerivesAmount", func(t *testing.T) {
		f, err := Parse(rawFill("1", "buy", "100", "2", "USDT", "0.2"), DefaultQuoteAssets)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("200").Equal(f.Amount))
		assert.Equal(t, SideBuy, f.Side)
		assert.Equal(t, int64(1700000000000), f.CTime)
	})

	t.Run("KeepsExplicitAmount", func(t *testing.T) {
		raw := rawFill("1", "SELL", "100", "2", "USDT", "0.2")
		raw.Amount = "199.99"
		f, err := Parse(raw, DefaultQuoteAssets)
		require.NoError(t, err)
		assert.Equal(t, SideSell, f.Side)
		assert.True(t, decimal.RequireFromString("199.99").Equal(f.Amount))
	})

	t.Run("QuoteFee", func(t *testing.T) {
		f, err := Parse(rawFill("1", "buy", "100", "1", "usdt", "-0.1"), DefaultQuoteAssets)
		require.NoError(t, err)
		assert.Equal(t, FeeQuote, f.Fee.Kind)
		assert.Equal(t, "USDT", f.Fee.Coin)
		assert.True(t, decimal.RequireFromString("0.1").Equal(f.Fee.Amount))
	})

	t.Run("BaseFee", func(t *testing.T) {
		f, err := Parse(rawFill("1", "buy", "100", "1", "BTC", "0.001"), DefaultQuoteAssets)
		require.NoError(t, err)
		assert.Equal(t, FeeBase, f.Fee.Kind)
	})

	t.Run("MissingFeeIsZeroQuote", func(t *testing.T) {
		f, err := Parse(rawFill("1", "buy", "100", "1", "", ""), DefaultQuoteAssets)
		require.NoError(t, err)
		assert.Equal(t, FeeQuote, f.Fee.Kind)
		assert.True(t, f.Fee.Amount.IsZero())
	})

	cases := []struct {
		name  string
		raw   RawFill
		field string
	}{
		{"NaNPrice", rawFill("1", "buy", "NaN", "1", "USDT", "0"), "price"},
		{"EmptySize", rawFill("1", "buy", "100", "", "USDT", "0"), "size"},
		{"NegativeSize", rawFill("1", "buy", "100", "-1", "USDT", "0"), "size"},
		{"GarbageFee", rawFill("1", "buy", "100", "1", "USDT", "abc"), "feeDetail.totalFee"},
		{"UnknownSide", rawFill("1", "hold", "100", "1", "USDT", "0"), "side"},
		{"MissingID", rawFill("", "buy", "100", "1", "USDT", "0"), "tradeId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.raw, DefaultQuoteAssets)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFill))

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tc.field, perr.Field)
		})
	}

	t.Run("BadTimestamp", func(t *testing.T) {
		raw := rawFill("1", "buy", "100", "1", "USDT", "0")
		raw.CTime = "1700000000000.5"
		_, err := Parse(raw, DefaultQuoteAssets)
		assert.ErrorIs(t, err, ErrInvalidFill)
	})
}

func TestParseAll(t *testing.T) {
	raws := []RawFill{
		rawFill("1", "buy", "100", "1", "USDT", "0"),
		rawFill("2", "buy", "oops", "1", "USDT", "0"),
		rawFill("3", "sell", "110", "1", "USDT", "0"),
		rawFill("4", "sell", "110", "NaN", "USDT", "0"),
	}

	parsed, err := ParseAll(raws, DefaultQuoteAssets)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	require.Len(t, parsed, 2)
	assert.Equal(t, "1", parsed[0].TradeID)
	assert.Equal(t, "3", parsed[1].TradeID)
}

func TestQuoteAssets_QuoteOf(t *testing.T) {
	q := QuoteAssets{"USDT", "BTC", "T"}
	assert.Equal(t, "USDT", q.QuoteOf("ethusdt"))
	assert.Equal(t, "BTC", q.QuoteOf("ETHBTC"))
	assert.Equal(t, "", QuoteAssets{"USDT"}.QuoteOf("USDT"))
	assert.Equal(t, "", QuoteAssets{"USDT"}.QuoteOf("ETHEUR"))
}

func TestQuoteAssets_ResolveFee_UnknownQuote(t *testing.T) {
	q := QuoteAssets{"USDT"}
	assert.Equal(t, FeeQuote, q.ResolveFee("ETHEUR", "USDT", decimal.NewFromInt(1)).Kind)
	assert.Equal(t, FeeBase, q.ResolveFee("ETHEUR", "ETH", decimal.NewFromInt(1)).Kind)
}

func TestSortChronological(t *testing.T) {
	in := []Fill{
		{TradeID: "c", CTime: 3},
		{TradeID: "a", CTime: 1},
		{TradeID: "b1", CTime: 2},
		{TradeID: "b2", CTime: 2},
	}
	out := SortChronological(in)

	ids := make([]string, len(out))
	for i, f := range out {
		ids[i] = f.TradeID
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, ids)
	assert.Equal(t, "c", in[0].TradeID, "input must not be reordered")
}
