package fills

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// ErrInvalidFill matches every ParseError via errors.Is.
var ErrInvalidFill = errors.New("invalid fill")

var (
	errMissing     = errors.New("missing")
	errNotPositive = errors.New("must be positive")
	errNotInteger  = errors.New("must be an integer")
)

// ParseError reports the field that made a fill unusable.
type ParseError struct {
	TradeID string
	Field   string
	Value   string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fill %q: invalid %s %q: %v", e.TradeID, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets callers test for ErrInvalidFill without knowing the field.
func (e *ParseError) Is(target error) bool { return target == ErrInvalidFill }

// DefaultQuoteAssets covers the quote assets the backend lists symbols in.
var DefaultQuoteAssets = QuoteAssets{"USDT", "USDC", "BUSD", "FDUSD", "BTC", "ETH"}

// QuoteAssets is the set of assets a symbol may be quoted in.
type QuoteAssets []string

// QuoteOf returns the quote asset of symbol, matching the longest known
// suffix. It returns "" when no asset matches.
func (q QuoteAssets) QuoteOf(symbol string) string {
	symbol = strings.ToUpper(symbol)
	best := ""
	for _, asset := range q {
		asset = strings.ToUpper(strings.TrimSpace(asset))
		if asset == "" || len(asset) >= len(symbol) {
			continue
		}
		if strings.HasSuffix(symbol, asset) && len(asset) > len(best) {
			best = asset
		}
	}
	return best
}

// ResolveFee decides whether a fee charged in coin is quote or base
// denominated for symbol. An empty coin is treated as quote.
func (q QuoteAssets) ResolveFee(symbol, coin string, amount decimal.Decimal) Fee {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	fee := Fee{Kind: FeeBase, Coin: coin, Amount: amount.Abs()}
	if coin == "" {
		fee.Kind = FeeQuote
		return fee
	}
	if quote := q.QuoteOf(symbol); quote != "" {
		if coin == quote {
			fee.Kind = FeeQuote
		}
		return fee
	}
	for _, asset := range q {
		if strings.EqualFold(asset, coin) {
			fee.Kind = FeeQuote
			break
		}
	}
	return fee
}

// Parse validates raw and converts it into a Fill. Every numeric field goes
// through an explicit decimal parse; a malformed value rejects the fill.
func Parse(raw RawFill, quotes QuoteAssets) (Fill, error) {
	id := strings.TrimSpace(string(raw.TradeID))
	fail := func(field string, value LooseString, err error) (Fill, error) {
		return Fill{}, &ParseError{TradeID: id, Field: field, Value: string(value), Err: err}
	}

	if id == "" {
		return fail("tradeId", raw.TradeID, errMissing)
	}
	symbol := strings.TrimSpace(raw.Symbol)
	if symbol == "" {
		return fail("symbol", LooseString(raw.Symbol), errMissing)
	}

	var side Side
	switch strings.ToLower(strings.TrimSpace(raw.Side)) {
	case "buy":
		side = SideBuy
	case "sell":
		side = SideSell
	default:
		return fail("side", LooseString(raw.Side), errors.New("must be buy or sell"))
	}

	price, err := positive(raw.Price)
	if err != nil {
		return fail("price", raw.Price, err)
	}
	size, err := positive(raw.Size)
	if err != nil {
		return fail("size", raw.Size, err)
	}

	amount := price.Mul(size)
	if strings.TrimSpace(string(raw.Amount)) != "" {
		amount, err = decimal.NewFromString(strings.TrimSpace(string(raw.Amount)))
		if err != nil {
			return fail("amount", raw.Amount, err)
		}
	}

	feeAmount := decimal.Zero
	if strings.TrimSpace(string(raw.FeeDetail.TotalFee)) != "" {
		feeAmount, err = decimal.NewFromString(strings.TrimSpace(string(raw.FeeDetail.TotalFee)))
		if err != nil {
			return fail("feeDetail.totalFee", raw.FeeDetail.TotalFee, err)
		}
	}

	ctime, err := ParseMillis(raw.CTime)
	if err != nil {
		return fail("cTime", raw.CTime, err)
	}

	return Fill{
		TradeID: id,
		OrderID: strings.TrimSpace(string(raw.OrderID)),
		Symbol:  symbol,
		Side:    side,
		Price:   price,
		Size:    size,
		Amount:  amount,
		Fee:     quotes.ResolveFee(symbol, raw.FeeDetail.FeeCoin, feeAmount),
		CTime:   ctime,
	}, nil
}

// ParseAll parses every raw fill. Fills that fail validation are left out of
// the result and reported together in the returned error.
func ParseAll(raws []RawFill, quotes QuoteAssets) ([]Fill, error) {
	out := make([]Fill, 0, len(raws))
	var errs error
	for _, raw := range raws {
		f, err := Parse(raw, quotes)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, f)
	}
	return out, errs
}

// ParseMillis parses a millisecond timestamp sent either as an integer or as
// an integral decimal ("1700000000000.0").
func ParseMillis(v LooseString) (int64, error) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, errMissing
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, errNotInteger
	}
	if !d.IsPositive() {
		return 0, errNotPositive
	}
	return d.IntPart(), nil
}

func positive(v LooseString) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return decimal.Zero, errMissing
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, errNotPositive
	}
	return d, nil
}
