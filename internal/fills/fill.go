package fills

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Side is the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// FeeKind tells which asset a fee was charged in relative to the symbol.
type FeeKind int

const (
	// FeeQuote fees are charged in the quote asset (e.g. USDT for BTCUSDT).
	FeeQuote FeeKind = iota + 1
	// FeeBase fees are charged in the base asset (e.g. BTC for BTCUSDT).
	FeeBase
)

func (k FeeKind) String() string {
	switch k {
	case FeeQuote:
		return "quote"
	case FeeBase:
		return "base"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k FeeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FeeKind) UnmarshalText(text []byte) error {
	v, err := ParseFeeKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseFeeKind is the inverse of FeeKind.String.
func ParseFeeKind(s string) (FeeKind, error) {
	switch s {
	case "quote":
		return FeeQuote, nil
	case "base":
		return FeeBase, nil
	default:
		return 0, fmt.Errorf("unknown fee kind %q", s)
	}
}

// Fee is the resolved fee of a single fill. Amount is never negative.
type Fee struct {
	Kind   FeeKind         `json:"kind"`
	Coin   string          `json:"coin"`
	Amount decimal.Decimal `json:"amount"`
}

// Fill is a single executed trade with all numeric fields already validated.
type Fill struct {
	TradeID string          `json:"tradeId"`
	OrderID string          `json:"orderId"`
	Symbol  string          `json:"symbol"`
	Side    Side            `json:"side"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
	Amount  decimal.Decimal `json:"amount"`
	Fee     Fee             `json:"fee"`
	CTime   int64           `json:"cTime"`
}

// Time returns the fill timestamp in UTC.
func (f Fill) Time() time.Time {
	return time.UnixMilli(f.CTime).UTC()
}

// SortChronological returns a copy of fs ordered by ascending CTime.
// Fills sharing a timestamp keep their relative order.
func SortChronological(fs []Fill) []Fill {
	out := slices.Clone(fs)
	slices.SortStableFunc(out, func(a, b Fill) int {
		return cmp.Compare(a.CTime, b.CTime)
	})
	return out
}

// LooseString decodes a JSON string or number into its textual form.
// The backend is inconsistent about quoting ids, prices and timestamps.
type LooseString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(v)
		return nil
	}
	*s = LooseString(data)
	return nil
}

// RawFeeDetail is the fee object as sent by the backend.
type RawFeeDetail struct {
	FeeCoin  string      `json:"feeCoin"`
	TotalFee LooseString `json:"totalFee"`
}

// RawFill is a trade fill as sent by the backend, before validation.
type RawFill struct {
	TradeID   LooseString  `json:"tradeId"`
	OrderID   LooseString  `json:"orderId"`
	Symbol    string       `json:"symbol"`
	Side      string       `json:"side"`
	Price     LooseString  `json:"price"`
	Size      LooseString  `json:"size"`
	Amount    LooseString  `json:"amount"`
	FeeDetail RawFeeDetail `json:"feeDetail"`
	CTime     LooseString  `json:"cTime"`
}
