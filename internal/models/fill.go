package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitget-pnl-tracker-go/internal/fills"
)

// FillRecord is a validated trade fill cached in the database.
// Decimals are stored as text so no precision is lost to REAL affinity.
type FillRecord struct {
	gorm.Model
	TradeID   string          `gorm:"uniqueIndex;not null"`
	OrderID   string          `gorm:"index"`
	Symbol    string          `gorm:"index:idx_symbol_ctime;not null"`
	Side      string          `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:text;not null"`
	Size      decimal.Decimal `gorm:"type:text;not null"`
	Amount    decimal.Decimal `gorm:"type:text;not null"`
	FeeKind   string          `gorm:"not null"`
	FeeCoin   string
	FeeAmount decimal.Decimal `gorm:"type:text;not null"`
	CTime     int64           `gorm:"index:idx_symbol_ctime;not null"`
}

// NewFillRecord converts a parsed fill into its database row.
func NewFillRecord(f fills.Fill) FillRecord {
	return FillRecord{
		TradeID:   f.TradeID,
		OrderID:   f.OrderID,
		Symbol:    f.Symbol,
		Side:      string(f.Side),
		Price:     f.Price,
		Size:      f.Size,
		Amount:    f.Amount,
		FeeKind:   f.Fee.Kind.String(),
		FeeCoin:   f.Fee.Coin,
		FeeAmount: f.Fee.Amount,
		CTime:     f.CTime,
	}
}

// Fill converts the row back into a fill.
func (r FillRecord) Fill() (fills.Fill, error) {
	kind, err := fills.ParseFeeKind(r.FeeKind)
	if err != nil {
		return fills.Fill{}, fmt.Errorf("fill record %s: %w", r.TradeID, err)
	}
	side := fills.Side(r.Side)
	if side != fills.SideBuy && side != fills.SideSell {
		return fills.Fill{}, fmt.Errorf("fill record %s: unknown side %q", r.TradeID, r.Side)
	}
	return fills.Fill{
		TradeID: r.TradeID,
		OrderID: r.OrderID,
		Symbol:  r.Symbol,
		Side:    side,
		Price:   r.Price,
		Size:    r.Size,
		Amount:  r.Amount,
		Fee:     fills.Fee{Kind: kind, Coin: r.FeeCoin, Amount: r.FeeAmount},
		CTime:   r.CTime,
	}, nil
}
