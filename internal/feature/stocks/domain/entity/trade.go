package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is one executed trade. Trades are immutable once recorded.
type Trade struct {
	ID            uuid.UUID // time-ordered
	Timestamp     time.Time
	ExchangeID    string
	Symbol        string
	SharePrice    decimal.Decimal // positive
	ShareQuantity int64           // >= 0
}

func (t Trade) Equal(o Trade) bool {
	return t.ID == o.ID &&
		t.Timestamp.Equal(o.Timestamp) &&
		t.ExchangeID == o.ExchangeID &&
		t.Symbol == o.Symbol &&
		t.SharePrice.Equal(o.SharePrice) &&
		t.ShareQuantity == o.ShareQuantity
}

// DailySummary is the OHLCV record of one symbol on one trade date.
type DailySummary struct {
	Symbol    string
	TradeDate time.Time // UTC midnight
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
}

func (d DailySummary) Equal(o DailySummary) bool {
	return d.Symbol == o.Symbol &&
		d.TradeDate.Equal(o.TradeDate) &&
		d.Open.Equal(o.Open) &&
		d.High.Equal(o.High) &&
		d.Low.Equal(o.Low) &&
		d.Close.Equal(o.Close) &&
		d.Volume == o.Volume
}

// TradeDate truncates t to midnight UTC of its calendar day in t's location.
func TradeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
