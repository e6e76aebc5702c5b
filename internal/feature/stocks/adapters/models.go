package adapters

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockwatcher/internal/feature/stocks/domain/entity"
)

// StockModel is the primary stock row. Industry and sector are denormalized
// into it so a single read yields a full Stock.
type StockModel struct {
	Symbol       string              `gorm:"primaryKey;size:16"`
	CompanyName  string              `gorm:"size:255;not null"`
	ExchangeID   string              `gorm:"size:16;not null"`
	IndustryID   int                 `gorm:"not null"`
	IndustryName string              `gorm:"size:255"`
	SectorID     int                 `gorm:"not null"`
	SectorName   string              `gorm:"size:255"`
	CurrentPrice decimal.NullDecimal `gorm:"type:numeric(14,4)"`
	PriceUpdated *time.Time
	Active       bool `gorm:"not null"`
}

func (StockModel) TableName() string {
	return "stocks"
}

// StockSearchModel is the secondary index used by FindStocks. It is keyed by
// industry first so the index read is a single IN over industry ids.
type StockSearchModel struct {
	IndustryID  int    `gorm:"primaryKey;autoIncrement:false"`
	StockSymbol string `gorm:"primaryKey;size:16"`
	ExchangeID  string `gorm:"size:16;not null"`
}

func (StockSearchModel) TableName() string {
	return "stock_search"
}

type ExchangeModel struct {
	ID       string `gorm:"primaryKey;size:16"`
	Name     string `gorm:"size:255;not null"`
	Currency string `gorm:"size:8;not null"`
	Active   bool   `gorm:"not null"`
}

func (ExchangeModel) TableName() string {
	return "exchanges"
}

type IndustryModel struct {
	ID         int    `gorm:"primaryKey;autoIncrement:false"`
	Name       string `gorm:"size:255;not null"`
	SectorID   int    `gorm:"not null"`
	SectorName string `gorm:"size:255;not null"`
}

func (IndustryModel) TableName() string {
	return "industries"
}

// TradeModel is partitioned by (symbol, trade date).
type TradeModel struct {
	StockSymbol    string          `gorm:"primaryKey;size:16"`
	TradeDate      time.Time       `gorm:"primaryKey"`
	TradeID        uuid.UUID       `gorm:"primaryKey;type:uuid"`
	TradeTimestamp time.Time       `gorm:"not null"`
	ExchangeID     string          `gorm:"size:16;not null"`
	SharePrice     decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	ShareQuantity  int64           `gorm:"not null"`
}

func (TradeModel) TableName() string {
	return "trades"
}

type DailySummaryModel struct {
	StockSymbol string          `gorm:"primaryKey;size:16"`
	TradeDate   time.Time       `gorm:"primaryKey"`
	PriceOpen   decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	PriceHigh   decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	PriceLow    decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	PriceClose  decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	Volume      int64           `gorm:"not null"`
}

func (DailySummaryModel) TableName() string {
	return "daily_summaries"
}

// StockCountModel holds the per-symbol counters. Rows are only ever changed
// by relative updates.
type StockCountModel struct {
	StockSymbol string `gorm:"primaryKey;size:16"`
	WatchCount  int64  `gorm:"not null"`
	ViewCount   int64  `gorm:"not null"`
}

func (StockCountModel) TableName() string {
	return "stock_counts"
}

// Models lists every table owned by the stocks feature, for migration.
func Models() []interface{} {
	return []interface{}{
		&StockModel{},
		&StockSearchModel{},
		&ExchangeModel{},
		&IndustryModel{},
		&TradeModel{},
		&DailySummaryModel{},
		&StockCountModel{},
	}
}

func toStock(m StockModel) entity.Stock {
	s := entity.Stock{
		Symbol:      m.Symbol,
		CompanyName: m.CompanyName,
		ExchangeID:  m.ExchangeID,
		Industry: entity.Industry{
			ID:     m.IndustryID,
			Name:   m.IndustryName,
			Sector: entity.Sector{ID: m.SectorID, Name: m.SectorName},
		},
		CurrentPrice: m.CurrentPrice,
		Active:       m.Active,
	}
	if m.PriceUpdated != nil {
		s.PriceUpdated = m.PriceUpdated.UTC()
	}
	return s
}

// ToStockModel maps a Stock onto its row. Seeding and tests use it.
func ToStockModel(s entity.Stock) StockModel {
	m := StockModel{
		Symbol:       s.Symbol,
		CompanyName:  s.CompanyName,
		ExchangeID:   s.ExchangeID,
		IndustryID:   s.Industry.ID,
		IndustryName: s.Industry.Name,
		SectorID:     s.Industry.Sector.ID,
		SectorName:   s.Industry.Sector.Name,
		CurrentPrice: s.CurrentPrice,
		Active:       s.Active,
	}
	if !s.PriceUpdated.IsZero() {
		at := s.PriceUpdated.UTC()
		m.PriceUpdated = &at
	}
	return m
}

func toExchange(m ExchangeModel) entity.Exchange {
	return entity.Exchange{ID: m.ID, Name: m.Name, Currency: m.Currency, Active: m.Active}
}

func toIndustry(m IndustryModel) entity.Industry {
	return entity.Industry{
		ID:     m.ID,
		Name:   m.Name,
		Sector: entity.Sector{ID: m.SectorID, Name: m.SectorName},
	}
}

func toTrade(m TradeModel) entity.Trade {
	return entity.Trade{
		ID:            m.TradeID,
		Timestamp:     m.TradeTimestamp.UTC(),
		ExchangeID:    m.ExchangeID,
		Symbol:        m.StockSymbol,
		SharePrice:    m.SharePrice,
		ShareQuantity: m.ShareQuantity,
	}
}

// ToTradeModel maps a Trade onto its row, deriving the partition date from
// the trade timestamp.
func ToTradeModel(t entity.Trade) TradeModel {
	return TradeModel{
		StockSymbol:    t.Symbol,
		TradeDate:      entity.TradeDate(t.Timestamp.UTC()),
		TradeID:        t.ID,
		TradeTimestamp: t.Timestamp.UTC(),
		ExchangeID:     t.ExchangeID,
		SharePrice:     t.SharePrice,
		ShareQuantity:  t.ShareQuantity,
	}
}

func toDailySummary(m DailySummaryModel) entity.DailySummary {
	return entity.DailySummary{
		Symbol:    m.StockSymbol,
		TradeDate: entity.TradeDate(m.TradeDate.UTC()),
		Open:      m.PriceOpen,
		High:      m.PriceHigh,
		Low:       m.PriceLow,
		Close:     m.PriceClose,
		Volume:    m.Volume,
	}
}

func toDailySummaryModel(d entity.DailySummary) DailySummaryModel {
	return DailySummaryModel{
		StockSymbol: d.Symbol,
		TradeDate:   entity.TradeDate(d.TradeDate),
		PriceOpen:   d.Open,
		PriceHigh:   d.High,
		PriceLow:    d.Low,
		PriceClose:  d.Close,
		Volume:      d.Volume,
	}
}
