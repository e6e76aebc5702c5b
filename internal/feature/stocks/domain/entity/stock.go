// Package entity defines the domain models for the stocks feature.
package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sector groups industries.
type Sector struct {
	ID   int
	Name string
}

// Industry belongs to exactly one sector. The sector is embedded by value.
type Industry struct {
	ID     int
	Name   string
	Sector Sector
}

// Exchange is a trading venue.
type Exchange struct {
	ID       string // e.g. "NYSE"
	Name     string
	Currency string
	Active   bool
}

// Stock is a listed security.
type Stock struct {
	Symbol       string
	CompanyName  string
	ExchangeID   string
	Industry     Industry
	CurrentPrice decimal.NullDecimal // invalid only on stale rows
	PriceUpdated time.Time           // zero when CurrentPrice is invalid
	Active       bool
}

// Equal reports structural equality. Prices compare by value, so 10 and 10.00
// are equal.
func (s Stock) Equal(o Stock) bool {
	if s.Symbol != o.Symbol || s.CompanyName != o.CompanyName || s.ExchangeID != o.ExchangeID ||
		s.Industry != o.Industry || s.Active != o.Active || !s.PriceUpdated.Equal(o.PriceUpdated) {
		return false
	}
	if s.CurrentPrice.Valid != o.CurrentPrice.Valid {
		return false
	}
	return !s.CurrentPrice.Valid || s.CurrentPrice.Decimal.Equal(o.CurrentPrice.Decimal)
}

// StockCriteria selects stocks by exchange, industry and an inclusive price
// range. Both id sets must be non-empty.
type StockCriteria struct {
	ExchangeIDs []string
	IndustryIDs []int
	MinPrice    decimal.Decimal     // zero by default
	MaxPrice    decimal.NullDecimal // unbounded when invalid
}

// PriceInRange reports whether price lies within [MinPrice, MaxPrice].
func (c StockCriteria) PriceInRange(price decimal.Decimal) bool {
	if price.LessThan(c.MinPrice) {
		return false
	}
	return !c.MaxPrice.Valid || price.LessThanOrEqual(c.MaxPrice.Decimal)
}

// HasIndustry reports whether id is one of the requested industries.
func (c StockCriteria) HasIndustry(id int) bool {
	for _, i := range c.IndustryIDs {
		if i == id {
			return true
		}
	}
	return false
}

// HasExchange reports whether id is one of the requested exchanges.
func (c StockCriteria) HasExchange(id string) bool {
	for _, e := range c.ExchangeIDs {
		if e == id {
			return true
		}
	}
	return false
}
