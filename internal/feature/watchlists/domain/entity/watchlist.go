// Package entity defines the domain models for the watchlists feature.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	stockentity "stockwatcher/internal/feature/stocks/domain/entity"
	"stockwatcher/internal/feature/watchlists/domain"
)

// Visibility controls who may see a watch list.
type Visibility string

const (
	VisibilityPrivate   Visibility = "PRIVATE"
	VisibilityProtected Visibility = "PROTECTED"
	VisibilityPublic    Visibility = "PUBLIC"
)

// ParseVisibility accepts the names case-insensitively.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(strings.ToUpper(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", domain.ErrInvalidVisibility
	}
	return v, nil
}

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityProtected, VisibilityPublic:
		return true
	}
	return false
}

// WatchList is a user's named set of stocks. ID and UserID never change
// after creation. ItemCount is computed on read.
type WatchList struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	DisplayName string
	Visibility  Visibility
	Active      bool
	Created     time.Time // from ID
	Updated     time.Time
	ItemCount   int
}

// Item is one stock on a watch list. StartPrice is the stock's price when it
// was added and is never rewritten.
type Item struct {
	WatchListID uuid.UUID
	Symbol      string
	Created     time.Time
	StartPrice  decimal.NullDecimal
	Stock       *stockentity.Stock // set by Items; nil when the stock is gone
}

// AddOutcome tells whether AddStock inserted a new item.
type AddOutcome int

const (
	Applied AddOutcome = iota
	AlreadyExists
)

func (o AddOutcome) String() string {
	if o == Applied {
		return "applied"
	}
	return "already_exists"
}

// AddResult is the outcome of AddStock. Item is the stored item in both cases.
type AddResult struct {
	Outcome AddOutcome
	Item    Item
}
