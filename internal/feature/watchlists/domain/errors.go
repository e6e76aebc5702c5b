// Package domain defines domain-level errors for the watchlists feature.
package domain

import (
	"fmt"

	"stockwatcher/internal/platform/store"
)

var (
	// ErrNotOnList is returned when removing a stock the watch list does not
	// hold. It matches store.ErrStateConflict.
	ErrNotOnList = fmt.Errorf("stock is not on the watch list: %w", store.ErrStateConflict)

	// ErrInvalidVisibility is returned for an unknown visibility name.
	ErrInvalidVisibility = fmt.Errorf("unknown watch list visibility: %w", store.ErrInvalidArgument)
)
