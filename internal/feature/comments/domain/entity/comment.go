// Package entity defines the domain models for the comments feature.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a user's note on a stock. ID is assigned at insert and its
// embedded timestamp is the creation time.
type Comment struct {
	ID              uuid.UUID
	Symbol          string
	UserID          uuid.UUID
	UserDisplayName string
	Text            string
	Active          bool
	Created         time.Time
}
