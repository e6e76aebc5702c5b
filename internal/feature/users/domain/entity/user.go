// Package entity defines the domain models for the users feature.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. WatchListCount is computed on read.
type User struct {
	ID             uuid.UUID
	FirstName      string
	LastName       string
	DisplayName    string
	Email          string
	PostalCode     string
	Active         bool
	Updated        time.Time
	WatchListCount int
}
