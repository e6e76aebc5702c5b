package store

import (
	"time"

	"github.com/google/uuid"
)

// NewTimeID returns a time-ordered unique id (RFC 4122 version 1).
func NewTimeID() (uuid.UUID, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.Nil, Errorf("store.NewTimeID", ErrStoreUnavailable, "generate id: %w", err)
	}
	return id, nil
}

// TimeOf recovers the creation time embedded in a version 1 id. Other
// versions yield the zero time.
func TimeOf(id uuid.UUID) time.Time {
	if id.Version() != 1 {
		return time.Time{}
	}
	sec, nsec := id.Time().UnixTime()
	return time.Unix(sec, nsec).UTC()
}
