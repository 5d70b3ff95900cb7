// Package shared holds the building blocks every aggregate uses
package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and timestamps of a stored aggregate.
// IDs are strings because bills arrive from the extraction service keyed by
// whatever ID the document store assigned them.
type BaseEntity struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity stamps a fresh aggregate with a UUID and the current time
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
}

// Touch records a mutation
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
