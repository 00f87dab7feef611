package types

import "time"

// Entity carries the timestamps of mutable catalog and drawer rows.
// Purchases are immutable and keep only their own CreatedAt.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity stamps both times with the current UTC time.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch marks the row as changed, e.g. after a stock decrement.
// A zero CreatedAt is filled in so rows built by hand stay consistent.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = e.UpdatedAt
	}
}
