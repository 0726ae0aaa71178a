package domain

import "time"

// Record provides the identity and timestamp fields shared by every persisted entity.
// It gets embedded in any domain type that lives in the store.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Touch updates the UpdatedAt timestamp to now.
// Call this whenever the underlying entity changes.
func (r *Record) Touch(now time.Time) {
	r.UpdatedAt = now
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
// Call this when creating a new entity.
func (r *Record) InitTimestamps(now time.Time) {
	r.CreatedAt = now
	r.UpdatedAt = now
}
