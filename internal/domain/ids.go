package domain

import "github.com/google/uuid"

// NewID returns a fresh opaque entity identifier. Every persisted record
// in the order lifecycle core is keyed by one of these.
func NewID() string {
	return uuid.NewString()
}
