package storage

import "github.com/google/uuid"

// UUIDGenerator issues random (v4) UUIDs as order ids.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
